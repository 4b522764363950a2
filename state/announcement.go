package state

import (
	"fmt"
	"slices"
	"strings"
)

type Asn = uint32

// ReservedAsn marks a poisoned path. Any announcement carrying it is dropped.
const ReservedAsn Asn = 0

// Announcement is the route record exchanged between routing processes.
type Announcement struct {
	Prefix string
	// AsPath holds the most recent sender first, the origin last. It is never empty.
	AsPath           []Asn
	NextHopAsn       *Asn `yaml:",omitempty"`
	SeedAsn          *Asn `yaml:",omitempty"` // only set on originated routes
	RecvRelationship Relationship
	Timestamp        uint64 `yaml:",omitempty"`
	Withdraw         bool   `yaml:",omitempty"`
	BgpsecNextAsn    *Asn   `yaml:",omitempty"`
	BgpsecAsPath     []Asn  `yaml:",omitempty"`
	OnlyToCustomers  *Asn   `yaml:",omitempty"`
	Blackhole        bool   `yaml:",omitempty"`
}

func AsnPtr(asn Asn) *Asn {
	return &asn
}

// NewAnnouncement creates an announcement for prefix. A single-hop path is an origin route,
// so its next hop and seed are set to the origin.
func NewAnnouncement(prefix string, asPath []Asn, recvRelationship Relationship) Announcement {
	ann := Announcement{
		Prefix:           prefix,
		AsPath:           slices.Clone(asPath),
		RecvRelationship: recvRelationship,
	}
	if len(asPath) == 1 {
		ann.NextHopAsn = AsnPtr(asPath[0])
		ann.SeedAsn = AsnPtr(asPath[0])
	}
	return ann
}

// Origin returns the originating AS, the last element of the path.
func (a *Announcement) Origin() Asn {
	if len(a.AsPath) == 0 {
		panic("announcement for " + a.Prefix + " has an empty AS path")
	}
	return a.AsPath[len(a.AsPath)-1]
}

// PathEqual reports whether both announcements carry the same prefix and AS path.
func (a *Announcement) PathEqual(other *Announcement) bool {
	return a.Prefix == other.Prefix && slices.Equal(a.AsPath, other.AsPath)
}

// BgpsecValid reports whether the bgpsec attributes were signed for asn and match the path.
func (a *Announcement) BgpsecValid(asn Asn) bool {
	return a.BgpsecNextAsn != nil && *a.BgpsecNextAsn == asn && slices.Equal(a.BgpsecAsPath, a.AsPath)
}

func (a *Announcement) HasAsn(asn Asn) bool {
	return slices.Contains(a.AsPath, asn)
}

func (a *Announcement) IsSeeded() bool {
	return a.SeedAsn != nil
}

func cloneAsn(v *Asn) *Asn {
	if v == nil {
		return nil
	}
	return AsnPtr(*v)
}

// Clone returns a deep copy, no slice or pointer is shared with a.
func (a Announcement) Clone() Announcement {
	a.AsPath = slices.Clone(a.AsPath)
	a.BgpsecAsPath = slices.Clone(a.BgpsecAsPath)
	a.NextHopAsn = cloneAsn(a.NextHopAsn)
	a.SeedAsn = cloneAsn(a.SeedAsn)
	a.BgpsecNextAsn = cloneAsn(a.BgpsecNextAsn)
	a.OnlyToCustomers = cloneAsn(a.OnlyToCustomers)
	return a
}

func FormatPath(path []Asn) string {
	parts := make([]string, 0, len(path))
	for _, asn := range path {
		parts = append(parts, fmt.Sprint(asn))
	}
	return strings.Join(parts, " ")
}

func optAsn(v *Asn) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func (a Announcement) String() string {
	return fmt.Sprintf("(prefix: %s, path: [%s], nh: %s, rel: %s)", a.Prefix, FormatPath(a.AsPath), optAsn(a.NextHopAsn), a.RecvRelationship)
}
