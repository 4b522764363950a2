package state

import (
	"cmp"
	"maps"
	"slices"
)

type CustomerProviderLink struct {
	Customer Asn
	Provider Asn
}

// PeerLink is unordered. Use MakePeerLink so that {a, b} and {b, a} compare equal.
type PeerLink Pair[Asn, Asn]

func MakePeerLink(a, b Asn) PeerLink {
	return PeerLink(MakeSortedPair(a, b))
}

// TopologyInput is the parsed AS relationship dataset handed to the topology builder.
type TopologyInput struct {
	CustomerProviderLinks map[CustomerProviderLink]struct{}
	PeerLinks             map[PeerLink]struct{}
	IxpAsns               map[Asn]struct{}
	InputCliqueAsns       map[Asn]struct{}
}

func NewTopologyInput() *TopologyInput {
	return &TopologyInput{
		CustomerProviderLinks: make(map[CustomerProviderLink]struct{}),
		PeerLinks:             make(map[PeerLink]struct{}),
		IxpAsns:               make(map[Asn]struct{}),
		InputCliqueAsns:       make(map[Asn]struct{}),
	}
}

func (t *TopologyInput) AddCustomerProvider(customer, provider Asn) {
	t.CustomerProviderLinks[CustomerProviderLink{Customer: customer, Provider: provider}] = struct{}{}
}

func (t *TopologyInput) AddPeers(a, b Asn) {
	t.PeerLinks[MakePeerLink(a, b)] = struct{}{}
}

func (t *TopologyInput) AddIxp(asn Asn) {
	t.IxpAsns[asn] = struct{}{}
}

func (t *TopologyInput) AddInputClique(asn Asn) {
	t.InputCliqueAsns[asn] = struct{}{}
}

// SortedCustomerProviderLinks returns the links ordered by (customer, provider).
func (t *TopologyInput) SortedCustomerProviderLinks() []CustomerProviderLink {
	links := slices.Collect(maps.Keys(t.CustomerProviderLinks))
	slices.SortFunc(links, func(a, b CustomerProviderLink) int {
		if c := cmp.Compare(a.Customer, b.Customer); c != 0 {
			return c
		}
		return cmp.Compare(a.Provider, b.Provider)
	})
	return links
}

func (t *TopologyInput) SortedPeerLinks() []PeerLink {
	pairs := make([]Pair[Asn, Asn], 0, len(t.PeerLinks))
	for l := range t.PeerLinks {
		pairs = append(pairs, Pair[Asn, Asn](l))
	}
	SortPairs(pairs)
	links := make([]PeerLink, 0, len(pairs))
	for _, p := range pairs {
		links = append(links, PeerLink(p))
	}
	return links
}

// LinkASNs returns every ASN mentioned by a link, sorted and without duplicates.
func (t *TopologyInput) LinkASNs() []Asn {
	asns := make([]Asn, 0, 2*(len(t.CustomerProviderLinks)+len(t.PeerLinks)))
	for l := range t.CustomerProviderLinks {
		asns = append(asns, l.Customer, l.Provider)
	}
	for l := range t.PeerLinks {
		asns = append(asns, l.V1, l.V2)
	}
	slices.Sort(asns)
	return slices.Compact(asns)
}

// ASNs returns every ASN referenced by a link or a flag set.
func (t *TopologyInput) ASNs() []Asn {
	asns := t.LinkASNs()
	asns = append(asns, slices.Collect(maps.Keys(t.IxpAsns))...)
	asns = append(asns, slices.Collect(maps.Keys(t.InputCliqueAsns))...)
	slices.Sort(asns)
	return slices.Compact(asns)
}

func (t *TopologyInput) IsEmpty() bool {
	return len(t.CustomerProviderLinks) == 0 && len(t.PeerLinks) == 0 && len(t.IxpAsns) == 0 && len(t.InputCliqueAsns) == 0
}
