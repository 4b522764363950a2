package state

import "fmt"

// Relationship is the commercial relationship a route was learned over (or will be sent over).
type Relationship uint8

const (
	Unknown Relationship = iota
	Provider
	Peer
	Customer
	Origin
)

// relationshipPreference is the Gao-Rexford preference order, lowest first.
// Unknown is ranked above Origin to match the reference ordering; nothing in this module produces it.
var relationshipPreference = map[Relationship]int{
	Provider: 1,
	Peer:     2,
	Customer: 3,
	Origin:   4,
	Unknown:  5,
}

var relationshipNames = map[Relationship]string{
	Provider: "provider",
	Peer:     "peer",
	Customer: "customer",
	Origin:   "origin",
	Unknown:  "unknown",
}

// Preference returns the rank of r in the route preference order. Higher is preferred.
func Preference(r Relationship) int {
	p, ok := relationshipPreference[r]
	if !ok {
		return relationshipPreference[Unknown]
	}
	return p
}

// Prefers reports whether a route learned over a should be preferred to one learned over b.
func Prefers(a, b Relationship) bool {
	return Preference(a) > Preference(b)
}

func (r Relationship) String() string {
	if name, ok := relationshipNames[r]; ok {
		return name
	}
	return fmt.Sprintf("relationship(%d)", uint8(r))
}

func (r Relationship) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Relationship) UnmarshalText(text []byte) error {
	rel, err := ParseRelationship(string(text))
	if err != nil {
		return err
	}
	*r = rel
	return nil
}

func ParseRelationship(s string) (Relationship, error) {
	for rel, name := range relationshipNames {
		if name == s {
			return rel, nil
		}
	}
	return Unknown, fmt.Errorf("%s is not a valid relationship", s)
}
