package core

import (
	"slices"

	"github.com/encodeous/bgpr/state"
)

// exportPolicy lists, per outbound neighbour class, the relationships a route may have been learned over to be sent there.
// Routes from providers and peers only flow down to customers, so an AS never provides free transit between its upstreams.
var exportPolicy = map[state.Relationship][]state.Relationship{
	state.Provider: {state.Origin, state.Customer},
	state.Peer:     {state.Origin, state.Customer},
	state.Customer: {state.Origin, state.Customer, state.Peer, state.Provider},
}

// CanExport reports whether a route learned over learned may be sent to a neighbour of class to.
func CanExport(learned, to state.Relationship) bool {
	return slices.Contains(exportPolicy[to], learned)
}

// IsBetter reports whether candidate should replace current:
// the more preferred relationship wins, then the shorter path, then the lower next hop.
func IsBetter(current, candidate *state.Announcement) bool {
	if current.RecvRelationship != candidate.RecvRelationship {
		return state.Prefers(candidate.RecvRelationship, current.RecvRelationship)
	}

	if len(current.AsPath) != len(candidate.AsPath) {
		return len(candidate.AsPath) < len(current.AsPath)
	}

	return nextHopLess(candidate.NextHopAsn, current.NextHopAsn)
}

// nextHopLess orders next hops with a missing next hop first.
func nextHopLess(a, b *state.Asn) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	return *a < *b
}

// decisionView returns ann as the decision process ranks it once installed. Installing a route rewrites its next hop
// to the local ASN, so the neighbour it was learned from, second on the path, takes the next hop's place.
func decisionView(ann *state.Announcement) *state.Announcement {
	if len(ann.AsPath) < 2 {
		return ann
	}
	view := *ann
	view.NextHopAsn = &ann.AsPath[1]
	return &view
}

// checkValid returns the drop reason for ann as seen by asn, or false if it may be considered.
func checkValid(asn state.Asn, ann *state.Announcement) (BgpEvent, bool) {
	if ann.HasAsn(asn) {
		return LoopDetected, true
	}
	if ann.HasAsn(state.ReservedAsn) {
		return PoisonedPath, true
	}
	return 0, false
}

// IsValid reports whether asn may consider ann at all. Announcements looping through asn or carrying a poisoned path are not.
func IsValid(asn state.Asn, ann *state.Announcement) bool {
	_, invalid := checkValid(asn, ann)
	return !invalid
}

// copyAndProcess returns the form of ann that asn installs after learning it over from.
func copyAndProcess(asn state.Asn, ann *state.Announcement, from state.Relationship) state.Announcement {
	processed := ann.Clone()
	processed.AsPath = append([]state.Asn{asn}, ann.AsPath...)
	processed.NextHopAsn = state.AsnPtr(asn)
	processed.SeedAsn = nil
	processed.RecvRelationship = from
	return processed
}

// copyForExport returns the copy of a local rib entry sent by asn to a neighbour of class to.
func copyForExport(asn state.Asn, ann *state.Announcement, to state.Relationship) state.Announcement {
	out := ann.Clone()
	out.NextHopAsn = state.AsnPtr(asn)
	out.RecvRelationship = to
	return out
}
