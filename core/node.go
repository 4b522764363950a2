package core

import (
	"slices"

	"github.com/encodeous/bgpr/state"
)

// NodeIdx is the stable index of an AS in its topology's arena.
type NodeIdx int

// AsNode is a single autonomous system. Neighbours are arena indices owned by the AsTopology,
// they are sorted and never contain duplicates once the topology is built.
type AsNode struct {
	Asn             state.Asn
	IsInputClique   bool
	IsIxp           bool
	PropagationRank *uint32
	Providers       []NodeIdx
	Customers       []NodeIdx
	Peers           []NodeIdx
}

func (n *AsNode) NeighbourCount() int {
	return len(n.Providers) + len(n.Customers) + len(n.Peers)
}

func (n *AsNode) IsStub() bool {
	return n.NeighbourCount() == 1
}

func (n *AsNode) IsMultihomed() bool {
	return len(n.Customers) == 0 && len(n.Peers)+len(n.Providers) > 1
}

func (n *AsNode) IsTransit() bool {
	return len(n.Customers) > 0 && n.NeighbourCount() > 1
}

func (n *AsNode) HasRank() bool {
	return n.PropagationRank != nil
}

func (n *AsNode) Rank() uint32 {
	if n.PropagationRank == nil {
		return 0
	}
	return *n.PropagationRank
}

// Relation returns the neighbour indices reachable over rel from this node.
// rel is the relationship of the neighbour to us, so Provider yields our providers.
func (n *AsNode) Relation(rel state.Relationship) []NodeIdx {
	switch rel {
	case state.Provider:
		return n.Providers
	case state.Customer:
		return n.Customers
	case state.Peer:
		return n.Peers
	default:
		return nil
	}
}

func compactNeighbours(list []NodeIdx) []NodeIdx {
	slices.Sort(list)
	return slices.Compact(list)
}
