package core

import (
	"fmt"
	"maps"
	"slices"

	"github.com/encodeous/bgpr/state"
)

// AsTopology owns every AsNode. It is read-only once Build returns.
type AsTopology struct {
	nodes  []*AsNode
	index  map[state.Asn]NodeIdx
	groups map[string]map[state.Asn]struct{}
}

// Build constructs the AS graph described by input, assigns propagation ranks and classifies nodes into groups.
// A customer-provider cycle fails the whole build with state.ErrRankCycle.
func Build(input *state.TopologyInput) (*AsTopology, error) {
	t := &AsTopology{
		nodes:  make([]*AsNode, 0),
		index:  make(map[state.Asn]NodeIdx),
		groups: make(map[string]map[state.Asn]struct{}),
	}
	t.generateGraph(input)
	t.addRelationships(input)
	err := t.assignPropagationRanks()
	if err != nil {
		return nil, err
	}
	t.setGroups()
	return t, nil
}

func (t *AsTopology) upsert(asn state.Asn) *AsNode {
	if idx, ok := t.index[asn]; ok {
		return t.nodes[idx]
	}
	node := &AsNode{Asn: asn}
	t.index[asn] = NodeIdx(len(t.nodes))
	t.nodes = append(t.nodes, node)
	return node
}

func (t *AsTopology) generateGraph(input *state.TopologyInput) {
	// pass 0, every asn seen in a link
	for _, asn := range input.LinkASNs() {
		t.upsert(asn)
	}

	// pass 1, flags, these may introduce asns without links
	for _, asn := range slices.Sorted(maps.Keys(input.IxpAsns)) {
		t.upsert(asn).IsIxp = true
	}
	for _, asn := range slices.Sorted(maps.Keys(input.InputCliqueAsns)) {
		t.upsert(asn).IsInputClique = true
	}
}

func (t *AsTopology) addRelationships(input *state.TopologyInput) {
	for _, link := range input.SortedCustomerProviderLinks() {
		if link.Customer == link.Provider {
			continue
		}
		cIdx, pIdx := t.index[link.Customer], t.index[link.Provider]
		customer, provider := t.nodes[cIdx], t.nodes[pIdx]
		customer.Providers = append(customer.Providers, pIdx)
		provider.Customers = append(provider.Customers, cIdx)
	}

	for _, link := range input.SortedPeerLinks() {
		if link.V1 == link.V2 {
			continue
		}
		idx1, idx2 := t.index[link.V1], t.index[link.V2]
		t.nodes[idx1].Peers = append(t.nodes[idx1].Peers, idx2)
		t.nodes[idx2].Peers = append(t.nodes[idx2].Peers, idx1)
	}

	for _, node := range t.nodes {
		node.Providers = compactNeighbours(node.Providers)
		node.Customers = compactNeighbours(node.Customers)
		node.Peers = compactNeighbours(node.Peers)
	}
}

// assignPropagationRanks labels every node with the length of the longest customer -> provider chain ending at it.
// Nodes are released from a work-list once all their customers are ranked, so a node caught in a cycle is never released.
func (t *AsTopology) assignPropagationRanks() error {
	pending := make([]int, len(t.nodes))
	ranks := make([]uint32, len(t.nodes))
	work := make([]NodeIdx, 0)

	for idx, node := range t.nodes {
		pending[idx] = len(node.Customers)
		if pending[idx] == 0 {
			work = append(work, NodeIdx(idx))
		}
	}

	ranked := 0
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		ranked++

		for _, provider := range t.nodes[cur].Providers {
			ranks[provider] = max(ranks[provider], ranks[cur]+1)
			pending[provider]--
			if pending[provider] == 0 {
				work = append(work, provider)
			}
		}
	}

	if ranked != len(t.nodes) {
		cycleNodes := make([]state.Asn, 0)
		for idx, p := range pending {
			if p > 0 {
				cycleNodes = append(cycleNodes, t.nodes[idx].Asn)
			}
		}
		slices.Sort(cycleNodes)
		if len(cycleNodes) > 16 {
			return fmt.Errorf("%w detected among %d asns, including %v", state.ErrRankCycle, len(cycleNodes), cycleNodes[:16])
		}
		return fmt.Errorf("%w detected among asns: %v", state.ErrRankCycle, cycleNodes)
	}

	for idx, node := range t.nodes {
		rank := ranks[idx]
		node.PropagationRank = &rank
	}
	return nil
}

func (t *AsTopology) setGroups() {
	groups := make(map[string]map[state.Asn]struct{})
	for _, name := range state.Groups {
		groups[name] = make(map[state.Asn]struct{})
	}
	for _, node := range t.nodes {
		if node.IsIxp {
			groups[state.GroupIxps][node.Asn] = struct{}{}
		}
		if node.IsStub() {
			groups[state.GroupStubs][node.Asn] = struct{}{}
		}
		if node.IsMultihomed() {
			groups[state.GroupMultihomed][node.Asn] = struct{}{}
		}
		if node.IsTransit() {
			groups[state.GroupTransit][node.Asn] = struct{}{}
		}
	}
	t.groups = groups
}

func (t *AsTopology) Len() int {
	return len(t.nodes)
}

// Node returns the AS with the given number. The node must not be modified.
func (t *AsTopology) Node(asn state.Asn) (*AsNode, bool) {
	idx, ok := t.index[asn]
	if !ok {
		return nil, false
	}
	return t.nodes[idx], true
}

func (t *AsTopology) NodeAt(idx NodeIdx) *AsNode {
	return t.nodes[idx]
}

func (t *AsTopology) IndexOf(asn state.Asn) (NodeIdx, bool) {
	idx, ok := t.index[asn]
	return idx, ok
}

// ASNs returns every AS number in ascending order.
func (t *AsTopology) ASNs() []state.Asn {
	return slices.Sorted(maps.Keys(t.index))
}

// Neighbours returns the ASNs of asn's neighbours over rel, nil if asn is unknown.
func (t *AsTopology) Neighbours(asn state.Asn, rel state.Relationship) []state.Asn {
	node, ok := t.Node(asn)
	if !ok {
		return nil
	}
	return t.asns(node.Relation(rel))
}

func (t *AsTopology) asns(idxs []NodeIdx) []state.Asn {
	out := make([]state.Asn, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, t.nodes[idx].Asn)
	}
	slices.Sort(out)
	return out
}

// Group returns the sorted members of a named group, see state.Groups.
func (t *AsTopology) Group(name string) []state.Asn {
	return slices.Sorted(maps.Keys(t.groups[name]))
}

func (t *AsTopology) InGroup(name string, asn state.Asn) bool {
	_, ok := t.groups[name][asn]
	return ok
}

// Groups returns a copy of every group's members keyed by group name.
func (t *AsTopology) Groups() map[string][]state.Asn {
	out := make(map[string][]state.Asn, len(t.groups))
	for name := range t.groups {
		out[name] = t.Group(name)
	}
	return out
}

// GroupsOf lists the groups asn belongs to.
func (t *AsTopology) GroupsOf(asn state.Asn) []string {
	out := make([]string, 0)
	for _, name := range state.Groups {
		if t.InGroup(name, asn) {
			out = append(out, name)
		}
	}
	return out
}

// PropagationRanks buckets ASNs by rank, lowest rank first.
func (t *AsTopology) PropagationRanks() [][]state.Asn {
	buckets := t.rankBuckets()
	out := make([][]state.Asn, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, t.asns(bucket))
	}
	return out
}

func (t *AsTopology) rankBuckets() [][]NodeIdx {
	buckets := make([][]NodeIdx, 0)
	for idx, node := range t.nodes {
		rank := int(node.Rank())
		for len(buckets) <= rank {
			buckets = append(buckets, make([]NodeIdx, 0))
		}
		buckets[rank] = append(buckets[rank], NodeIdx(idx))
	}
	return buckets
}
