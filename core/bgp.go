package core

import (
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"sync"

	"github.com/encodeous/bgpr/perf"
	"github.com/encodeous/bgpr/state"
)

// Network carries the outbound effects of a routing process.
type Network interface {
	// Deliver hands ann to the inbound queue of the neighbour to.
	Deliver(to state.Asn, ann state.Announcement)
	// RouteChanged is called after asn installs a new best route. old is nil if there was none.
	RouteChanged(asn state.Asn, old *state.Announcement, new state.Announcement)
	Log(event BgpEvent, desc string, args ...any)
}

// Neighbours are the ASNs adjacent to a routing process, by their relationship to it.
type Neighbours struct {
	Providers []state.Asn
	Peers     []state.Asn
	Customers []state.Asn
}

func (n Neighbours) Of(rel state.Relationship) []state.Asn {
	switch rel {
	case state.Provider:
		return n.Providers
	case state.Peer:
		return n.Peers
	case state.Customer:
		return n.Customers
	default:
		return nil
	}
}

// LocalRib holds the selected route per prefix.
type LocalRib map[string]state.Announcement

// RecvQueue holds the candidates received for each prefix since the queue was last reset.
type RecvQueue map[string][]state.Announcement

func (q RecvQueue) add(ann state.Announcement) {
	q[ann.Prefix] = append(q[ann.Prefix], ann)
}

// RoutingProcess is the BGP state of one AS.
// Receive may be called from any goroutine, the remaining operations must only be called by the owner of the AS.
type RoutingProcess struct {
	Asn        state.Asn
	Neighbours Neighbours
	net        Network

	mu        sync.Mutex
	localRib  LocalRib
	recvQueue RecvQueue
	table     RibTable
}

func NewRoutingProcess(asn state.Asn, neighbours Neighbours, net Network) *RoutingProcess {
	return &RoutingProcess{
		Asn:        asn,
		Neighbours: neighbours,
		net:        net,
		localRib:   make(LocalRib),
		recvQueue:  make(RecvQueue),
	}
}

// NewRoutingProcessFor creates the routing process of asn wired to its neighbours in t.
func NewRoutingProcessFor(t *AsTopology, asn state.Asn, net Network) (*RoutingProcess, error) {
	node, ok := t.Node(asn)
	if !ok {
		return nil, fmt.Errorf("%w: %d", state.ErrUnknownAsn, asn)
	}
	return NewRoutingProcess(asn, Neighbours{
		Providers: t.asns(node.Providers),
		Peers:     t.asns(node.Peers),
		Customers: t.asns(node.Customers),
	}, net), nil
}

// Seed installs an origin route. It fails with state.ErrSeedConflict if the prefix already has a route.
func (r *RoutingProcess) Seed(ann state.Announcement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.localRib[ann.Prefix]; ok {
		return fmt.Errorf("%w: asn %d already has a route for %s", state.ErrSeedConflict, r.Asn, ann.Prefix)
	}
	r.install(ann.Clone())
	return nil
}

// Receive queues ann as a candidate for the next ProcessIncoming.
func (r *RoutingProcess) Receive(ann state.Announcement) {
	r.mu.Lock()
	r.recvQueue.add(ann)
	r.mu.Unlock()
	perf.AnnouncementsReceived.Add(1)
	if state.DBG_log_bgp {
		r.net.Log(AnnouncementQueued, "queued announcement", "asn", r.Asn, "ann", ann)
	}
}

// ProcessIncoming runs best path selection over every queued candidate, treating them as learned over from.
// Seeded routes are never displaced. It returns the number of prefixes whose selected route changed.
func (r *RoutingProcess) ProcessIncoming(from state.Relationship, resetQueue bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := 0
	for _, prefix := range slices.Sorted(maps.Keys(r.recvQueue)) {
		anns := r.recvQueue[prefix]
		current, exists := r.localRib[prefix]
		if exists && current.IsSeeded() {
			if state.DBG_log_bgp {
				r.net.Log(SeededRouteKept, "ignoring candidates for seeded prefix", "asn", r.Asn, "prefix", prefix, "candidates", len(anns))
			}
			continue
		}

		var original *state.Announcement
		if exists {
			prev := current.Clone()
			original = &prev
		}
		updated := false

		for i := range anns {
			if reason, invalid := checkValid(r.Asn, &anns[i]); invalid {
				perf.AnnouncementsDropped.Add(1)
				if state.DBG_log_bgp {
					r.net.Log(reason, "dropped announcement", "asn", r.Asn, "ann", anns[i])
				}
				continue
			}
			processed := copyAndProcess(r.Asn, &anns[i], from)
			if !exists || IsBetter(decisionView(&current), decisionView(&processed)) {
				r.install(processed)
				current, exists = processed, true
				updated = true
			}
		}

		if updated {
			installed, ok := r.localRib[prefix]
			if !ok {
				return changed, fmt.Errorf("%w: asn %d has no route for %s after processing", state.ErrInvariantViolation, r.Asn, prefix)
			}
			if installed.SeedAsn != nil && *installed.SeedAsn != r.Asn {
				return changed, fmt.Errorf("%w: asn %d learned %s carrying seed asn %d", state.ErrInvariantViolation, r.Asn, prefix, *installed.SeedAsn)
			}
			changed++
			perf.RoutesInstalled.Add(1)
			r.net.RouteChanged(r.Asn, original, installed.Clone())
			if state.DBG_log_rib_changes {
				r.net.Log(RouteInstalled, "installed route", "asn", r.Asn, "route", installed)
			}
		}
	}

	if resetQueue {
		r.recvQueue = make(RecvQueue)
	}
	return changed, nil
}

func (r *RoutingProcess) install(ann state.Announcement) {
	r.localRib[ann.Prefix] = ann
	if pfx, err := netip.ParsePrefix(ann.Prefix); err == nil {
		r.table.Insert(pfx.Masked(), ann.Prefix)
	}
}

// ExportToProviders sends customer-learned and originated routes to every provider.
func (r *RoutingProcess) ExportToProviders() int {
	return r.export(state.Provider)
}

// ExportToPeers sends customer-learned and originated routes to every peer.
func (r *RoutingProcess) ExportToPeers() int {
	return r.export(state.Peer)
}

// ExportToCustomers sends every selected route to every customer.
func (r *RoutingProcess) ExportToCustomers() int {
	return r.export(state.Customer)
}

// export delivers eligible routes to the neighbours of class to. The announcements are collected before delivery
// so that the local lock is never held while a neighbour's is taken.
func (r *RoutingProcess) export(to state.Relationship) int {
	neighbours := r.Neighbours.Of(to)
	if len(neighbours) == 0 {
		return 0
	}

	r.mu.Lock()
	outbound := make([]state.Announcement, 0)
	for _, prefix := range slices.Sorted(maps.Keys(r.localRib)) {
		ann := r.localRib[prefix]
		if CanExport(ann.RecvRelationship, to) {
			outbound = append(outbound, copyForExport(r.Asn, &ann, to))
		}
	}
	r.mu.Unlock()

	sent := 0
	for _, ann := range outbound {
		for _, neigh := range neighbours {
			if state.DBG_log_export {
				r.net.Log(AnnouncementExported, "exporting announcement", "asn", r.Asn, "to", neigh, "ann", ann)
			}
			r.net.Deliver(neigh, ann.Clone())
			sent++
		}
	}
	perf.AnnouncementsSent.Add(float64(sent))
	return sent
}

// Rib returns a copy of the selected route for prefix.
func (r *RoutingProcess) Rib(prefix string) (state.Announcement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ann, ok := r.localRib[prefix]
	if !ok {
		return state.Announcement{}, false
	}
	return ann.Clone(), true
}

// RibSnapshot returns a copy of every selected route ordered by prefix.
func (r *RoutingProcess) RibSnapshot() []state.Announcement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]state.Announcement, 0, len(r.localRib))
	for _, prefix := range slices.Sorted(maps.Keys(r.localRib)) {
		out = append(out, r.localRib[prefix].Clone())
	}
	return out
}

// Queued returns a copy of the candidates waiting for prefix.
func (r *RoutingProcess) Queued(prefix string) []state.Announcement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]state.Announcement, 0, len(r.recvQueue[prefix]))
	for _, ann := range r.recvQueue[prefix] {
		out = append(out, ann.Clone())
	}
	return out
}

func (r *RoutingProcess) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, anns := range r.recvQueue {
		n += len(anns)
	}
	return n
}

// Lookup returns the selected route with the longest prefix containing addr.
// Prefixes that are not IP prefixes are never matched.
func (r *RoutingProcess) Lookup(addr netip.Addr) (state.Announcement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix, ok := r.table.Lookup(addr)
	if !ok {
		return state.Announcement{}, false
	}
	return r.localRib[prefix].Clone(), true
}
