package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/encodeous/bgpr/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestSimulation(t *testing.T, input *state.TopologyInput, opts ...SimOption) *Simulation {
	t.Helper()
	topo, err := Build(input)
	require.NoError(t, err)
	return NewSimulation(topo, append([]SimOption{WithLogger(quietLog)}, opts...)...)
}

func seed(t *testing.T, sim *Simulation, asn state.Asn, prefix string) {
	t.Helper()
	require.NoError(t, sim.Seed(asn, state.NewAnnouncement(prefix, []state.Asn{asn}, state.Origin)))
}

func rib(t *testing.T, sim *Simulation, asn state.Asn, prefix string) (state.Announcement, bool) {
	t.Helper()
	proc, ok := sim.Process(asn)
	require.True(t, ok, "asn %d has no routing process", asn)
	return proc.Rib(prefix)
}

// recordingNetwork checks every delivery of a simulation against the export policy.
type recordingNetwork struct {
	*Simulation
	mu         sync.Mutex
	delivered  int
	violations []string
}

func record(sim *Simulation) *recordingNetwork {
	rec := &recordingNetwork{Simulation: sim}
	for _, proc := range sim.all {
		proc.net = rec
	}
	return rec
}

func (r *recordingNetwork) Deliver(to state.Asn, ann state.Announcement) {
	exporter, _ := r.Process(*ann.NextHopAsn)
	local, ok := exporter.Rib(ann.Prefix)

	r.mu.Lock()
	r.delivered++
	upstream := func(rel state.Relationship) bool {
		return rel == state.Provider || rel == state.Peer
	}
	if !ok {
		r.violations = append(r.violations, fmt.Sprintf("%d exported %s without a route", exporter.Asn, ann.Prefix))
	} else if upstream(local.RecvRelationship) && upstream(ann.RecvRelationship) {
		r.violations = append(r.violations, fmt.Sprintf("%d sent a %s learned route to its %s %d: %s",
			exporter.Asn, local.RecvRelationship, ann.RecvRelationship, to, ann))
	}
	r.mu.Unlock()

	r.Simulation.Deliver(to, ann)
}

func TestSimulation_ThreeNodeChain(t *testing.T) {
	defer goleak.VerifyNone(t)
	// 1 is a customer of 2, 2 is a customer of 3
	sim := newTestSimulation(t, MakeInput([][2]state.Asn{{1, 2}, {2, 3}}, nil))
	seed(t, sim, 1, testPrefix)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 2, res.Installed)

	b, ok := rib(t, sim, 2, testPrefix)
	require.True(t, ok)
	assert.Equal(t, []state.Asn{2, 1}, b.AsPath)
	assert.Equal(t, state.Customer, b.RecvRelationship)

	c, ok := rib(t, sim, 3, testPrefix)
	require.True(t, ok)
	assert.Equal(t, []state.Asn{3, 2, 1}, c.AsPath)
	assert.Equal(t, state.Customer, c.RecvRelationship)
	assert.Nil(t, c.SeedAsn)

	a, _ := rib(t, sim, 1, testPrefix)
	assert.Equal(t, state.NewAnnouncement(testPrefix, []state.Asn{1}, state.Origin), a)
}

func TestSimulation_ValleyFree(t *testing.T) {
	defer goleak.VerifyNone(t)
	sim := newTestSimulation(t, testInput())
	rec := record(sim)
	seed(t, sim, 6, testPrefix)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 2, res.Rounds)
	assert.Equal(t, 7, res.Installed)
	assert.Empty(t, rec.violations)
	assert.NotZero(t, rec.delivered)

	expected := map[state.Asn]struct {
		path []state.Asn
		rel  state.Relationship
	}{
		6: {[]state.Asn{6}, state.Origin},
		3: {[]state.Asn{3, 6}, state.Customer},
		1: {[]state.Asn{1, 3, 6}, state.Customer},
		2: {[]state.Asn{2, 1, 3, 6}, state.Peer},
		4: {[]state.Asn{4, 1, 3, 6}, state.Provider},
		// 4 learned the route from a provider, so it never reaches 5 over their peering
		5: {[]state.Asn{5, 2, 1, 3, 6}, state.Provider},
		7: {[]state.Asn{7, 5, 2, 1, 3, 6}, state.Provider},
		8: {[]state.Asn{8, 4, 1, 3, 6}, state.Provider},
	}
	for asn, want := range expected {
		got, ok := rib(t, sim, asn, testPrefix)
		require.True(t, ok, "asn %d has no route", asn)
		assert.Equal(t, want.path, got.AsPath, "path at %d", asn)
		assert.Equal(t, want.rel, got.RecvRelationship, "relationship at %d", asn)
	}
	_, ok := rib(t, sim, 9, testPrefix)
	assert.False(t, ok)
}

func TestSimulation_PeerRoutePreferredOverProvider(t *testing.T) {
	defer goleak.VerifyNone(t)
	// 5 originates, its peer 4 and 4's customer 8 (also a customer of 5) pick it up
	sim := newTestSimulation(t, testInput())
	seed(t, sim, 5, testPrefix)

	_, err := sim.Run(context.Background())
	require.NoError(t, err)

	four, _ := rib(t, sim, 4, testPrefix)
	assert.Equal(t, []state.Asn{4, 5}, four.AsPath)
	assert.Equal(t, state.Peer, four.RecvRelationship)

	eight, _ := rib(t, sim, 8, testPrefix)
	assert.Equal(t, []state.Asn{8, 5}, eight.AsPath)

	one, _ := rib(t, sim, 1, testPrefix)
	assert.Equal(t, []state.Asn{1, 2, 5}, one.AsPath)
	assert.Equal(t, state.Peer, one.RecvRelationship)
}

func TestSimulation_SeedErrors(t *testing.T) {
	sim := newTestSimulation(t, testInput())
	err := sim.Seed(100, state.NewAnnouncement(testPrefix, []state.Asn{100}, state.Origin))
	assert.True(t, errors.Is(err, state.ErrUnknownAsn))

	seed(t, sim, 6, testPrefix)
	err = sim.Seed(6, state.NewAnnouncement(testPrefix, []state.Asn{6}, state.Origin))
	assert.True(t, errors.Is(err, state.ErrSeedConflict))
}

func TestSimulation_MaxRounds(t *testing.T) {
	defer goleak.VerifyNone(t)
	sim := newTestSimulation(t, testInput(), WithMaxRounds(1))
	seed(t, sim, 6, testPrefix)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rounds)
	assert.False(t, res.Converged)
}

func TestSimulation_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	sim := newTestSimulation(t, testInput())
	seed(t, sim, 6, testPrefix)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := sim.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.Rounds)
	assert.False(t, res.Converged)

	ribs := sim.Ribs()
	assert.Len(t, ribs[6], 1)
	for asn, anns := range ribs {
		if asn != 6 {
			assert.Empty(t, anns, "asn %d", asn)
		}
	}
}

func TestSimulation_Tracer(t *testing.T) {
	defer goleak.VerifyNone(t)
	tracer := NewTracer()
	ch := make(chan interface{}, 64)
	tracer.Subscribe(ch)

	sim := newTestSimulation(t, testInput(), WithTracer(tracer))
	seed(t, sim, 6, testPrefix)
	res, err := sim.Run(context.Background())
	require.NoError(t, err)

	events := make([]RouteEvent, 0)
	for len(events) < res.Installed {
		events = append(events, (<-ch).(RouteEvent))
	}
	tracer.Unsubscribe(ch)
	require.NoError(t, tracer.Close())
	require.NoError(t, tracer.Close())
	<-tracer.Done()

	assert.Len(t, events, 7)
	for _, ev := range events {
		assert.Equal(t, 1, ev.Round)
		assert.Equal(t, testPrefix, ev.Prefix)
		assert.Nil(t, ev.Old)
		assert.Equal(t, ev.Asn, ev.New.AsPath[0])
	}
}

// randomInput generates an acyclic provider hierarchy, providers always have a lower ASN than their customers.
func randomInput(r *rand.Rand, n int) *state.TopologyInput {
	input := state.NewTopologyInput()
	for asn := state.Asn(2); asn <= state.Asn(n); asn++ {
		for range 1 + r.IntN(2) {
			input.AddCustomerProvider(asn, state.Asn(1+r.IntN(int(asn-1))))
		}
	}
	for range n {
		a, b := state.Asn(1+r.IntN(n)), state.Asn(1+r.IntN(n))
		if a == b {
			continue
		}
		// skip peerings that duplicate a customer-provider link
		if _, ok := input.CustomerProviderLinks[state.CustomerProviderLink{Customer: a, Provider: b}]; ok {
			continue
		}
		if _, ok := input.CustomerProviderLinks[state.CustomerProviderLink{Customer: b, Provider: a}]; ok {
			continue
		}
		input.AddPeers(a, b)
	}
	return input
}

func TestSimulation_RandomTopologies(t *testing.T) {
	defer goleak.VerifyNone(t)
	for i := range 8 {
		r := rand.New(rand.NewPCG(uint64(i), 42))
		input := randomInput(r, 80)
		origins := []state.Asn{state.Asn(1 + r.IntN(80)), state.Asn(1 + r.IntN(80)), state.Asn(1 + r.IntN(80))}

		var first map[state.Asn][]state.Announcement
		for _, workers := range []int{1, 8} {
			sim := newTestSimulation(t, input, WithWorkers(workers))
			rec := record(sim)
			for j, origin := range origins {
				seed(t, sim, origin, fmt.Sprintf("10.%d.0.0/16", j))
			}
			res, err := sim.Run(context.Background())
			require.NoError(t, err)
			assert.True(t, res.Converged, "topology %d did not converge", i)
			assert.Empty(t, rec.violations, "topology %d", i)

			ribs := sim.Ribs()
			for asn, anns := range ribs {
				for _, ann := range anns {
					assert.Equal(t, asn, ann.AsPath[0], "route at %d does not start with it", asn)
					assert.Equal(t, 1, countAsn(ann.AsPath, asn), "route at %d loops: %s", asn, ann)
					if ann.IsSeeded() {
						assert.Equal(t, asn, *ann.SeedAsn)
					}
				}
			}
			if first == nil {
				first = ribs
			} else if diff := cmp.Diff(first, ribs); diff != "" {
				t.Fatalf("topology %d depends on the worker count (-1 worker +8 workers):\n%s", i, diff)
			}
		}
	}
}

func countAsn(path []state.Asn, asn state.Asn) int {
	n := 0
	for _, a := range path {
		if a == asn {
			n++
		}
	}
	return n
}
