package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/encodeous/bgpr/perf"
	"github.com/encodeous/bgpr/state"
	"golang.org/x/sync/errgroup"
)

// Simulation drives one RoutingProcess per AS through rank ordered propagation rounds.
// It is the Network every process delivers through.
type Simulation struct {
	Topology  *AsTopology
	Logger    *slog.Logger
	Tracer    *Tracer
	Workers   int
	MaxRounds int

	processes map[state.Asn]*RoutingProcess
	buckets   [][]*RoutingProcess
	all       []*RoutingProcess
	round     atomic.Int64
	installed atomic.Int64
}

type SimOption func(*Simulation)

func WithWorkers(n int) SimOption {
	return func(s *Simulation) {
		s.Workers = n
	}
}

func WithMaxRounds(n int) SimOption {
	return func(s *Simulation) {
		s.MaxRounds = n
	}
}

func WithLogger(log *slog.Logger) SimOption {
	return func(s *Simulation) {
		s.Logger = log
	}
}

// WithTracer publishes a RouteEvent to t for every route change.
func WithTracer(t *Tracer) SimOption {
	return func(s *Simulation) {
		s.Tracer = t
	}
}

// Result summarises a finished Run.
type Result struct {
	Rounds    int
	Converged bool
	Installed int
}

func NewSimulation(topo *AsTopology, opts ...SimOption) *Simulation {
	s := &Simulation{
		Topology:  topo,
		Logger:    slog.Default(),
		Workers:   state.DefaultWorkers,
		MaxRounds: state.DefaultMaxRounds,
		processes: make(map[state.Asn]*RoutingProcess, topo.Len()),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, asn := range topo.ASNs() {
		// every asn comes from the topology itself
		proc, _ := NewRoutingProcessFor(topo, asn, s)
		s.processes[asn] = proc
		s.all = append(s.all, proc)
	}
	for _, bucket := range topo.PropagationRanks() {
		procs := make([]*RoutingProcess, 0, len(bucket))
		for _, asn := range bucket {
			procs = append(procs, s.processes[asn])
		}
		s.buckets = append(s.buckets, procs)
	}
	return s
}

// Process returns the routing process of asn.
func (s *Simulation) Process(asn state.Asn) (*RoutingProcess, bool) {
	proc, ok := s.processes[asn]
	return proc, ok
}

// Seed installs ann as an origin route at asn.
func (s *Simulation) Seed(asn state.Asn, ann state.Announcement) error {
	proc, ok := s.processes[asn]
	if !ok {
		return fmt.Errorf("%w: cannot seed %s at %d", state.ErrUnknownAsn, ann.Prefix, asn)
	}
	return proc.Seed(ann)
}

// Run propagates routes until a round changes no local rib or MaxRounds rounds have completed.
// ctx is checked between phases, a cancelled run returns the context error and leaves every rib consistent.
func (s *Simulation) Run(ctx context.Context) (Result, error) {
	res := Result{}
	for s.MaxRounds <= 0 || res.Rounds < s.MaxRounds {
		start := time.Now()
		s.round.Store(int64(res.Rounds + 1))

		changed, err := s.runRound(ctx)
		res.Installed = int(s.installed.Load())
		if err != nil {
			return res, err
		}
		res.Rounds++
		perf.Rounds.Inc()
		perf.RoundLatency.Add(float64(time.Since(start).Milliseconds()))
		s.Logger.Debug("completed round", "round", res.Rounds, "changed", changed, "elapsed", time.Since(start))

		if changed == 0 {
			res.Converged = true
			break
		}
	}
	if !res.Converged {
		s.Logger.Warn("simulation did not converge", "rounds", res.Rounds)
	}
	return res, nil
}

func (s *Simulation) runRound(ctx context.Context) (int, error) {
	changed := 0
	phases := []struct {
		name string
		run  func(context.Context) (int, error)
	}{
		{"up", s.runUp},
		{"across", s.runAcross},
		{"down", s.runDown},
	}
	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		start := time.Now()
		n, err := phase.run(ctx)
		changed += n
		if err != nil {
			return changed, err
		}
		perf.PhaseLatency.Add(float64(time.Since(start).Microseconds()))
		if state.DBG_log_phases {
			s.Logger.Debug("completed phase", "phase", phase.name, "changed", n, "elapsed", time.Since(start))
		}
	}
	return changed, nil
}

// runUp processes customer routes from the edge of the network towards the core.
func (s *Simulation) runUp(ctx context.Context) (int, error) {
	changed := 0
	for _, bucket := range s.buckets {
		n, err := s.runBucket(ctx, bucket, func(p *RoutingProcess) (int, error) {
			n, err := p.ProcessIncoming(state.Customer, true)
			if err != nil {
				return n, err
			}
			p.ExportToProviders()
			return n, nil
		})
		changed += n
		if err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// runAcross exchanges routes over every peer link at once.
func (s *Simulation) runAcross(ctx context.Context) (int, error) {
	_, err := s.runBucket(ctx, s.all, func(p *RoutingProcess) (int, error) {
		p.ExportToPeers()
		return 0, nil
	})
	if err != nil {
		return 0, err
	}
	return s.runBucket(ctx, s.all, func(p *RoutingProcess) (int, error) {
		return p.ProcessIncoming(state.Peer, true)
	})
}

// runDown hands routes from the core back towards the edge.
func (s *Simulation) runDown(ctx context.Context) (int, error) {
	changed := 0
	for _, bucket := range slices.Backward(s.buckets) {
		n, err := s.runBucket(ctx, bucket, func(p *RoutingProcess) (int, error) {
			n, err := p.ProcessIncoming(state.Provider, true)
			if err != nil {
				return n, err
			}
			p.ExportToCustomers()
			return n, nil
		})
		changed += n
		if err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// runBucket applies fn to every process on the worker pool and waits for all of them.
func (s *Simulation) runBucket(ctx context.Context, procs []*RoutingProcess, fn func(*RoutingProcess) (int, error)) (int, error) {
	var changed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	if s.Workers > 0 {
		g.SetLimit(s.Workers)
	}
	for _, proc := range procs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			n, err := fn(proc)
			changed.Add(int64(n))
			return err
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return int(changed.Load()), err
}

// Ribs returns a copy of every local rib keyed by ASN.
func (s *Simulation) Ribs() map[state.Asn][]state.Announcement {
	out := make(map[state.Asn][]state.Announcement, len(s.processes))
	for asn, proc := range s.processes {
		out[asn] = proc.RibSnapshot()
	}
	return out
}

func (s *Simulation) Deliver(to state.Asn, ann state.Announcement) {
	proc, ok := s.processes[to]
	if !ok {
		s.Log(UnknownNeighbour, "dropping announcement for unknown asn", "to", to, "ann", ann)
		return
	}
	proc.Receive(ann)
}

func (s *Simulation) RouteChanged(asn state.Asn, old *state.Announcement, new state.Announcement) {
	s.installed.Add(1)
	if s.Tracer != nil {
		s.Tracer.Publish(RouteEvent{
			Round:  int(s.round.Load()),
			Asn:    asn,
			Prefix: new.Prefix,
			Old:    old,
			New:    new,
		})
	}
}

func (s *Simulation) Log(event BgpEvent, desc string, args ...any) {
	args = append([]any{"event", event}, args...)
	if event.IsWarning() {
		s.Logger.Warn(desc, args...)
	} else {
		s.Logger.Debug(desc, args...)
	}
}
