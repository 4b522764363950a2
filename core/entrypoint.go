package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path"
	"runtime/trace"
	"syscall"
	"time"

	"github.com/encodeous/bgpr/caida"
	"github.com/encodeous/bgpr/perf"
	"github.com/encodeous/bgpr/state"
	"github.com/encodeous/bgpr/store"
	"github.com/encodeous/tint"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"
)

func setupDebugging() func() {
	stop := func() {}
	if state.DBG_trace {
		f, err := os.Create("trace.out")
		if err != nil {
			log.Fatal(err)
		}
		err = trace.Start(f)
		if err != nil {
			log.Println("failed to start tracing:", err)
			f.Close()
		} else {
			log.Println("Started tracing")
			stop = func() {
				trace.Stop()
				f.Close()
			}
		}
	}
	if state.DBG_debug {
		go func() {
			log.Println(http.ListenAndServe(state.DebugAddr, nil))
		}()
	}
	return stop
}

// NewLogger builds the process logger: coloured output on stderr, and a plain text copy in logPath if it is set.
// The returned closer releases the log file.
func NewLogger(level slog.Level, prefix, logPath string) (*slog.Logger, io.Closer, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        level,
			AddSource:    false,
			CustomPrefix: prefix,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	var closer io.Closer = nopCloser{}
	if logPath != "" {
		err := os.MkdirAll(path.Dir(logPath), 0700)
		if err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
		closer = f
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error {
	return nil
}

// ReadSimConfig reads, expands and validates the simulation config at cfgPath.
func ReadSimConfig(cfgPath string) (*state.SimCfg, error) {
	var cfg state.SimCfg
	file, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", cfgPath, err)
	}
	state.ExpandSimConfig(&cfg)
	err = state.SimConfigValidator(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadTopologyInput reads the serial-2 file at cfg.Path, or fetches the CAIDA dataset when no path is set.
func LoadTopologyInput(ctx context.Context, cfg state.TopologyCfg, logger *slog.Logger) (*state.TopologyInput, error) {
	if cfg.Path != "" {
		f, err := os.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return caida.ParseSerial(f)
	}
	collector, err := caida.NewCollector(cfg, logger)
	if err != nil {
		return nil, err
	}
	return collector.Load(ctx)
}

// LoadTopology loads the dataset described by cfg and builds the AS graph.
func LoadTopology(ctx context.Context, cfg state.TopologyCfg, logger *slog.Logger) (*AsTopology, error) {
	start := time.Now()
	input, err := LoadTopologyInput(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if input.IsEmpty() {
		logger.Warn("topology dataset has no links", "path", cfg.Path, "date", cfg.Date)
	}
	topo, err := Build(input)
	if err != nil {
		return nil, err
	}
	logger.Info("built topology", "asns", topo.Len(), "ranks", len(topo.PropagationRanks()), "elapsed", time.Since(start))
	return topo, nil
}

// Bootstrap runs one simulation from the config at cfgPath. An empty logPath keeps the configured one.
func Bootstrap(cfgPath, logPath string, verbose bool) error {
	stop := setupDebugging()
	defer stop()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	cfg, err := ReadSimConfig(cfgPath)
	if err != nil {
		return err
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}
	_, err = Start(*cfg, level)
	return err
}

// Start loads the topology, seeds and runs the simulation, and saves the final ribs if a results path is set.
// SIGINT or SIGTERM stop the run after the current phase.
func Start(cfg state.SimCfg, logLevel slog.Level) (Result, error) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(context.Canceled)

	logger, closer, err := NewLogger(logLevel, "bgpr", cfg.LogPath)
	if err != nil {
		return Result{}, err
	}
	defer closer.Close()

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c:
			cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
		}
	}()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := perf.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	topo, err := LoadTopology(ctx, cfg.Topology, logger)
	if err != nil {
		return Result{}, err
	}

	tracer := NewTracer()
	defer tracer.Close()
	traceDone := watchRouteChanges(tracer, logger)

	sim := NewSimulation(topo,
		WithWorkers(cfg.Workers),
		WithMaxRounds(cfg.MaxRounds),
		WithLogger(logger),
		WithTracer(tracer),
	)
	for _, seed := range cfg.Seeds {
		err = sim.Seed(seed.Asn, seed.SeedAnnouncement())
		if err != nil {
			return Result{}, err
		}
	}

	logger.Info("starting simulation. To stop early, send SIGINT or Ctrl+C.", "seeds", len(cfg.Seeds), "workers", cfg.Workers)
	start := time.Now()
	res, err := sim.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", err, context.Cause(ctx))
		}
		return res, err
	}
	logger.Info("simulation finished", "rounds", res.Rounds, "converged", res.Converged, "installed", res.Installed, "elapsed", time.Since(start))

	if cfg.ResultsPath != "" {
		err = saveResults(ctx, cfg.ResultsPath, sim, logger)
		if err != nil {
			return res, err
		}
	}

	tracer.Close()
	<-traceDone
	return res, nil
}

// watchRouteChanges logs a per round summary of route changes until the tracer is closed.
func watchRouteChanges(tracer *Tracer, logger *slog.Logger) <-chan struct{} {
	ch := make(chan interface{}, state.TracerBuffer)
	tracer.Subscribe(ch)
	done := make(chan struct{})
	go func() {
		defer close(done)
		round, changes := 0, 0
		for {
			select {
			case msg := <-ch:
				ev, ok := msg.(RouteEvent)
				if !ok {
					continue
				}
				if ev.Round != round {
					if changes > 0 {
						logger.Debug("route changes", "round", round, "changes", changes)
					}
					round, changes = ev.Round, 0
				}
				changes++
			case <-tracer.Done():
				if changes > 0 {
					logger.Debug("route changes", "round", round, "changes", changes)
				}
				return
			}
		}
	}()
	return done
}

func saveResults(ctx context.Context, resultsPath string, sim *Simulation, logger *slog.Logger) error {
	db, err := store.Open(resultsPath)
	if err != nil {
		return err
	}
	defer db.Close()
	n, err := db.SaveRibs(ctx, sim.Ribs())
	if err != nil {
		return fmt.Errorf("failed to save results to %s: %w", resultsPath, err)
	}
	logger.Info("saved results", "path", resultsPath, "routes", n)
	return nil
}
