package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/encodeous/bgpr/core"
	"github.com/encodeous/bgpr/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

type topologySummary struct {
	Asns   int            `yaml:"asns"`
	Ranks  []int          `yaml:"ranks"` // number of ASNs per propagation rank
	Groups map[string]int `yaml:"groups"`
}

type asSummary struct {
	Asn         state.Asn   `yaml:"asn"`
	Rank        uint32      `yaml:"rank"`
	Ixp         bool        `yaml:"ixp,omitempty"`
	InputClique bool        `yaml:"input_clique,omitempty"`
	Groups      []string    `yaml:"groups,omitempty"`
	Providers   []state.Asn `yaml:"providers,omitempty"`
	Peers       []state.Asn `yaml:"peers,omitempty"`
	Customers   []state.Asn `yaml:"customers,omitempty"`
}

var topologyCmd = &cobra.Command{
	Use:     "topology",
	Aliases: []string{"topo"},
	Short:   "Build the AS graph and print rank and group statistics",
	Run: func(cmd *cobra.Command, args []string) {
		topoCfg := topologyFlags(cmd)
		logger, closer, err := core.NewLogger(slog.LevelInfo, "bgpr", "")
		if err != nil {
			panic(err)
		}
		defer closer.Close()

		topo, err := core.LoadTopology(context.Background(), topoCfg, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			os.Exit(1)
		}

		var out any
		if asn, _ := cmd.Flags().GetUint32("asn"); asn != 0 {
			node, ok := topo.Node(asn)
			if !ok {
				fmt.Fprintf(os.Stderr, "Error: asn %d is not in the topology\n", asn)
				os.Exit(1)
			}
			out = asSummary{
				Asn:         asn,
				Rank:        node.Rank(),
				Ixp:         node.IsIxp,
				InputClique: node.IsInputClique,
				Groups:      topo.GroupsOf(asn),
				Providers:   topo.Neighbours(asn, state.Provider),
				Peers:       topo.Neighbours(asn, state.Peer),
				Customers:   topo.Neighbours(asn, state.Customer),
			}
		} else {
			summary := topologySummary{
				Asns:   topo.Len(),
				Groups: make(map[string]int),
			}
			for _, bucket := range topo.PropagationRanks() {
				summary.Ranks = append(summary.Ranks, len(bucket))
			}
			for name, members := range topo.Groups() {
				summary.Groups[name] = len(members)
			}
			out = summary
		}

		body, err := yaml.Marshal(out)
		if err != nil {
			panic(err)
		}
		fmt.Print(string(body))
	},
	GroupID: "data",
}

// topologyFlags reads the topology source from the flags, falling back to the simulation config.
func topologyFlags(cmd *cobra.Command) state.TopologyCfg {
	cfg := state.TopologyCfg{}
	if sim, err := core.ReadSimConfig(state.SimConfigPath); err == nil {
		cfg = sim.Topology
	}
	if p, _ := cmd.Flags().GetString("path"); p != "" {
		cfg.Path = p
	}
	if d, _ := cmd.Flags().GetString("date"); d != "" {
		cfg.Path = ""
		cfg.Date = d
	}
	if c, _ := cmd.Flags().GetString("cache-dir"); c != "" {
		cfg.CacheDir = c
	}
	return cfg
}

func addTopologyFlags(cmd *cobra.Command) {
	cmd.Flags().String("path", "", "Read a serial-2 relationship file instead of fetching one")
	cmd.Flags().String("date", "", "Dataset date (YYYY-MM-DD), defaults to 10 days ago")
	cmd.Flags().String("cache-dir", "", "Directory holding downloaded datasets")
}

func init() {
	rootCmd.AddCommand(topologyCmd)
	addTopologyFlags(topologyCmd)
	topologyCmd.Flags().Uint32P("asn", "a", 0, "Show a single AS instead of the summary")
}
