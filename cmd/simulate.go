package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/bgpr/core"
	"github.com/encodeous/bgpr/state"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:     "simulate",
	Aliases: []string{"sim", "run"},
	Short:   "Run a propagation simulation",
	Long:    `Seeds the configured origin announcements and propagates them until no AS changes its selected routes.`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logPath, _ := cmd.Flags().GetString("log")
		err := core.Bootstrap(state.SimConfigPath, logPath, verbose)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			os.Exit(1)
		}
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	simulateCmd.Flags().StringP("log", "l", "", "Also write logs to this file")
	simulateCmd.Flags().BoolVarP(&state.DBG_log_bgp, "lbgp", "b", false, "Write processed announcements to the console")
	simulateCmd.Flags().BoolVarP(&state.DBG_log_export, "lexport", "e", false, "Write exported announcements to the console")
	simulateCmd.Flags().BoolVarP(&state.DBG_log_phases, "lphase", "p", false, "Write propagation phases to the console")
	simulateCmd.Flags().BoolVarP(&state.DBG_log_rib_changes, "lrchange", "g", false, "Write local rib changes to the console")
	simulateCmd.Flags().BoolVarP(&state.DBG_log_repo_updates, "lrepo", "r", false, "Write dataset downloads to the console")
	simulateCmd.Flags().BoolVar(&state.DBG_trace, "trace", false, "Write a runtime trace to trace.out")
	simulateCmd.Flags().BoolVar(&state.DBG_debug, "pprof", false, "Serve pprof on "+state.DebugAddr)
}
