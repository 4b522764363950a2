package cmd

import (
	"os"

	"github.com/encodeous/bgpr/state"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bgpr",
	Short: "BGP propagation simulator",
	Long: `bgpr simulates BGP route propagation over a CAIDA AS relationship graph.
Routes are selected and exported following the Gao-Rexford policy, one routing process per AS.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "sim",
		Title: "Simulation Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "data",
		Title: "Topology Data",
	})
	rootCmd.PersistentFlags().StringVarP(&state.SimConfigPath, "config", "c", state.SimConfigPath, "simulation config")
}
