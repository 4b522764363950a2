package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/encodeous/bgpr/caida"
	"github.com/encodeous/bgpr/core"
	"github.com/encodeous/bgpr/state"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the CAIDA relationship dataset into the cache",
	Long:  `Downloads and decompresses the monthly CAIDA serial-2 dataset. Prints the path of the cached file.`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
			state.DBG_log_repo_updates = true
		}
		logger, closer, err := core.NewLogger(level, "bgpr", "")
		if err != nil {
			panic(err)
		}
		defer closer.Close()

		cfg := topologyFlags(cmd)
		collector, err := caida.NewCollector(cfg, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			os.Exit(1)
		}
		if url, _ := cmd.Flags().GetString("url"); url != "" {
			collector.BaseUrl = url
		}
		path, err := collector.Run(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			os.Exit(1)
		}
		fmt.Println(path)
	},
	GroupID: "data",
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	addTopologyFlags(fetchCmd)
	fetchCmd.Flags().String("url", state.CaidaSerial2Url, "Dataset index")
	fetchCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
}
