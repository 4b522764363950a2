package cmd

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"strconv"

	"github.com/encodeous/bgpr/core"
	"github.com/encodeous/bgpr/state"
	"github.com/encodeous/bgpr/store"
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <asn> [prefix|address]",
	Short: "Query the final routes saved by a simulation",
	Long: `Without a second argument every route selected by the AS is listed.
A prefix prints the route for exactly that prefix, an address prints the longest matching route.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		asn, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s is not an asn\n", args[0])
			os.Exit(1)
		}
		dbPath, _ := cmd.Flags().GetString("db")
		db, err := store.Open(dbPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			os.Exit(1)
		}
		defer db.Close()

		err = lookup(cmd.Context(), db, state.Asn(asn), args[1:])
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			db.Close()
			os.Exit(1)
		}
	},
	GroupID: "sim",
}

func lookup(ctx context.Context, db *store.Store, asn state.Asn, args []string) error {
	if len(args) == 1 {
		if addr, err := netip.ParseAddr(args[0]); err == nil {
			rib, err := db.ListRib(ctx, asn)
			if err != nil {
				return err
			}
			ann, ok := core.LongestMatch(rib, addr)
			if !ok {
				return fmt.Errorf("no route at %d covers %s", asn, addr)
			}
			fmt.Println(ann)
			return nil
		}
		ann, err := db.Lookup(ctx, asn, args[0])
		if err != nil {
			return err
		}
		fmt.Println(ann)
		return nil
	}

	rib, err := db.ListRib(ctx, asn)
	if err != nil {
		return err
	}
	prefixes := make([]string, 0, len(rib))
	for _, ann := range rib {
		fmt.Println(ann)
		prefixes = append(prefixes, ann.Prefix)
	}
	summary := state.CoalescePrefixes(state.ParsePrefixes(prefixes))
	fmt.Printf("%d routes, reachable address space: %v\n", len(rib), summary)
	return nil
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().String("db", state.DefaultResultsPath, "Results database written by simulate")
}
