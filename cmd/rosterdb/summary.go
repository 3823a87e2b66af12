package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSummaryCmd(v *viper.Viper) *cobra.Command {
	var rankOrder string

	cmd := &cobra.Command{
		Use:   "summary <current-rank>",
		Short: "Aggregated power/count over lower rank buckets",
		Long: `Sum power and count records across the rank buckets more than two
positions below the current rank in the rank order. Results are cached for
the configured TTL.

Example:
  rosterdb --tenant alice summary B --rank-order E,D,C,B,A,S`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openStore(v)
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := store.AggregatedMetric(cmd.Context(), args[0], strings.Split(rankOrder, ","))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().StringVar(&rankOrder, "rank-order", "E,D,C,B,A,S", "comma-separated rank labels, lowest first")
	return cmd
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "One-shot import from the legacy store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cleanup, err := openStore(v)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := store.MigrateFromLegacy(cmd.Context())
			if err != nil {
				return err
			}
			if !result.Migrated {
				fmt.Println("nothing to migrate")
				return nil
			}
			fmt.Printf("migrated %d records\n", result.Count)
			return nil
		},
	}
}

func newStatsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Storage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cleanup, err := openStore(v)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			count, err := store.CountRecords(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("backend: %s\nrecords: %d\nsize: %d bytes\n", stats.BackendType, count, stats.SizeBytes)
			return nil
		},
	}
}
