package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/duelhq/rosterdb/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "rosterdb",
		Short: "Embedded per-tenant roster record store",
		Long: `rosterdb - an embedded, indexed roster record store.

Each tenant gets its own store; pass --tenant on every command.

Commands:
  rosterdb put             Save a record (reads JSON from a file or stdin)
  rosterdb get <id>        Look up a record
  rosterdb delete <id>     Delete a record
  rosterdb query           Filtered, sorted, paginated listing
  rosterdb count           Total record count
  rosterdb summary         Aggregated power/count over lower rank buckets
  rosterdb migrate         One-shot import from the legacy store
  rosterdb stats           Storage statistics`,
	}

	config.BindFlags(rootCmd, v)

	rootCmd.AddCommand(newPutCmd(v))
	rootCmd.AddCommand(newGetCmd(v))
	rootCmd.AddCommand(newDeleteCmd(v))
	rootCmd.AddCommand(newQueryCmd(v))
	rootCmd.AddCommand(newCountCmd(v))
	rootCmd.AddCommand(newSummaryCmd(v))
	rootCmd.AddCommand(newMigrateCmd(v))
	rootCmd.AddCommand(newStatsCmd(v))

	return rootCmd.ExecuteContext(context.Background())
}
