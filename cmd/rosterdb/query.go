package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/duelhq/rosterdb/internal/rosterstore/physical"
)

func newQueryCmd(v *viper.Viper) *cobra.Command {
	var (
		rank, role    string
		minLevel      int
		maxLevel      int
		minPower      float64
		offset, limit int
		sortField     string
		sortOrder     string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Filtered, sorted, paginated listing",
		Long: `List records matching the supplied filters.

Results follow the natural order of the index the planner picks for the
filters, which can differ from --sort when a filter index takes precedence.

Examples:
  rosterdb --tenant alice query --rank B --limit 50
  rosterdb --tenant alice query --rank B --role tank --sort level --order desc
  rosterdb --tenant alice query --min-level 10 --max-level 20 --offset 100 --limit 25`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cleanup, err := openStore(v)
			if err != nil {
				return err
			}
			defer cleanup()

			recs, err := store.QueryRecords(cmd.Context(),
				physical.Filter{
					Rank:     rank,
					Role:     role,
					MinLevel: minLevel,
					MaxLevel: maxLevel,
					MinPower: minPower,
				},
				offset, limit, sortField, physical.SortOrder(sortOrder),
			)
			if err != nil {
				return err
			}

			out := make([]recordJSON, 0, len(recs))
			for _, rec := range recs {
				out = append(out, fromRecord(rec))
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&rank, "rank", "", "exact rank filter")
	f.StringVar(&role, "role", "", "exact role filter")
	f.IntVar(&minLevel, "min-level", 0, "minimum level (inclusive)")
	f.IntVar(&maxLevel, "max-level", 0, "maximum level (inclusive)")
	f.Float64Var(&minPower, "min-power", 0, "minimum power (inclusive)")
	f.IntVar(&offset, "offset", 0, "cursor positions to skip")
	f.IntVar(&limit, "limit", 50, "maximum results (0 = unbounded)")
	f.StringVar(&sortField, "sort", "createdAt", "sort field (rank, role, level, power, createdAt)")
	f.StringVar(&sortOrder, "order", "asc", "sort order (asc, desc)")

	return cmd
}
