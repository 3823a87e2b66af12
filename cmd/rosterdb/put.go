package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/duelhq/rosterdb/internal/rosterstore/physical"
)

// recordJSON is the CLI wire shape of a record.
type recordJSON struct {
	ID        string            `json:"id,omitempty"`
	Rank      string            `json:"rank"`
	Role      string            `json:"role"`
	Level     int               `json:"level"`
	Power     float64           `json:"power"`
	CreatedAt int64             `json:"createdAt,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

func (r recordJSON) toRecord() *physical.Record {
	return &physical.Record{
		ID:        r.ID,
		Rank:      r.Rank,
		Role:      r.Role,
		Level:     r.Level,
		Power:     r.Power,
		CreatedAt: r.CreatedAt,
		Attrs:     r.Attrs,
	}
}

func fromRecord(rec *physical.Record) recordJSON {
	return recordJSON{
		ID:        rec.ID,
		Rank:      rec.Rank,
		Role:      rec.Role,
		Level:     rec.Level,
		Power:     rec.Power,
		CreatedAt: rec.CreatedAt,
		Attrs:     rec.Attrs,
	}
}

func newPutCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "put [file]",
		Short: "Save a record",
		Long: `Save a record from a JSON file, or stdin when no file is given.

A missing id is filled with a generated UUID; a missing createdAt is filled
with the current time. An existing id is replaced wholesale.

Examples:
  rosterdb --tenant alice put record.json
  echo '{"rank":"B","role":"tank","level":42,"power":1337.5}' | rosterdb --tenant alice put`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 1 && args[0] != "-" {
				data, err = os.ReadFile(args[0]) //nolint:gosec // G304: intentional CLI file read
			} else {
				data, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return fmt.Errorf("read record: %w", err)
			}

			var in recordJSON
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("parse record: %w", err)
			}
			if in.ID == "" {
				in.ID = uuid.NewString()
			}
			if in.CreatedAt == 0 {
				in.CreatedAt = time.Now().UnixMilli()
			}

			store, cleanup, err := openStore(v)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.SaveRecord(cmd.Context(), in.toRecord()); err != nil {
				return err
			}
			fmt.Println(in.ID)
			return nil
		},
	}
}
