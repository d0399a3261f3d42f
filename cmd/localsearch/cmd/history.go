package cmd

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	lserrors "github.com/Aman-CERP/localsearch/internal/errors"
	"github.com/Aman-CERP/localsearch/internal/output"
	"github.com/Aman-CERP/localsearch/internal/telemetry"
)

// historyEntry is the JSON form of a build record.
type historyEntry struct {
	Index      string    `json:"index"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Digest     string    `json:"digest,omitempty"`
	Documents  int       `json:"documents"`
	Dropped    int       `json:"dropped"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var (
		indexName  string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent builds",
		Long: `Show recent index builds recorded in the history database
(history.path, default .localsearch/history.db), newest first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.History.Disabled {
				output.New(cmd.OutOrStdout()).Warning("Build history is disabled (history.disabled: true)")
				return nil
			}

			store, err := telemetry.OpenHistory(cfg.Resolve(cfg.History.Path))
			if err != nil {
				return lserrors.New(lserrors.ErrCodeFileNotFound, "cannot open build history", err)
			}
			defer func() { _ = store.Close() }()

			records, err := store.Recent(cmd.Context(), indexName, limit)
			if err != nil {
				return lserrors.Wrap(lserrors.ErrCodeInternal, err)
			}

			if jsonOutput {
				entries := make([]historyEntry, len(records))
				for i, r := range records {
					entries[i] = historyEntry{
						Index:      r.Index,
						Status:     r.Status,
						Error:      r.Error,
						Digest:     r.Digest,
						Documents:  r.Documents,
						Dropped:    r.Dropped,
						DurationMS: r.Duration.Milliseconds(),
						FinishedAt: r.FinishedAt,
					}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			out := output.New(cmd.OutOrStdout())
			if len(records) == 0 {
				out.Status("", "No builds recorded yet.")
				return nil
			}
			rows := make([][]string, len(records))
			for i, r := range records {
				digest := r.Digest
				if len(digest) > 12 {
					digest = digest[:12]
				}
				rows[i] = []string{
					r.FinishedAt.Local().Format("2006-01-02 15:04:05"),
					r.Index,
					r.Status,
					strconv.Itoa(r.Documents),
					r.Duration.Round(time.Millisecond).String(),
					digest,
				}
			}
			out.Table([]string{"FINISHED", "INDEX", "STATUS", "DOCUMENTS", "DURATION", "DIGEST"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&indexName, "index", "", "Only builds of this index")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of builds")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
