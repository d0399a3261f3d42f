package cmd

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	lserrors "github.com/Aman-CERP/localsearch/internal/errors"
	"github.com/Aman-CERP/localsearch/internal/output"
	"github.com/Aman-CERP/localsearch/internal/preflight"
)

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	var (
		jsonOutput bool
		verbose    bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that a build can run",
		Long: `Check the configuration, output directories and every index source
without building anything. Local source files must exist and databases must
answer a ping.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			checker := preflight.New(preflight.WithPingTimeout(timeout))
			results := checker.RunAll(cmd.Context(), cfg)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				checker.PrintResults(output.New(cmd.OutOrStdout()), results, verbose)
			}

			if checker.HasCriticalFailures(results) {
				return lserrors.New(lserrors.ErrCodeInvalidInput, "preflight checks failed", nil).
					WithSuggestion("Run 'localsearch doctor --verbose' for details")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details of each check")
	cmd.Flags().DurationVar(&timeout, "timeout", preflight.DefaultPingTimeout, "Timeout for each database ping")

	return cmd
}
