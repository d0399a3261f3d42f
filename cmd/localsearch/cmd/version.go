package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/localsearch/internal/engine"
	"github.com/Aman-CERP/localsearch/internal/index"
	"github.com/Aman-CERP/localsearch/internal/query"
	"github.com/Aman-CERP/localsearch/pkg/version"
)

// versionReport is the build info plus what this binary can produce and read.
type versionReport struct {
	version.BuildInfo
	ArtifactVersion int      `json:"artifact_version"`
	Engines         []string `json:"engines"`
	Drivers         []string `json:"drivers"`
}

func currentVersion() versionReport {
	return versionReport{
		BuildInfo:       version.GetInfo(),
		ArtifactVersion: index.FormatVersion,
		Engines:         []string{string(engine.BackendBleve), string(engine.BackendSQLite)},
		Drivers:         []string{query.DriverSQLite, query.DriverSQLite3, query.DriverPostgres},
	}
}

func newVersionCmd() *cobra.Command {
	var jsonOutput, shortOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the build version together with the index artifact format it
writes, the engines it can build with and the SQL drivers it can query.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			switch {
			case shortOutput:
				_, err := fmt.Fprintln(w, version.Short())
				return err
			case jsonOutput:
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(currentVersion())
			}

			report := currentVersion()
			_, err := fmt.Fprintf(w, "%s\nartifact format: v%d\nengines: %s\ndrivers: %s\n",
				version.String(), report.ArtifactVersion,
				strings.Join(report.Engines, ", "), strings.Join(report.Drivers, ", "))
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&shortOutput, "short", false, "Output only the version number")

	return cmd
}
