package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/colresolve/internal/cli/output"
)

// VersionInfo is the build information printed by the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info VersionInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display colresolve version and build information.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if info.GoVersion == "" {
				info.GoVersion = runtime.Version()
			}
			r := NewCommandContext(cmd).Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}
			r.Printf("colresolve v%s\n", info.Version)
			r.Println("Scope-aware SQL column resolution")
			if info.Commit != "" && info.Commit != "unknown" {
				r.Muted("commit " + info.Commit + ", built " + info.BuildDate)
			}
			return nil
		},
	}
}
