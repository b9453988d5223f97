// Package cmd wires the cobra command tree for the s3xfer CLI: root,
// copy (the default action), and price. Grounded in the teacher's
// internal/cmd package structure (rootCmd + one file per subcommand,
// package-level flag vars bound in init, observability.CLILogger for
// diagnostics).
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/3leaps/s3xcopy/internal/config"
	"github.com/3leaps/s3xcopy/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{Version: "dev", Commit: "HEAD", BuildDate: "unknown"}

// SetVersionInfo is called from cmd/s3xfer/main.go with values injected at
// build time via -ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootViper = config.New()

var rootCmd = &cobra.Command{
	Use:           "s3xfer",
	Short:         "Adaptive multipart S3-to-S3 object copy engine",
	Long:          "s3xfer copies a single object between S3 (or S3-compatible) locations, choosing between a tag-only update, a property-only copy, a single-shot copy, or an adaptively-tuned multipart copy.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       versionInfo.Version,
	// RunE defaults to the copy action when invoked with no subcommand, so
	// `s3xfer --source-bucket ... --dest-bucket ...` works without `s3xfer copy`.
	RunE: func(c *cobra.Command, args []string) error {
		return runCopy(c, args)
	},
}

func init() {
	config.BindFlags(rootCmd.PersistentFlags(), rootViper)
	rootCmd.SetVersionTemplate(fmt.Sprintf("s3xfer %s (commit %s, built %s)\n", versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate))
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context) int {
	rootCmd.SetContext(ctx)
	err := rootCmd.Execute()
	if err != nil {
		observability.CLILogger.Sync() //nolint:errcheck
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
	}
	return ExitCode(err)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootViper)
	if err != nil {
		return nil, exitError(ExitUserError, "invalid arguments", err)
	}
	if err := observability.Init(cfg.Quiet, cfg.Verbose); err != nil {
		return nil, exitError(ExitInternal, "failed to initialize logging", err)
	}
	return cfg, nil
}
