// Command s3xfer is the CLI entrypoint for the adaptive multipart S3-to-S3
// object copy engine.
package main

import (
	"context"
	"os"

	"github.com/3leaps/s3xcopy/internal/cmd"
)

// version, commit, and date are injected at build time via -ldflags
// (e.g. -X main.version=1.2.3), following the teacher's build convention.
var (
	version = "dev"
	commit  = "HEAD"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	os.Exit(cmd.Execute(context.Background()))
}
