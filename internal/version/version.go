// Package version holds the build-time identifiers linker flags stamp
// into the binary, and wires a "version" subcommand onto a cobra root
// command that prints them.
package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version, Commit, and BuildTime are overwritten at build time via
// -ldflags "-X streamgrab/internal/version.Version=...". The zero
// values below are what a `go install` or unflagged local build sees.
//
//nolint:gochecknoglobals // linker-set build identifiers.
var (
	Version   = "0.1.0"
	Commit    = "none"
	BuildTime = "unknown"
)

// Short returns just the version string, e.g. for a one-line banner.
func Short() string {
	return Version
}

// Full returns the version, commit, and build time on one line.
func Full() string {
	return "version: " + Version + ", commit: " + Commit + ", built at: " + BuildTime
}

// AttachCobraVersionCommand adds a "version" subcommand to root that
// prints Full().
func AttachCobraVersionCommand(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version, commit, and build time",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(Full())
		},
	})
}
