package cmd

import (
	"github.com/spf13/cobra"

	"streamgrab/internal/app"
)

var lastfmPlaylistCmd = &cobra.Command{
	Use:   "lastfm-playlist {url}",
	Short: "Import a last.fm playlist by matching each scrobble to a provider search",
	Long: `Fetches a last.fm playlist's track listing and, for each scrobble,
searches the provider configured under lastfm.source for a matching
track. A scrobble with no match is logged and skipped; the rest of the
playlist still downloads.`,
	Args:             cobra.ExactArgs(1),
	PersistentPreRun: initConfig,
	Run: func(cmd *cobra.Command, args []string) {
		app.ExecuteLastfmPlaylistCommand(cmd.Context(), appConfig, args[0])
	},
}

//nolint:gochecknoinits // Cobra requires the init function to set up commands.
func init() {
	rootCmd.AddCommand(lastfmPlaylistCmd)
}
