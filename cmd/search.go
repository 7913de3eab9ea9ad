package cmd

import (
	"github.com/spf13/cobra"

	"streamgrab/internal/app"
	"streamgrab/internal/config"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
)

var (
	searchSource string
	searchKind   string

	searchCmd = &cobra.Command{
		Use:   "search {query}",
		Short: "Search a provider and pick results to download",
		Long: `Searches one provider's catalog for query, prints a numbered
listing, and prompts for a selection (e.g. "1,3,5-7") to download.`,
		Args:             cobra.ExactArgs(1),
		PersistentPreRun: initConfig,
		Run: func(cmd *cobra.Command, args []string) {
			source, err := config.ParseSource(searchSource)
			if err != nil {
				logger.Fatalf(cmd.Context(), "%v", err)

				return
			}

			kind := parseSearchKind(searchKind)
			if kind == model.KindUnknown {
				logger.Fatalf(cmd.Context(), "Unknown search kind %q, expected 'track' or 'album'.", searchKind)

				return
			}

			app.ExecuteSearchCommand(cmd.Context(), appConfig, model.Source(source), kind, args[0])
		},
	}
)

func parseSearchKind(raw string) model.Kind {
	switch raw {
	case "track":
		return model.KindTrack
	case "album":
		return model.KindAlbum
	default:
		return model.KindUnknown
	}
}

//nolint:gochecknoinits // Cobra requires the init function to set up flags before the command is executed.
func init() {
	searchCmd.Flags().StringVar(&searchSource, "source", "", "provider to search (qobuzstream, tidalflow, deezerbeam, soundcloudwave)")
	searchCmd.Flags().StringVar(&searchKind, "kind", "track", "what to search for: 'track' or 'album'")

	_ = searchCmd.MarkFlagRequired("source")

	rootCmd.AddCommand(searchCmd)
}
