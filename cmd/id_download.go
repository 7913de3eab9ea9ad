package cmd

import (
	"github.com/spf13/cobra"

	"streamgrab/internal/app"
	"streamgrab/internal/config"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
)

var (
	idDownloadSource string
	idDownloadKind   string

	idDownloadCmd = &cobra.Command{
		Use:   "id-download {id}",
		Short: "Download a single item by its provider-native id",
		Long: `Downloads id directly from the given provider, bypassing URL
resolution entirely -- useful when you already know exactly what you
want (e.g. from a prior search) rather than having a shareable URL.`,
		Args:             cobra.ExactArgs(1),
		PersistentPreRun: initConfig,
		Run: func(cmd *cobra.Command, args []string) {
			source, err := config.ParseSource(idDownloadSource)
			if err != nil {
				logger.Fatalf(cmd.Context(), "%v", err)

				return
			}

			kind := parseIDDownloadKind(idDownloadKind)
			if kind == model.KindUnknown {
				logger.Fatalf(cmd.Context(), "Unknown kind %q, expected one of track, album, artist, label, playlist.", idDownloadKind)

				return
			}

			app.ExecuteIDDownloadCommand(cmd.Context(), appConfig, model.Source(source), kind, args[0])
		},
	}
)

func parseIDDownloadKind(raw string) model.Kind {
	switch raw {
	case "track":
		return model.KindTrack
	case "album":
		return model.KindAlbum
	case "artist":
		return model.KindArtist
	case "label":
		return model.KindLabel
	case "playlist":
		return model.KindPlaylist
	default:
		return model.KindUnknown
	}
}

//nolint:gochecknoinits // Cobra requires the init function to set up flags before the command is executed.
func init() {
	idDownloadCmd.Flags().StringVar(&idDownloadSource, "source", "", "provider to download from")
	idDownloadCmd.Flags().StringVar(&idDownloadKind, "kind", "track", "kind of item: track, album, artist, label, or playlist")

	_ = idDownloadCmd.MarkFlagRequired("source")

	rootCmd.AddCommand(idDownloadCmd)
}
