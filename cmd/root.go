package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"streamgrab/internal/app"
	"streamgrab/internal/config"
	"streamgrab/internal/logger"
	"streamgrab/internal/version"
)

var (
	// configFilenameFromFlag stores the config filename provided via command-line flag.
	//
	//nolint:gochecknoglobals // It is required for configuration initialization before the application starts.
	configFilenameFromFlag string

	// appConfig stores the application configuration loaded from file and flags.
	//
	//nolint:gochecknoglobals,lll // Initialized once during startup, shared across every command's Run.
	appConfig *config.Config

	// rootCmd is the main Cobra command for the application.
	//
	//nolint:gochecknoglobals,lll // Cobra command requires a global definition for proper command-line parsing and execution.
	rootCmd = &cobra.Command{
		Use:   "streamgrab [flags] {urls}",
		Short: "Download tracks, albums, playlists, or an entire artist's catalog.",
		Long: `streamgrab is a CLI tool for downloading audio content from multiple
streaming providers. It supports downloading:
- Individual tracks
- Full albums
- Playlists
- An artist's or label's complete catalog
- A user's favorites

The application provides flexible naming templates, quality selection,
audio validation, a durable download ledger, and download speed limits.`,
		Args:             cobra.MinimumNArgs(1),
		PersistentPreRun: initConfig,
		Run: func(cmd *cobra.Command, urls []string) {
			app.ExecuteRootCommand(cmd.Context(), appConfig, urls)
		},
	}
)

// Execute runs the root command, shutting down gracefully on SIGHUP,
// SIGINT, or SIGTERM.
func Execute() {
	signals := []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)

	defer func() {
		_ = logger.Logger().Sync() //nolint:errcheck // process is exiting anyway
	}()

	defer stop()

	go func() {
		defer stop()

		err := rootCmd.ExecuteContext(ctx)
		cobra.CheckErr(err)
	}()

	<-ctx.Done()
}

//nolint:gochecknoinits // Cobra requires the init function to set up flags before the command is executed.
func init() {
	version.AttachCobraVersionCommand(rootCmd)

	rootCmd.PersistentFlags().StringVarP(
		&configFilenameFromFlag,
		"config",
		"c",
		"",
		fmt.Sprintf("path to the configuration file (default is '%s')", config.DefaultConfigFilename))

	rootCmdFlags := rootCmd.Flags()

	rootCmdFlags.IntP(
		"quality",
		"q",
		0,
		"requested quality tier: 0 = lossy-low, 1 = lossy-high, 2 = CD lossless, 3 = hi-res lossless.")

	rootCmdFlags.StringP(
		"output",
		"o",
		"",
		"directory to save downloaded files (created if it doesn't exist).")

	rootCmdFlags.BoolP(
		"lyrics",
		"l",
		false,
		"include lyrics if available.")

	rootCmdFlags.StringP(
		"speed-limit",
		"s",
		"",
		"set download speed limit, for example: 500 kbps, 1 mbps, 1.5 mbps.")

	rootCmdFlags.Bool(
		"dry-run",
		false,
		"preview the download without writing files or the ledger.")
}

func initConfig(cmd *cobra.Command, _ []string) {
	var err error

	appConfig, err = config.LoadConfig(configFilenameFromFlag)
	if err != nil {
		logger.Fatalf(cmd.Context(), "Failed to load configuration: %v", err)
	}

	if err = bindFlagsToConfig(cmd.Flags(), appConfig); err != nil {
		logger.Fatalf(cmd.Context(), "Failed to parse flags: %v", err)
	}

	logger.SetLevel(appConfig.ParsedLogLevel)
}

func bindFlagsToConfig(flags *pflag.FlagSet, cfg *config.Config) error {
	var err error

	if flag := flags.Lookup("output"); flag != nil && flag.Changed {
		cfg.OutputPath, err = flags.GetString("output")
		if err != nil {
			return fmt.Errorf("failed to get output value: %w", err)
		}
	}

	if flag := flags.Lookup("lyrics"); flag != nil && flag.Changed {
		cfg.DownloadLyrics, err = flags.GetBool("lyrics")
		if err != nil {
			return fmt.Errorf("failed to get lyrics value: %w", err)
		}
	}

	if flag := flags.Lookup("speed-limit"); flag != nil && flag.Changed {
		cfg.DownloadSpeedLimit, err = flags.GetString("speed-limit")
		if err != nil {
			return fmt.Errorf("failed to get speed limit value: %w", err)
		}
	}

	if flag := flags.Lookup("dry-run"); flag != nil && flag.Changed {
		cfg.DryRun, err = flags.GetBool("dry-run")
		if err != nil {
			return fmt.Errorf("failed to get dry-run value: %w", err)
		}
	}

	if flag := flags.Lookup("quality"); flag != nil && flag.Changed {
		quality, qerr := flags.GetInt("quality")
		if qerr != nil {
			return fmt.Errorf("failed to get quality value: %w", qerr)
		}

		for _, source := range config.AllSources {
			if pc := cfg.Providers[source]; pc != nil {
				pc.Quality = uint8(quality) //nolint:gosec // bounds-checked by ValidateConfig below
			}
		}
	}

	return config.ValidateConfig(cfg)
}
