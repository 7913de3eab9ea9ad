package app

import (
	"context"

	"github.com/schollz/progressbar/v3"

	"streamgrab/internal/config"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
	"streamgrab/internal/queue"
	"streamgrab/internal/resolver"
	"streamgrab/internal/stats"
)

// ExecuteRootCommand resolves every input in urls to a model.Reference,
// streams each one's tracks through a shared Queue, and prints the
// session summary before returning. One broken input is logged and
// skipped, per spec's report-and-continue policy; per-item failures do
// not change the exit status. Only a setup failure (building the
// providers, or expanding the input list) exits non-zero, via
// logger.Fatalf.
func ExecuteRootCommand(ctx context.Context, cfg *config.Config, urls []string) {
	env, err := Build(ctx, cfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize providers: %v", err)

		return
	}

	defer func() {
		if closeErr := env.Close(); closeErr != nil {
			logger.WarnKV(ctx, "app: close env failed", "error", closeErr)
		}
	}()

	st := stats.New(cfg.DryRun)

	if bar := newProgressBar(cfg.DryRun); bar != nil {
		st.OnRecord(func(stats.Outcome) { _ = bar.Add(1) })
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf(ctx, "Panic recovered: %v", r)
		}

		st.Stop()
		st.PrintSummary(ctx)
	}()

	inputs, err := resolver.ExpandInputs(urls)
	if err != nil {
		logger.Fatalf(ctx, "Failed to expand inputs: %v", err)

		return
	}

	q := queue.New(env.Ledger, st, int(cfg.MaxConnections), int(cfg.RetryAttemptsCount))

	for _, input := range inputs {
		ref, resolveErr := env.Resolver.Resolve(ctx, input)
		if resolveErr != nil {
			logger.WarnKV(ctx, "app: could not resolve input, skipping", "input", input, "error", resolveErr)

			continue
		}

		q.Run(ctx, env.Streamer.Stream(ctx, ref))
		env.Streamer.CheckContainerComplete(ctx, ref)
	}
}

// newProgressBar builds a track-count bar, one tick per finished
// DownloadTask regardless of outcome. Its total is unknown up front --
// the Streamer discovers tracks as it walks each container -- so it
// renders as a spinner rather than a percentage. nil in dry-run mode,
// since nothing is actually transferred to track.
func newProgressBar(dryRun bool) *progressbar.ProgressBar {
	if dryRun {
		return nil
	}

	return progressbar.Default(-1, "downloading")
}

// resolveID turns a bare provider ID plus explicit kind into a
// Reference without going through the URL resolver, for the
// id-download command where the user already knows exactly what
// they're asking for.
func resolveID(source model.Source, kind model.Kind, id string) model.Reference {
	return model.Reference{Source: source, Kind: kind, ID: id}
}

// ExecuteIDDownloadCommand downloads a single id of the given kind from
// source, bypassing URL resolution entirely.
func ExecuteIDDownloadCommand(ctx context.Context, cfg *config.Config, source model.Source, kind model.Kind, id string) {
	env, err := Build(ctx, cfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize providers: %v", err)

		return
	}

	defer func() {
		if closeErr := env.Close(); closeErr != nil {
			logger.WarnKV(ctx, "app: close env failed", "error", closeErr)
		}
	}()

	if _, providerErr := env.Providers.Get(source); providerErr != nil {
		logger.Fatalf(ctx, "Provider %q is not enabled: %v", source, providerErr)

		return
	}

	st := stats.New(cfg.DryRun)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf(ctx, "Panic recovered: %v", r)
		}

		st.Stop()
		st.PrintSummary(ctx)
	}()

	ref := resolveID(source, kind, id)

	q := queue.New(env.Ledger, st, int(cfg.MaxConnections), int(cfg.RetryAttemptsCount))
	q.Run(ctx, env.Streamer.Stream(ctx, ref))
	env.Streamer.CheckContainerComplete(ctx, ref)
}
