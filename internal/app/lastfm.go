package app

import (
	"context"
	"fmt"

	"streamgrab/internal/config"
	"streamgrab/internal/discovery"
	"streamgrab/internal/lastfm"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
	"streamgrab/internal/provider"
	"streamgrab/internal/queue"
	"streamgrab/internal/ratelimit"
	"streamgrab/internal/stats"
)

// ExecuteLastfmPlaylistCommand fetches playlistURL's scrobble list,
// resolves each scrobble to a track via the configured provider's
// search, and feeds the matches into the normal download queue.
// Grounded on rip/main.py's stream_process_lastfm: each scrobble is
// searched independently, and a scrobble with no match is logged and
// skipped rather than aborting the rest of the playlist.
func ExecuteLastfmPlaylistCommand(ctx context.Context, cfg *config.Config, playlistURL string) {
	if cfg.Lastfm.BaseURL == "" {
		logger.Fatalf(ctx, "lastfm.base_url is not configured")

		return
	}

	source := cfg.Lastfm.Source
	if source == "" {
		logger.Fatalf(ctx, "lastfm.source is not configured")

		return
	}

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

	client, err := env.Providers.Get(model.Source(source))
	if err != nil {
		logger.Fatalf(ctx, "Provider %q is not enabled: %v", source, err)

		return
	}

	scrobbles, err := lastfm.NewClient(cfg.Lastfm.BaseURL).FetchPlaylist(ctx, playlistURL)
	if err != nil {
		logger.Fatalf(ctx, "Failed to fetch last.fm playlist: %v", err)

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

	tasks := make(chan model.DownloadTask)

	go func() {
		defer close(tasks)

		for _, s := range scrobbles {
			ref, found := resolveScrobble(ctx, env.RateLimits, client, model.Source(source), s)
			if !found {
				logger.WarnKV(ctx, "app: no match for scrobble, skipping", "artist", s.Artist, "title", s.Title)

				continue
			}

			task := model.DownloadTask{
				Track: discovery.NewPendingTrack(env.Deps, ref, nil),
				Type:  model.TaskTypeTrack,
			}

			select {
			case tasks <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	q := queue.New(env.Ledger, st, int(cfg.MaxConnections), int(cfg.RetryAttemptsCount))
	q.Run(ctx, tasks)
}

// resolveScrobble searches source for s's artist+title and returns the
// first hit as a track Reference. found is false when the search
// returned no usable result.
func resolveScrobble(
	ctx context.Context,
	rateLimits *ratelimit.Registry,
	client provider.Client,
	source model.Source,
	s lastfm.Scrobble,
) (model.Reference, bool) {
	query := fmt.Sprintf("%s %s", s.Artist, s.Title)

	var pages []provider.Page

	err := rateLimits.WithProviderLimiter(ctx, string(source), func() error {
		var searchErr error
		pages, searchErr = client.Search(ctx, model.KindTrack, query, 1)

		return searchErr
	})
	if err != nil {
		logger.WarnKV(ctx, "app: search failed for scrobble", "artist", s.Artist, "title", s.Title, "error", err)

		return model.Reference{}, false
	}

	for _, page := range pages {
		for _, item := range page.Items {
			result, decodeErr := decodeSearchResult(item)
			if decodeErr != nil {
				continue
			}

			return model.Reference{Source: source, Kind: model.KindTrack, ID: result.ID}, true
		}
	}

	return model.Reference{}, false
}
