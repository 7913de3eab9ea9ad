package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"streamgrab/internal/config"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
	"streamgrab/internal/provider"
)

// searchResult is a display-only projection of one raw search hit.
// Search returns json.RawMessage items rather than the typed payload
// structs GetMetadata returns -- the per-provider Mapper types only
// know how to decode the latter -- so this package probes each
// provider's known field-name variants directly instead of going
// through metadata.AlbumMapper/TrackMapper.
type searchResult struct {
	ID     string
	Title  string
	Artist string
}

// probeFields lists every JSON key name, across the four providers'
// search payloads, that carries the title and artist of a search hit.
// qobuzstream/deezerbeam use snake_case, tidalflow/soundcloudwave use
// camelCase; none share a single schema.
type probeFields struct {
	ID         any    `json:"id"`
	Title      string `json:"title"`
	ArtistName string `json:"artist_name"`
	ArtistAlt1 string `json:"artistName"`
	ArtistAlt2 string `json:"artist"`
}

func decodeSearchResult(raw any) (searchResult, error) {
	msg, ok := raw.(json.RawMessage)
	if !ok {
		return searchResult{}, fmt.Errorf("app: search result has unexpected shape %T", raw)
	}

	var fields probeFields
	if err := json.Unmarshal(msg, &fields); err != nil {
		return searchResult{}, fmt.Errorf("app: decode search result: %w", err)
	}

	artist := fields.ArtistName
	if artist == "" {
		artist = fields.ArtistAlt1
	}

	if artist == "" {
		artist = fields.ArtistAlt2
	}

	return searchResult{
		ID:     fmt.Sprint(fields.ID),
		Title:  fields.Title,
		Artist: artist,
	}, nil
}

const defaultSearchLimit = 20

// ExecuteSearchCommand searches source for query within kind, prints a
// numbered listing, prompts for a selection (e.g. "1,3,5-7"), and feeds
// each selected item into the same id-download path the id-download
// command uses.
func ExecuteSearchCommand(ctx context.Context, cfg *config.Config, source model.Source, kind model.Kind, query string) {
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

	client, err := env.Providers.Get(source)
	if err != nil {
		logger.Fatalf(ctx, "Provider %q is not enabled: %v", source, err)

		return
	}

	var pages []provider.Page

	err = env.RateLimits.WithProviderLimiter(ctx, string(source), func() error {
		var searchErr error
		pages, searchErr = client.Search(ctx, kind, query, defaultSearchLimit)

		return searchErr
	})
	if err != nil {
		logger.Fatalf(ctx, "Search failed: %v", err)

		return
	}

	var results []searchResult

	for _, page := range pages {
		for _, item := range page.Items {
			result, decodeErr := decodeSearchResult(item)
			if decodeErr != nil {
				logger.WarnKV(ctx, "app: skipping unparsable search result", "error", decodeErr)

				continue
			}

			results = append(results, result)
		}
	}

	if len(results) == 0 {
		logger.Info(ctx, "No results found.")

		return
	}

	for i, r := range results {
		fmt.Printf("%2d. %s — %s\n", i+1, r.Artist, r.Title)
	}

	selection := promptSelection(len(results))
	if len(selection) == 0 {
		return
	}

	for _, idx := range selection {
		r := results[idx]
		logger.InfoKV(ctx, "app: downloading selected result", "title", r.Title, "artist", r.Artist)
		ExecuteIDDownloadCommand(ctx, cfg, source, kind, r.ID)
	}
}

// promptSelection reads one line of input like "1,3,5-7" and returns
// the matching zero-based indices into a list of size count, silently
// dropping any that are out of range.
func promptSelection(count int) []int {
	fmt.Print("Select items to download (e.g. 1,3,5-7), or press Enter to cancel: ")

	reader := bufio.NewReader(os.Stdin)

	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)

	if line == "" {
		return nil
	}

	var indices []int

	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			loN, loErr := strconv.Atoi(strings.TrimSpace(lo))
			hiN, hiErr := strconv.Atoi(strings.TrimSpace(hi))

			if loErr != nil || hiErr != nil {
				continue
			}

			for n := loN; n <= hiN; n++ {
				if n >= 1 && n <= count {
					indices = append(indices, n-1)
				}
			}

			continue
		}

		n, convErr := strconv.Atoi(part)
		if convErr != nil || n < 1 || n > count {
			continue
		}

		indices = append(indices, n-1)
	}

	return indices
}
