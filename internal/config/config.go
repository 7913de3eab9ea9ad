// Package config loads and validates streamgrab's YAML configuration file,
// binding it into a typed Config via viper, the way zvuk-grabber does.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"streamgrab/internal/logger"
	"streamgrab/internal/utils"
)

// Source identifies one of the four first-class streaming providers.
type Source string

// Recognized provider sources.
const (
	SourceQobuzStream    Source = "qobuzstream"
	SourceTidalFlow      Source = "tidalflow"
	SourceDeezerBeam     Source = "deezerbeam"
	SourceSoundcloudWave Source = "soundcloudwave"
)

// AllSources lists every first-class provider in a stable order.
//
//nolint:gochecknoglobals // Immutable lookup table.
var AllSources = []Source{SourceQobuzStream, SourceTidalFlow, SourceDeezerBeam, SourceSoundcloudWave}

// GenreMode controls how enrichment-supplied genres are merged into metadata (spec §4.5).
type GenreMode string

const (
	// GenreModeReplace overwrites the provider genres with enrichment genres when non-empty.
	GenreModeReplace GenreMode = "replace"
	// GenreModeAppend deduplicates and appends enrichment genres after the provider genres.
	GenreModeAppend GenreMode = "append"
)

// ProviderConfig holds per-provider settings recognized by the core (spec §9).
type ProviderConfig struct {
	// Enabled toggles whether this provider participates in resolution at all.
	Enabled bool `mapstructure:"enabled"`
	// Credential is the provider-specific auth token, ARL cookie, or similar secret.
	Credential string `mapstructure:"credential"`
	// AppID is used by providers that require an application identifier (e.g. a GraphQL-style client).
	AppID string `mapstructure:"app_id"`
	// Quality is the requested quality tier, 0 (lossy-low) .. 3 (hi-res).
	Quality uint8 `mapstructure:"quality"`
	// RequestsPerMinute is the token-bucket refill rate for this provider's API calls.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// Config holds all application configuration settings.
type Config struct {
	// Providers holds per-provider settings keyed by Source.
	Providers map[Source]*ProviderConfig `mapstructure:"providers"`
	// MaxConnections bounds the global download semaphore, the enrichment semaphore,
	// and (per-provider) the provider concurrency semaphore (spec §5).
	MaxConnections int64 `mapstructure:"max_connections"`
	// LowerQualityIfNotAvailable allows falling back to the highest advertised quality
	// when the requested quality exceeds what a track offers (spec §4.2 allow_lower).
	LowerQualityIfNotAvailable bool `mapstructure:"lower_quality_if_not_available"`
	// ValidateAudio enables the post-download audio validation step (spec §4.4 step 5).
	ValidateAudio bool `mapstructure:"validate_audio"`
	// DeleteInvalidFiles deletes files that fail validation.
	DeleteInvalidFiles bool `mapstructure:"delete_invalid_files"`
	// RetryOnValidationFailure hands a validation failure to the queue's ordinary retry loop
	// instead of marking the track failed; there is no separate inline re-download.
	RetryOnValidationFailure bool `mapstructure:"retry_on_validation_failure"`
	// DownloadFullAlbumForLikedTracks expands liked tracks into full-album downloads (spec §4.2 step 5).
	DownloadFullAlbumForLikedTracks bool `mapstructure:"download_full_album_for_liked_tracks"`
	// GenreMode controls enrichment genre merge policy (spec §4.5).
	GenreMode GenreMode `mapstructure:"genre_mode"`
	// SourceSubdirectories nests each provider's downloads under {folder}/{Source}/.
	SourceSubdirectories bool `mapstructure:"source_subdirectories"`
	// DiscSubdirectories nests multi-disc albums under per-disc folders.
	DiscSubdirectories bool `mapstructure:"disc_subdirectories"`
	// RestrictCharacters restricts filenames to [A-Za-z0-9._ -] when sanitizing.
	RestrictCharacters bool `mapstructure:"restrict_characters"`
	// TruncateTo truncates the track filename stem to this many characters (0 disables).
	TruncateTo int `mapstructure:"truncate_to"`
	// Filters enables artist-discography filters (spec §4.3).
	Filters FilterConfig `mapstructure:"filters"`
	// Enrichment configures the cultural-database enrichment client (spec §4.5).
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	// Lastfm configures the last.fm-playlist import command.
	Lastfm LastfmConfig `mapstructure:"lastfm"`
	// OutputPath is the directory path where downloaded files will be saved.
	OutputPath string `mapstructure:"output_path"`
	// TrackFilenameTemplate is the template for naming individual track files.
	TrackFilenameTemplate string `mapstructure:"track_filename_template"`
	// AlbumFolderTemplate is the template for naming album folders.
	AlbumFolderTemplate string `mapstructure:"album_folder_template"`
	// DownloadLyrics indicates whether to download lyrics for tracks.
	DownloadLyrics bool `mapstructure:"download_lyrics"`
	// ReplaceTracks indicates whether to replace existing track files.
	ReplaceTracks bool `mapstructure:"replace_tracks"`
	// LogLevel specifies the logging verbosity level.
	LogLevel string `mapstructure:"log_level"`
	// DownloadSpeedLimit sets the maximum download speed (e.g., "1MB", "500KB").
	DownloadSpeedLimit string `mapstructure:"download_speed_limit"`
	// RetryAttemptsCount is the number of retry attempts for failed downloads (spec §4.4).
	RetryAttemptsCount int64 `mapstructure:"retry_attempts_count"`
	// LedgerPath is the filesystem path of the sqlite-backed ledger database (spec §4.8).
	LedgerPath string `mapstructure:"ledger_path"`
	// DryRun previews the pipeline without writing files or the ledger.
	DryRun bool `mapstructure:"dry_run"`

	// ParsedDownloadSpeedLimit is the parsed download speed limit in bytes.
	ParsedDownloadSpeedLimit int64
	// ParsedLogLevel is the parsed zap log level.
	ParsedLogLevel zapcore.Level
}

// FilterConfig enables the artist-discography filters from spec §4.3.
type FilterConfig struct {
	Repeats         bool `mapstructure:"repeats"`
	Extras          bool `mapstructure:"extras"`
	Features        bool `mapstructure:"features"`
	NonStudioAlbums bool `mapstructure:"non_studio_albums"`
	NonRemaster     bool `mapstructure:"non_remaster"`
}

// AnyBatchRequiring reports whether any active filter forces batch discovery (spec §4.3: only "repeats").
func (f FilterConfig) AnyBatchRequiring() bool {
	return f.Repeats
}

// LastfmConfig points the lastfm-playlist command at a scrobble-list
// API, and names the provider used to search for each scrobble.
type LastfmConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Source  Source `mapstructure:"source"`
}

// EnrichmentConfig configures the optional cultural-database enrichment client.
type EnrichmentConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url"`
	CacheSize int    `mapstructure:"cache_size"`
}

const (
	// DefaultConfigFilename is the default name of the configuration file.
	DefaultConfigFilename = ".streamgrab.yaml"

	// DefaultTrackFilenameTemplate is the default template for naming downloaded track files.
	DefaultTrackFilenameTemplate = "{{.tracknumberPad}} - {{.title}}"

	// DefaultAlbumFolderTemplate is the default template for naming folders for downloaded albums.
	DefaultAlbumFolderTemplate = "{{.year}} - {{.albumartist}} - {{.albumtitle}}"

	// DefaultMaxLogLength is the default maximum size (in bytes) for HTTP transport debug logs.
	DefaultMaxLogLength = 1 * 1024 * 1024 // 1 MB

	// DefaultLedgerPath is the default filesystem path for the ledger database.
	DefaultLedgerPath = ".streamgrab.ledger.db"

	// minQuality and maxQuality bound the spec's quality ordinal (0..3).
	minQuality = 0
	maxQuality = 3
)

// Static error definitions for better error handling.
var (
	ErrNoProvidersEnabled         = errors.New("at least one provider must be enabled")
	ErrMissingCredential          = errors.New("provider is enabled but missing a credential")
	ErrInvalidQuality             = errors.New("invalid quality")
	ErrUnknownLogLevel            = errors.New("unknown log level")
	ErrInvalidRetryAttempts       = errors.New("retry attempts count must be a positive integer")
	ErrInvalidConcurrentDownloads = errors.New("max_connections must be a positive integer")
	ErrInvalidGenreMode           = errors.New("genre_mode must be 'replace' or 'append'")
)

// LoadConfig loads configuration settings from a YAML file.
func LoadConfig(configFilename string) (*Config, error) {
	if configFilename == "" {
		configFilename = DefaultConfigFilename
	}

	viper.SetConfigFile(configFilename)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config from file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ValidateConfig checks the configuration for validity and sets derived fields.
//
//nolint:funlen,gocognit,cyclop // Validation functions naturally have high complexity and length due to sequential checks.
func ValidateConfig(cfg *Config) error {
	anyEnabled := false

	for source, pc := range cfg.Providers {
		if pc == nil || !pc.Enabled {
			continue
		}

		anyEnabled = true

		if strings.TrimSpace(pc.Credential) == "" {
			return fmt.Errorf("%w: %s", ErrMissingCredential, source)
		}

		if pc.Quality < minQuality || pc.Quality > maxQuality {
			return fmt.Errorf("%w for %s: must be between %d and %d", ErrInvalidQuality, source, minQuality, maxQuality)
		}

		if pc.RequestsPerMinute <= 0 {
			pc.RequestsPerMinute = 60
		}
	}

	if !anyEnabled {
		return ErrNoProvidersEnabled
	}

	if cfg.MaxConnections <= 0 {
		return ErrInvalidConcurrentDownloads
	}

	if cfg.GenreMode == "" {
		cfg.GenreMode = GenreModeAppend
	}

	if cfg.GenreMode != GenreModeReplace && cfg.GenreMode != GenreModeAppend {
		return ErrInvalidGenreMode
	}

	parsedLogLevel, isLogLevelCorrect := logger.ParseLogLevel(cfg.LogLevel)
	if !isLogLevelCorrect {
		return fmt.Errorf("%w: '%s'", ErrUnknownLogLevel, cfg.LogLevel)
	}

	cfg.ParsedLogLevel = parsedLogLevel

	downloadSpeedLimit := strings.TrimSpace(cfg.DownloadSpeedLimit)
	if downloadSpeedLimit != "" && downloadSpeedLimit != "0" {
		parsed, err := humanize.ParseBytes(downloadSpeedLimit)
		if err != nil {
			return fmt.Errorf("failed to parse download speed limit: %w", err)
		}

		cfg.ParsedDownloadSpeedLimit = utils.SafeUint64ToInt64(parsed)
	}

	if cfg.RetryAttemptsCount <= 0 {
		return ErrInvalidRetryAttempts
	}

	if cfg.LedgerPath == "" {
		cfg.LedgerPath = DefaultLedgerPath
	}

	if cfg.TrackFilenameTemplate == "" {
		cfg.TrackFilenameTemplate = DefaultTrackFilenameTemplate
	}

	if cfg.AlbumFolderTemplate == "" {
		cfg.AlbumFolderTemplate = DefaultAlbumFolderTemplate
	}

	return nil
}

// Enabled reports whether the given provider source is configured and active.
func (c *Config) Enabled(source Source) bool {
	pc, ok := c.Providers[source]

	return ok && pc != nil && pc.Enabled
}

// ErrUnknownSource is returned by ParseSource for any string that isn't
// one of AllSources.
var ErrUnknownSource = errors.New("config: unknown provider source")

// ParseSource validates a CLI- or config-supplied source string against
// AllSources, so callers outside this package never hand-roll the
// comparison.
func ParseSource(raw string) (Source, error) {
	for _, s := range AllSources {
		if string(s) == raw {
			return s, nil
		}
	}

	return "", fmt.Errorf("%w: %q (expected one of %v)", ErrUnknownSource, raw, AllSources)
}

// ProviderQuality returns the requested quality tier for a provider, defaulting to hi-res.
func (c *Config) ProviderQuality(source Source) uint8 {
	if pc, ok := c.Providers[source]; ok && pc != nil {
		return pc.Quality
	}

	return maxQuality
}

// SaveConfig persists AuthToken-style credential updates while preserving YAML ordering and comments.
func SaveConfig(cfg *Config, source Source, credential string) error {
	configFile := getConfigFilePath()

	originalContent, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var node yaml.Node
	if err = yaml.Unmarshal(originalContent, &node); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	updateProviderCredentialInNode(&node, string(source), credential)

	newContent, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err = os.WriteFile(configFile, newContent, 0o644); err != nil { //nolint:gosec,mnd // Config files are not secrets-at-rest here.
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func getConfigFilePath() string {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		return DefaultConfigFilename
	}

	return configFile
}

// updateProviderCredentialInNode walks providers.<source>.credential and rewrites its value in place.
func updateProviderCredentialInNode(node *yaml.Node, source, credential string) {
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return
	}

	root := node.Content[0]

	providers := findMapValue(root, "providers")
	if providers == nil || providers.Kind != yaml.MappingNode {
		return
	}

	providerNode := findMapValue(providers, source)
	if providerNode == nil || providerNode.Kind != yaml.MappingNode {
		return
	}

	credentialNode := findMapValue(providerNode, "credential")
	if credentialNode == nil {
		return
	}

	credentialNode.Value = credential

	if credentialNode.Style == 0 {
		credentialNode.Style = yaml.DoubleQuotedStyle
	}
}

func findMapValue(mapNode *yaml.Node, key string) *yaml.Node {
	for i := 0; i < len(mapNode.Content); i += 2 {
		if mapNode.Content[i].Value == key {
			return mapNode.Content[i+1]
		}
	}

	return nil
}
