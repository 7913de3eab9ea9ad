package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func validProviders() map[Source]*ProviderConfig {
	return map[Source]*ProviderConfig{
		SourceQobuzStream: {Enabled: true, Credential: "token", Quality: 2},
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		filename      string
		content       string
		expectError   bool
		expectedError string
	}{
		{
			name:     "valid config file",
			filename: "valid_config.yaml",
			content: `
providers:
  qobuzstream:
    enabled: true
    credential: "test_token"
    quality: 2
max_connections: 4
retry_attempts_count: 3
log_level: "info"
`,
			expectError: false,
		},
		{
			name:          "non-existent file",
			filename:      "non_existent.yaml",
			expectError:   true,
			expectedError: "failed to read config from file",
		},
		{
			name:          "invalid yaml",
			filename:      "invalid.yaml",
			content:       "invalid: yaml: content: [unclosed",
			expectError:   true,
			expectedError: "failed to read config from file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			configPath := filepath.Join(tempDir, tt.filename)

			if tt.content != "" {
				require.NoError(t, os.WriteFile(configPath, []byte(tt.content), 0o600))
			}

			cfg, err := LoadConfig(configPath)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				assert.Nil(t, cfg)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			assert.Equal(t, "test_token", cfg.Providers[SourceQobuzStream].Credential)
			assert.Equal(t, uint8(2), cfg.Providers[SourceQobuzStream].Quality)
		})
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		config      *Config
		expectError bool
		errorIs     error
		errorMsg    string
	}{
		{
			name: "valid config",
			config: &Config{
				Providers:          validProviders(),
				MaxConnections:     1,
				RetryAttemptsCount: 3,
				LogLevel:           "info",
			},
			expectError: false,
		},
		{
			name: "no providers enabled",
			config: &Config{
				Providers:          map[Source]*ProviderConfig{},
				MaxConnections:     1,
				RetryAttemptsCount: 3,
				LogLevel:           "info",
			},
			expectError: true,
			errorIs:     ErrNoProvidersEnabled,
		},
		{
			name: "missing credential",
			config: &Config{
				Providers: map[Source]*ProviderConfig{
					SourceQobuzStream: {Enabled: true, Credential: "  ", Quality: 2},
				},
				MaxConnections:     1,
				RetryAttemptsCount: 3,
				LogLevel:           "info",
			},
			expectError: true,
			errorIs:     ErrMissingCredential,
		},
		{
			name: "lowest quality with negative requests per minute",
			config: &Config{
				Providers: map[Source]*ProviderConfig{
					SourceQobuzStream: {Enabled: true, Credential: "t", Quality: 0, RequestsPerMinute: -1},
				},
				MaxConnections:     1,
				RetryAttemptsCount: 3,
				LogLevel:           "info",
			},
			expectError: false,
		},
		{
			name: "quality too high",
			config: &Config{
				Providers: map[Source]*ProviderConfig{
					SourceQobuzStream: {Enabled: true, Credential: "t", Quality: 9},
				},
				MaxConnections:     1,
				RetryAttemptsCount: 3,
				LogLevel:           "info",
			},
			expectError: true,
			errorIs:     ErrInvalidQuality,
		},
		{
			name: "invalid max_connections",
			config: &Config{
				Providers:          validProviders(),
				MaxConnections:     0,
				RetryAttemptsCount: 3,
				LogLevel:           "info",
			},
			expectError: true,
			errorIs:     ErrInvalidConcurrentDownloads,
		},
		{
			name: "invalid log level",
			config: &Config{
				Providers:          validProviders(),
				MaxConnections:     1,
				RetryAttemptsCount: 3,
				LogLevel:           "deafening",
			},
			expectError: true,
			errorIs:     ErrUnknownLogLevel,
		},
		{
			name: "invalid retry attempts",
			config: &Config{
				Providers:          validProviders(),
				MaxConnections:     1,
				RetryAttemptsCount: 0,
				LogLevel:           "info",
			},
			expectError: true,
			errorIs:     ErrInvalidRetryAttempts,
		},
		{
			name: "invalid genre mode",
			config: &Config{
				Providers:          validProviders(),
				MaxConnections:     1,
				RetryAttemptsCount: 3,
				LogLevel:           "info",
				GenreMode:          "overwrite",
			},
			expectError: true,
			errorIs:     ErrInvalidGenreMode,
		},
		{
			name: "invalid download speed limit",
			config: &Config{
				Providers:          validProviders(),
				MaxConnections:     1,
				RetryAttemptsCount: 3,
				LogLevel:           "info",
				DownloadSpeedLimit: "fast please",
			},
			expectError: true,
			errorMsg:    "failed to parse download speed limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateConfig(tt.config)

			switch {
			case tt.errorIs != nil:
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.errorIs)
			case tt.errorMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			case tt.expectError:
				require.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, zapcore.InfoLevel, tt.config.ParsedLogLevel)
				assert.Equal(t, GenreModeAppend, tt.config.GenreMode)
				assert.Equal(t, DefaultLedgerPath, tt.config.LedgerPath)
				assert.Equal(t, DefaultTrackFilenameTemplate, tt.config.TrackFilenameTemplate)
				assert.Equal(t, DefaultAlbumFolderTemplate, tt.config.AlbumFolderTemplate)
			}
		})
	}
}

func TestValidateConfigDownloadSpeedLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		speedLimit    string
		expectedBytes int64
	}{
		{name: "empty limit", speedLimit: "", expectedBytes: 0},
		{name: "zero limit", speedLimit: "0", expectedBytes: 0},
		{name: "1KB limit", speedLimit: "1KB", expectedBytes: 1000},
		{name: "1MB limit", speedLimit: "1MB", expectedBytes: 1000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &Config{
				Providers:          validProviders(),
				MaxConnections:     1,
				RetryAttemptsCount: 3,
				LogLevel:           "info",
				DownloadSpeedLimit: tt.speedLimit,
			}

			require.NoError(t, ValidateConfig(cfg))
			assert.Equal(t, tt.expectedBytes, cfg.ParsedDownloadSpeedLimit)
		})
	}
}

func TestParseSource(t *testing.T) {
	t.Parallel()

	for _, s := range AllSources {
		parsed, err := ParseSource(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseSource("not-a-provider")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestEnabled(t *testing.T) {
	t.Parallel()

	cfg := &Config{Providers: validProviders()}
	assert.True(t, cfg.Enabled(SourceQobuzStream))
	assert.False(t, cfg.Enabled(SourceTidalFlow))
}

func TestProviderQuality(t *testing.T) {
	t.Parallel()

	cfg := &Config{Providers: validProviders()}
	assert.Equal(t, uint8(2), cfg.ProviderQuality(SourceQobuzStream))
	assert.Equal(t, uint8(maxQuality), cfg.ProviderQuality(SourceTidalFlow))
}

func TestFilterConfigAnyBatchRequiring(t *testing.T) {
	t.Parallel()

	assert.True(t, FilterConfig{Repeats: true}.AnyBatchRequiring())
	assert.False(t, FilterConfig{Extras: true}.AnyBatchRequiring())
}
