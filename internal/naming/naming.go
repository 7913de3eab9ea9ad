// Package naming renders the track filename and album folder name
// templates spec.md §4.6 names, grounded on the teacher's
// TemplateManager: a text/template per concern, parsed once from
// config, falling back to the packaged default template if the
// operator's custom one fails to parse or execute.
package naming

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"
	"text/template"

	"streamgrab/internal/config"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
	"streamgrab/internal/utils"
)

// Manager renders filenames and folder names from the track/album
// template strings in config, sanitizing the result for the
// filesystem.
type Manager struct {
	cfg *config.Config

	trackTemplate        *template.Template
	albumTemplate        *template.Template
	defaultTrackTemplate *template.Template
	defaultAlbumTemplate *template.Template
}

// New builds a Manager, parsing cfg's custom templates and the
// packaged defaults once up front.
func New(ctx context.Context, cfg *config.Config) *Manager {
	defaultTrack := template.Must(template.New("defaultTrack").Parse(config.DefaultTrackFilenameTemplate))
	defaultAlbum := template.Must(template.New("defaultAlbum").Parse(config.DefaultAlbumFolderTemplate))

	trackTemplate, err := template.New("track").Parse(cfg.TrackFilenameTemplate)
	if err != nil {
		logger.WarnKV(ctx, "naming: failed to parse track filename template, using default", "error", err)

		trackTemplate = nil
	}

	albumTemplate, err := template.New("album").Parse(cfg.AlbumFolderTemplate)
	if err != nil {
		logger.WarnKV(ctx, "naming: failed to parse album folder template, using default", "error", err)

		albumTemplate = nil
	}

	return &Manager{
		cfg:                  cfg,
		trackTemplate:        trackTemplate,
		albumTemplate:        albumTemplate,
		defaultTrackTemplate: defaultTrack,
		defaultAlbumTemplate: defaultAlbum,
	}
}

// TrackFilename renders track's filename (without extension or
// directory), padding the track number the way the default template
// expects.
func (m *Manager) TrackFilename(track *model.TrackMetadata) string {
	tags := trackTags(track)

	return m.render(m.trackTemplate, m.defaultTrackTemplate, tags)
}

// AlbumFolderName renders album's folder name.
func (m *Manager) AlbumFolderName(album *model.AlbumMetadata) string {
	tags := albumTags(album)

	return m.render(m.albumTemplate, m.defaultAlbumTemplate, tags)
}

func (m *Manager) render(custom, fallback *template.Template, tags map[string]string) string {
	var buffer bytes.Buffer

	if custom != nil {
		if err := custom.Execute(&buffer, tags); err == nil {
			return m.sanitize(html.UnescapeString(buffer.String()))
		}

		buffer.Reset()
	}

	_ = fallback.Execute(&buffer, tags) //nolint:errcheck // the packaged default template is always valid

	return m.sanitize(html.UnescapeString(buffer.String()))
}

func (m *Manager) sanitize(name string) string {
	if m.cfg.TruncateTo > 0 && len(name) > m.cfg.TruncateTo {
		name = strings.TrimSpace(name[:m.cfg.TruncateTo])
	}

	if m.cfg.RestrictCharacters {
		name = restrictedCharsOnly(name)
	}

	return utils.SanitizeFilename(name)
}

func trackTags(t *model.TrackMetadata) map[string]string {
	return map[string]string{
		"title":          t.Title,
		"artist":         t.Artist,
		"tracknumber":    fmt.Sprintf("%d", t.TrackNumber),
		"tracknumberPad": fmt.Sprintf("%02d", t.TrackNumber),
		"discnumber":     fmt.Sprintf("%d", t.DiscNumber),
		"albumtitle":     t.Album.Title,
		"albumartist":    t.Album.AlbumArtist,
		"year":           fmt.Sprintf("%d", t.Album.Year),
	}
}

func albumTags(a *model.AlbumMetadata) map[string]string {
	return map[string]string{
		"albumtitle":  a.Title,
		"albumartist": a.AlbumArtist,
		"year":        fmt.Sprintf("%d", a.Year),
		"label":       a.Label,
	}
}

func restrictedCharsOnly(name string) string {
	var b strings.Builder

	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == ' ', r == '-':
			b.WriteRune(r)
		}
	}

	return b.String()
}
