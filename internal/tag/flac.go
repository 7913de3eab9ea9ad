package tag

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // cover art may arrive as PNG; decode support only
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	"streamgrab/internal/logger"
)

// writeFLAC embeds Vorbis comments and (optionally) cover art into a
// FLAC file, uppercasing the metadata field names into Vorbis comment
// keys as spec §4.6 requires, with multi-value artist/composer lists
// passed as repeated native Vorbis comment entries rather than a single
// joined string.
func writeFLAC(ctx context.Context, req *Request) error {
	f, err := flac.ParseFile(filepath.Clean(req.TrackPath))
	if err != nil {
		return fmt.Errorf("tag: parse flac: %w", err)
	}

	comment, idx, err := extractVorbisComment(f)
	if err != nil {
		return err
	}

	if comment == nil {
		comment = flacvorbis.New()
	}

	if err := addFLACTags(comment, req); err != nil {
		return fmt.Errorf("tag: add flac tags: %w", err)
	}

	marshaled := comment.Marshal()
	if idx >= 0 {
		f.Meta[idx] = &marshaled
	} else {
		f.Meta = append(f.Meta, &marshaled)
	}

	if req.CoverPath != "" {
		if err := embedFLACCover(ctx, f, req.CoverPath); err != nil {
			return err
		}
	}

	if err := f.Save(req.TrackPath); err != nil {
		return fmt.Errorf("tag: save flac: %w", err)
	}

	return nil
}

func extractVorbisComment(f *flac.File) (*flacvorbis.MetaDataBlockVorbisComment, int, error) {
	for i, m := range f.Meta {
		if m.Type != flac.VorbisComment {
			continue
		}

		comment, err := flacvorbis.ParseFromMetaDataBlock(*m)
		if err == nil {
			return comment, i, nil
		}
	}

	return nil, -1, nil
}

func addFLACTags(comment *flacvorbis.MetaDataBlockVorbisComment, req *Request) error {
	t := req.Track
	album := t.Album

	singleValued := map[string]string{
		"TITLE":       t.Title,
		"ALBUM":       album.Title,
		"ALBUMARTIST": album.AlbumArtist,
		"COPYRIGHT":   album.Copyright,
		"DATE":        album.Date.Format("2006-01-02"),
		"TRACKNUMBER": strconv.Itoa(t.TrackNumber),
		"DISCNUMBER":  strconv.Itoa(t.DiscNumber),
		"TOTALTRACKS": strconv.Itoa(album.TrackTotal),
		"TOTALDISCS":  strconv.Itoa(album.DiscTotal),
		"ISRC":        t.ISRC,
		"LYRICS":      t.Lyrics,
	}

	for k, v := range singleValued {
		if v == "" || v == "0" {
			continue
		}

		if err := comment.Add(k, v); err != nil {
			return err
		}
	}

	multiValued := map[string][]string{
		"ARTIST":   orSingle(t.Artists, t.Artist),
		"GENRE":    album.Genres,
		"COMPOSER": t.Composer,
	}

	for k, values := range multiValued {
		for _, v := range values {
			if v == "" {
				continue
			}

			if err := comment.Add(k, v); err != nil {
				return err
			}
		}
	}

	return nil
}

func orSingle(multi []string, single string) []string {
	if len(multi) > 0 {
		return multi
	}

	if single == "" {
		return nil
	}

	return []string{single}
}

func embedFLACCover(ctx context.Context, f *flac.File, coverPath string) error {
	data, err := os.ReadFile(filepath.Clean(coverPath))
	if err != nil {
		return fmt.Errorf("tag: read cover: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(coverPath))

	if len(data) > maxFLACPictureSize {
		logger.WarnKV(ctx, "tag: cover exceeds FLAC picture limit, resizing", "path", coverPath, "size", len(data))

		resized, resizedMIME, err := resizeCoverUnder(data, maxFLACPictureSize)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCoverTooLarge, err)
		}

		data, mimeType = resized, resizedMIME
	}

	picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "", data, mimeType)
	if err != nil {
		return fmt.Errorf("tag: build flac picture: %w", err)
	}

	marshaled := picture.Marshal()
	f.Meta = append(f.Meta, &marshaled)

	return nil
}

// resizeCoverUnder re-encodes an oversized cover as JPEG at progressively
// lower quality until it fits under limit, implementing the Open
// Question (c) decision: resize and continue rather than fail the tag
// step outright.
func resizeCoverUnder(data []byte, limit int) ([]byte, string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode cover for resize: %w", err)
	}

	for quality := 85; quality >= 20; quality -= 15 {
		var buf bytes.Buffer

		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("re-encode cover: %w", err)
		}

		if buf.Len() <= limit {
			return buf.Bytes(), "image/jpeg", nil
		}
	}

	return nil, "", fmt.Errorf("cover still exceeds %d bytes after lowest-quality re-encode", limit)
}
