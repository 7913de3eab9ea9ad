package tag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oshokin/id3v2/v2"
)

// writeMP3 writes ID3v2.3 frames per spec §4.6: custom tags go through
// TXXX:NAME, and source IDs are emitted as
// TXXX:{SOURCE}_{TRACK|ALBUM|ARTIST}_ID.
func writeMP3(ctx context.Context, req *Request) error {
	//nolint:exhaustruct // Parse disabled; ParseFrames is intentionally left zero.
	f, err := id3v2.Open(req.TrackPath, id3v2.Options{Parse: false})
	if err != nil {
		return fmt.Errorf("tag: open mp3: %w", err)
	}
	defer f.Close()

	f.SetDefaultEncoding(id3v2.EncodingUTF8)
	addMP3Tags(f, req)

	if req.CoverPath != "" {
		if err := embedMP3Cover(f, req.CoverPath); err != nil {
			return err
		}
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("tag: save mp3: %w", err)
	}

	_ = ctx // reserved for future retry/telemetry hooks; writes are synchronous today

	return nil
}

func addMP3Tags(f *id3v2.Tag, req *Request) {
	t := req.Track
	album := t.Album

	f.SetTitle(t.Title)
	f.SetAlbum(album.Title)
	f.SetArtist(t.Artist)
	f.SetYear(strconv.Itoa(album.Year))

	if len(album.Genres) > 0 {
		f.SetGenre(strings.Join(album.Genres, ", "))
	}

	if album.TrackTotal > 0 {
		f.AddTextFrame(f.CommonID("Track number/Position in set"), f.DefaultEncoding(),
			fmt.Sprintf("%d/%d", t.TrackNumber, album.TrackTotal))
	}

	if album.DiscTotal > 0 {
		f.AddTextFrame(f.CommonID("Part of a set"), f.DefaultEncoding(),
			fmt.Sprintf("%d/%d", t.DiscNumber, album.DiscTotal))
	}

	f.AddTextFrame(f.CommonID("Band/Orchestra/Accompaniment"), f.DefaultEncoding(), album.AlbumArtist)
	f.AddTextFrame(f.CommonID("Publisher"), f.DefaultEncoding(), album.Copyright)

	addTXXX(f, "COMPOSER", strings.Join(t.Composer, ", "))
	addTXXX(f, "ISRC", t.ISRC)
	addTXXX(f, fmt.Sprintf("%s_TRACK_ID", strings.ToUpper(string(t.SourcePlatform))), t.SourceTrackID)
	addTXXX(f, fmt.Sprintf("%s_ALBUM_ID", strings.ToUpper(string(t.SourcePlatform))), t.SourceAlbumID)

	if t.SourceArtistID != "" {
		addTXXX(f, fmt.Sprintf("%s_ARTIST_ID", strings.ToUpper(string(t.SourcePlatform))), t.SourceArtistID)
	}

	if lyrics := strings.TrimSpace(t.Lyrics); lyrics != "" {
		//nolint:exhaustruct // ContentDescriptor intentionally empty; plain lyrics only.
		f.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding: id3v2.EncodingUTF8,
			Lyrics:   lyrics,
			Language: id3v2.EnglishISO6392Code,
		})
	}
}

func addTXXX(f *id3v2.Tag, name, value string) {
	if value == "" {
		return
	}

	f.AddFrame(fmt.Sprintf("TXXX:%s", name), id3v2.TextFrame{
		Encoding: f.DefaultEncoding(),
		Text:     value,
	})
}

func embedMP3Cover(f *id3v2.Tag, coverPath string) error {
	data, err := os.ReadFile(filepath.Clean(coverPath))
	if err != nil {
		return fmt.Errorf("tag: read cover: %w", err)
	}

	mimeType := "image/jpeg"
	if strings.HasSuffix(strings.ToLower(coverPath), ".png") {
		mimeType = "image/png"
	}

	//nolint:exhaustruct // Description intentionally empty for cover images.
	f.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    mimeType,
		PictureType: id3v2.PTFrontCover,
		Picture:     data,
	})

	return nil
}
