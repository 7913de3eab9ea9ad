// Package tag implements the Tag Writer from spec.md §4.6: a
// container-specific encoder selected by the caller's chosen Quality,
// each producing the exact key table the spec names. FLAC and MP3 are
// grounded on the teacher's go-flac/id3v2 usage; MP4 has no equivalent
// in the teacher or the rest of the pack, so its atom writer is a
// from-scratch, stdlib-only implementation (see DESIGN.md's dropped-
// dependency note).
package tag

import (
	"context"
	"errors"
	"fmt"

	"streamgrab/internal/model"
)

// ErrEmptyTrackPath mirrors the teacher's guard against writing tags to
// an unspecified path.
var ErrEmptyTrackPath = errors.New("tag: track path cannot be empty")

// ErrTaggingFailed is the spec §7 TaggingError kind: per-item, terminal.
// Write wraps every encoder failure in this sentinel except
// ErrCoverTooLarge, which it returns unwrapped.
var ErrTaggingFailed = errors.New("tag: tagging failed")

// ErrCoverTooLarge is returned by the FLAC encoder when a cover image
// exceeds the 16 MiB - 1 ceiling spec §4.6 sets, after the resize
// fallback (spec §9(c)) has already been attempted.
var ErrCoverTooLarge = errors.New("tag: cover art exceeds FLAC picture block limit")

// maxFLACPictureSize is 16 MiB - 1, the ceiling spec §4.6 documents.
const maxFLACPictureSize = 16*1024*1024 - 1

// Request carries everything a container encoder needs to tag one
// file: the track metadata (which already carries its album by
// reference) and an optional cover image path.
type Request struct {
	TrackPath string
	CoverPath string
	Track     *model.TrackMetadata
}

// Write selects a container-specific encoder by the track's resolved
// container and writes its tags in place. Any failure is wrapped in
// ErrTaggingFailed so callers can classify it with errors.Is without
// caring which encoder produced it, except ErrCoverTooLarge, which is
// returned unwrapped and so is matched only by its own sentinel.
func Write(ctx context.Context, req *Request) error {
	if req.TrackPath == "" {
		return fmt.Errorf("%w: %w", ErrTaggingFailed, ErrEmptyTrackPath)
	}

	var err error

	switch req.Track.Info.Container {
	case model.ContainerFLAC:
		err = writeFLAC(ctx, req)
	case model.ContainerMP4:
		err = writeMP4(ctx, req)
	case model.ContainerMP3:
		err = writeMP3(ctx, req)
	default:
		err = fmt.Errorf("tag: unsupported container %q", req.Track.Info.Container)
	}

	if err == nil {
		return nil
	}

	if errors.Is(err, ErrCoverTooLarge) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrTaggingFailed, err)
}
