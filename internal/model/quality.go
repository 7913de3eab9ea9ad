package model

import "strings"

// Quality is the ordinal audio quality tier shared by every provider.
// Unlike the teacher's three-tier TrackQuality, streamgrab's tier set
// starts at 0 so a "lossy-low" option is representable for providers
// that offer it.
type Quality uint8

const (
	// Quality0 is the lowest lossy tier (e.g. 128kbps MP3/AAC).
	Quality0 Quality = iota
	// Quality1 is the high lossy tier (e.g. 320kbps MP3/AAC).
	Quality1
	// Quality2 is CD-equivalent lossless (FLAC 16-bit).
	Quality2
	// Quality3 is hi-res lossless (FLAC 24-bit).
	Quality3
)

// Container is the file container a Downloadable actually arrived in.
// It may differ from what AlbumInfo.Quality advertises; the resolver
// reconciles TrackInfo.Container to the Downloadable's real extension
// after the byte transfer begins.
type Container string

// Recognized containers.
const (
	ContainerFLAC Container = "FLAC"
	ContainerMP4  Container = "MP4"
	ContainerMP3  Container = "MP3"
)

// String renders a Quality tier for logs and templates.
func (q Quality) String() string {
	switch q {
	case Quality0:
		return "lossy-low"
	case Quality1:
		return "lossy-high"
	case Quality2:
		return "cd-lossless"
	case Quality3:
		return "hi-res"
	default:
		return "unknown"
	}
}

// ParseQuality converts a config value ("0".."3") into a Quality. Any
// unrecognized input yields Quality0 and ok=false so callers can decide
// whether to default or fail validation.
func ParseQuality(s string) (Quality, bool) {
	switch strings.TrimSpace(s) {
	case "0":
		return Quality0, true
	case "1":
		return Quality1, true
	case "2":
		return Quality2, true
	case "3":
		return Quality3, true
	default:
		return Quality0, false
	}
}

// ExpectedContainer returns the container the §3 invariants mandate for
// a given quality tier, or "" for tiers that permit either MP3 or MP4
// (the caller decides between them from provider capability).
func (q Quality) ExpectedContainer() Container {
	switch q {
	case Quality3, Quality2:
		return ContainerFLAC
	default:
		return ""
	}
}

// ExpectedBitDepth returns the bit depth the §3 invariants mandate for
// lossless tiers, or 0 when bit depth is not meaningful (lossy tiers).
func (q Quality) ExpectedBitDepth() uint8 {
	switch q {
	case Quality3:
		return 24
	case Quality2:
		return 16
	default:
		return 0
	}
}
