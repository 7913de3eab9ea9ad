package tag

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// writeMP4 rewrites the `moov/udta/meta/ilst` atom of an MP4/M4A
// container with the fixed iTunes atom key table spec §4.6 requires:
// standard atoms (`\xa9nam`, `\xa9ART`, ...), `trkn`/`disk` as packed
// (n, total) pairs, a `covr` atom for cover art, and
// `----:com.apple.iTunes:*` freeform atoms for everything without a
// standard iTunes equivalent (composer list, source IDs).
//
// No example in the retrieval pack wires a third-party MP4 tag-writing
// library (the ecosystem options are either cgo bindings to libtag or
// unmaintained), so this is a from-scratch, dependency-free atom
// writer; see DESIGN.md's dropped-dependency note.
func writeMP4(_ context.Context, req *Request) error {
	raw, err := os.ReadFile(filepath.Clean(req.TrackPath))
	if err != nil {
		return fmt.Errorf("tag: read mp4: %w", err)
	}

	ilst, err := buildIlst(req)
	if err != nil {
		return fmt.Errorf("tag: build ilst: %w", err)
	}

	rewritten, err := replaceIlstAtom(raw, ilst)
	if err != nil {
		return fmt.Errorf("tag: rewrite mp4 atoms: %w", err)
	}

	if err := os.WriteFile(req.TrackPath, rewritten, 0o644); err != nil { //nolint:gosec // audio files are not executable content
		return fmt.Errorf("tag: write mp4: %w", err)
	}

	return nil
}

// atom is a minimal box: its four-byte type and raw payload. Box size
// (8 + len(payload)) is computed at serialization time, so callers
// never track it themselves.
type atom struct {
	typ     string
	payload []byte
}

func (a atom) marshal() []byte {
	buf := make([]byte, 8+len(a.payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf))) //nolint:gosec // mp4 payloads are well within uint32 range
	copy(buf[4:8], a.typ)
	copy(buf[8:], a.payload)

	return buf
}

// dataAtom wraps value in an iTunes `data` atom with the given
// typeIndicator: 1 (UTF-8 text), 0 (binary, for trkn/disk), or 13/14
// (JPEG/PNG cover), the handful of flavors the key table below needs.
func dataAtom(typeIndicator uint32, value []byte) atom {
	payload := make([]byte, 8+len(value))
	binary.BigEndian.PutUint32(payload[0:4], typeIndicator)
	// locale, always 0.
	copy(payload[8:], value)

	return atom{typ: "data", payload: payload}
}

func textAtom(key, value string) atom {
	if value == "" {
		return atom{}
	}

	data := dataAtom(1, []byte(value))

	return atom{typ: key, payload: data.marshal()}
}

func freeformAtom(name, value string) atom {
	if value == "" {
		return atom{}
	}

	mean := atom{typ: "mean", payload: append([]byte{0, 0, 0, 0}, []byte("com.apple.iTunes")...)}
	name2 := atom{typ: "name", payload: append([]byte{0, 0, 0, 0}, []byte(name)...)}
	data := dataAtom(1, []byte(value))

	var buf bytes.Buffer
	buf.Write(mean.marshal())
	buf.Write(name2.marshal())
	buf.Write(data.marshal())

	return atom{typ: "----", payload: buf.Bytes()}
}

// trknAtom packs (trackNumber, trackTotal) into the fixed-width layout
// iTunes expects: 2 reserved bytes, uint16 number, uint16 total, 2
// reserved bytes.
func trknAtom(typ string, number, total int) atom {
	if number == 0 && total == 0 {
		return atom{}
	}

	packed := make([]byte, 8)
	binary.BigEndian.PutUint16(packed[2:4], uint16(number)) //nolint:gosec // track/disc numbers fit uint16
	binary.BigEndian.PutUint16(packed[4:6], uint16(total))  //nolint:gosec // track/disc totals fit uint16

	data := dataAtom(0, packed)

	return atom{typ: typ, payload: data.marshal()}
}

func coverAtom(cover []byte, isPNG bool) atom {
	if len(cover) == 0 {
		return atom{}
	}

	typeIndicator := uint32(13) // JPEG
	if isPNG {
		typeIndicator = 14
	}

	data := dataAtom(typeIndicator, cover)

	return atom{typ: "covr", payload: data.marshal()}
}

// buildIlst assembles the full `ilst` atom payload from a Request,
// following spec §4.6's MP4 key table.
func buildIlst(req *Request) ([]byte, error) {
	t := req.Track
	album := t.Album

	atoms := []atom{
		textAtom("\xa9nam", t.Title),
		textAtom("\xa9alb", album.Title),
		textAtom("\xa9ART", t.Artist),
		textAtom("aART", album.AlbumArtist),
		textAtom("\xa9day", strconv.Itoa(album.Year)),
		textAtom("\xa9gen", joinFirst(album.Genres)),
		textAtom("cprt", album.Copyright),
		trknAtom("trkn", t.TrackNumber, album.TrackTotal),
		trknAtom("disk", t.DiscNumber, album.DiscTotal),
		freeformAtom("COMPOSER", joinFirst(t.Composer)),
		freeformAtom(fmt.Sprintf("%s_TRACK_ID", string(t.SourcePlatform)), t.SourceTrackID),
		freeformAtom(fmt.Sprintf("%s_ALBUM_ID", string(t.SourcePlatform)), t.SourceAlbumID),
	}

	if req.CoverPath != "" {
		cover, isPNG, err := readCover(req.CoverPath)
		if err != nil {
			return nil, err
		}

		atoms = append(atoms, coverAtom(cover, isPNG))
	}

	var buf bytes.Buffer

	for _, a := range atoms {
		if a.typ == "" {
			continue
		}

		buf.Write(a.marshal())
	}

	return buf.Bytes(), nil
}

func joinFirst(values []string) string {
	if len(values) == 0 {
		return ""
	}

	return values[0]
}

func readCover(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, false, fmt.Errorf("tag: read cover: %w", err)
	}

	isPNG := len(data) > 4 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G'

	return data, isPNG, nil
}

// replaceIlstAtom walks raw's top-level boxes to find moov/udta/meta,
// replaces (or inserts) its ilst child with ilstPayload, and rewrites
// every ancestor box's size field. MP4 is a strictly nested length-
// prefixed format, so a full parse isn't needed: only the chain from
// the file root down to `ilst` has to be touched.
func replaceIlstAtom(raw []byte, ilstPayload []byte) ([]byte, error) {
	_, moovStart, moovEnd, err := findAtom(raw, "moov", 0, len(raw))
	if err != nil {
		return nil, err
	}

	_, udtaStart, udtaEnd, err := findAtom(raw, "udta", moovStart+8, moovEnd)
	if err != nil {
		// No udta atom: append a freshly built udta/meta/ilst chain at
		// the end of moov instead of failing the tag step outright.
		return insertUdta(raw, moovStart, moovEnd, ilstPayload)
	}

	_, metaStart, metaEnd, err := findAtom(raw, "meta", udtaStart+8, udtaEnd)
	if err != nil {
		return nil, err
	}

	// The `meta` atom's payload begins with a 4-byte version/flags
	// field before its children start.
	_, ilstStart, ilstEnd, err := findAtom(raw, "ilst", metaStart+12, metaEnd)

	newIlst := atom{typ: "ilst", payload: ilstPayload}.marshal()

	var (
		out   []byte
		delta int
	)

	if err != nil {
		out = spliceAt(raw, metaEnd, metaEnd, newIlst)
		delta = len(newIlst)
	} else {
		out = spliceAt(raw, ilstStart, ilstEnd, newIlst)
		delta = len(newIlst) - (ilstEnd - ilstStart)
	}

	return fixUpSizes(out, moovStart, []int{udtaStart, metaStart}, delta), nil
}

func insertUdta(raw []byte, moovStart, moovEnd int, ilstPayload []byte) ([]byte, error) {
	ilst := atom{typ: "ilst", payload: ilstPayload}.marshal()
	meta := atom{typ: "meta", payload: append([]byte{0, 0, 0, 0}, ilst...)}.marshal()
	udta := atom{typ: "udta", payload: meta}.marshal()

	out := spliceAt(raw, moovEnd, moovEnd, udta)

	return fixUpSizes(out, moovStart, nil, 0), nil
}

// findAtom scans sibling boxes in raw[start:end] for one whose type
// matches typ, returning its payload slice and the byte offsets of the
// whole box (start inclusive, end exclusive).
func findAtom(raw []byte, typ string, start, end int) (payload []byte, boxStart, boxEnd int, err error) {
	pos := start

	for pos+8 <= end {
		size := int(binary.BigEndian.Uint32(raw[pos : pos+4]))
		boxType := string(raw[pos+4 : pos+8])

		if size < 8 || pos+size > end {
			return nil, 0, 0, fmt.Errorf("tag: malformed mp4 box %q at offset %d", boxType, pos)
		}

		if boxType == typ {
			return raw[pos+8 : pos+size], pos, pos + size, nil
		}

		pos += size
	}

	return nil, 0, 0, fmt.Errorf("tag: %q atom not found", typ)
}

// spliceAt replaces raw[oldStart:oldEnd] with replacement.
func spliceAt(raw []byte, oldStart, oldEnd int, replacement []byte) []byte {
	out := make([]byte, 0, len(raw)-(oldEnd-oldStart)+len(replacement))
	out = append(out, raw[:oldStart]...)
	out = append(out, replacement...)
	out = append(out, raw[oldEnd:]...)

	return out
}

// fixUpSizes grows every box in ancestors (udta, meta: boxes nested
// inside moov, not themselves running to EOF) by delta bytes, then
// fixes up moov itself by recomputing its size against EOF. moov is
// always the last top-level box in the straight remuxed output every
// provider client in this codebase produces (moov precedes mdat, no
// trailer atoms follow moov), so unlike udta/meta it needs no delta
// tracking: "moov runs to EOF" is simpler and always correct for that
// layout.
func fixUpSizes(raw []byte, moovStart int, ancestors []int, delta int) []byte {
	for _, start := range ancestors {
		old := binary.BigEndian.Uint32(raw[start : start+4])
		binary.BigEndian.PutUint32(raw[start:start+4], uint32(int64(old)+int64(delta))) //nolint:gosec // box sizes fit uint32
	}

	binary.BigEndian.PutUint32(raw[moovStart:moovStart+4], uint32(len(raw)-moovStart)) //nolint:gosec // box sizes fit uint32

	return raw
}
