package tag

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBox(typ string, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)))
	copy(buf[4:8], typ)
	copy(buf[8:], payload)

	return buf
}

func TestTextAtomRoundtrip(t *testing.T) {
	t.Parallel()

	a := textAtom("\xa9nam", "Song Title")
	marshaled := a.marshal()

	assert.Equal(t, "\xa9nam", string(marshaled[4:8]))

	size := binary.BigEndian.Uint32(marshaled[0:4])
	assert.EqualValues(t, len(marshaled), size)
}

func TestTextAtomEmptyValueIsSkippable(t *testing.T) {
	t.Parallel()

	a := textAtom("\xa9alb", "")
	assert.Equal(t, "", a.typ)
}

func TestTrknAtomPacksNumberAndTotal(t *testing.T) {
	t.Parallel()

	a := trknAtom("trkn", 3, 12)
	marshaled := a.marshal()

	// box header (8) + data atom header (16) + 8-byte payload.
	require.Len(t, marshaled, 8+16+8)

	packed := marshaled[len(marshaled)-8:]
	assert.Equal(t, uint16(3), binary.BigEndian.Uint16(packed[2:4]))
	assert.Equal(t, uint16(12), binary.BigEndian.Uint16(packed[4:6]))
}

func TestFreeformAtomStructure(t *testing.T) {
	t.Parallel()

	a := freeformAtom("MYAPP_TRACK_ID", "12345")
	assert.Equal(t, "----", a.typ)

	marshaled := a.marshal()
	assert.Contains(t, string(marshaled), "mean")
	assert.Contains(t, string(marshaled), "com.apple.iTunes")
	assert.Contains(t, string(marshaled), "MYAPP_TRACK_ID")
	assert.Contains(t, string(marshaled), "12345")
}

func TestFindAtomLocatesNestedBox(t *testing.T) {
	t.Parallel()

	inner := buildBox("ilst", []byte("payload"))
	meta := buildBox("meta", append([]byte{0, 0, 0, 0}, inner...))
	udta := buildBox("udta", meta)
	moov := buildBox("moov", udta)

	file := append([]byte{}, moov...)

	payload, start, end, err := findAtom(file, "moov", 0, len(file))
	require.NoError(t, err)
	assert.Equal(t, 0, start)
	assert.Equal(t, len(file), end)
	assert.Equal(t, udta, payload)
}

func TestReplaceIlstAtomInsertsWhenAbsent(t *testing.T) {
	t.Parallel()

	moovPayloadWithoutUdta := []byte("other-moov-children")
	moov := buildBox("moov", moovPayloadWithoutUdta)
	mdat := buildBox("mdat", []byte("sample-data"))

	file := append(append([]byte{}, moov...), mdat...)

	out, err := replaceIlstAtom(file, []byte("ilst-payload"))
	require.NoError(t, err)

	// moov's rewritten size must now cover everything to EOF (see
	// fixUpSizes's moov-is-last-top-level-box assumption), swallowing
	// what used to be a standalone mdat box.
	newMoovSize := binary.BigEndian.Uint32(out[0:4])
	assert.EqualValues(t, len(out), newMoovSize)

	assert.Contains(t, string(out), "udta")
	assert.Contains(t, string(out), "meta")
	assert.Contains(t, string(out), "ilst-payload")
}

func TestReplaceIlstAtomFixesUpWholeAncestorChain(t *testing.T) {
	t.Parallel()

	oldIlst := buildBox("ilst", []byte("short"))
	meta := buildBox("meta", append([]byte{0, 0, 0, 0}, oldIlst...))
	udta := buildBox("udta", meta)
	moov := buildBox("moov", udta)
	mdat := buildBox("mdat", []byte("sample-data"))

	file := append(append([]byte{}, moov...), mdat...)

	// A longer replacement payload grows ilst, which must grow meta and
	// udta's own size fields too, not just moov's.
	newPayload := []byte("a much longer ilst payload than before")

	out, err := replaceIlstAtom(file, newPayload)
	require.NoError(t, err)

	// moov's size still runs to EOF (see fixUpSizes's moov-is-last-
	// top-level-box assumption), same as the insert-udta path above.
	_, moovStart, moovEnd, err := findAtom(out, "moov", 0, len(out))
	require.NoError(t, err)
	assert.Equal(t, len(out), moovEnd)

	_, udtaStart, udtaEnd, err := findAtom(out, "udta", moovStart+8, moovEnd)
	require.NoError(t, err)

	_, metaStart, metaEnd, err := findAtom(out, "meta", udtaStart+8, udtaEnd)
	require.NoError(t, err)
	assert.Equal(t, udtaEnd, metaEnd, "meta must be udta's only child and its size must cover exactly udta's payload")

	ilstPayload, _, ilstEnd, err := findAtom(out, "ilst", metaStart+12, metaEnd)
	require.NoError(t, err)
	assert.Equal(t, metaEnd, ilstEnd, "ilst must be meta's only child and its size must cover exactly meta's payload")
	assert.Equal(t, newPayload, ilstPayload)
}

func TestOrSingle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"A", "B"}, orSingle([]string{"A", "B"}, "A"))
	assert.Equal(t, []string{"solo"}, orSingle(nil, "solo"))
	assert.Nil(t, orSingle(nil, ""))
}
