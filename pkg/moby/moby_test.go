package moby

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodeDiscoveredOffsets pins the fields the hook depends on to their
// discovered offsets in the host layout.
func TestDecodeDiscoveredOffsets(t *testing.T) {
	raw := make([]byte, RecordSize)
	raw[0x20] = 2 // state
	binary.BigEndian.PutUint32(raw[0x78:], 0x00A12340)
	binary.BigEndian.PutUint16(raw[0xA6:], 0x0092)

	m, err := Decode(raw, 0x00500000, binary.BigEndian)
	require.Nil(t, err)
	assert.Equal(t, uint32(0x00500000), m.Addr)
	assert.Equal(t, int8(StateCollected), m.State)
	assert.Equal(t, uint32(0x00A12340), m.PVars)
	assert.Equal(t, uint16(0x0092), m.Type)
}

func TestDecodeNegativeState(t *testing.T) {
	raw := make([]byte, RecordSize)
	raw[0x20] = 0xFF
	m, err := Decode(raw, 0, binary.BigEndian)
	require.Nil(t, err)
	assert.Equal(t, int8(-1), m.State)
}

func TestRoundTrip(t *testing.T) {
	in := &Moby{
		Addr:           0x00500000,
		CollPos:        Vec4{1, 2, 3, 1},
		Pos:            Vec4{10.5, -3.25, 42, 1},
		State:          StateCollected,
		TextureMode:    3,
		Opacity:        0x8040,
		Model:          0x00AA0000,
		Parent:         0x00BB0000,
		Scale:          0.25,
		Visible:        1,
		RenderDistance: -200,
		Color:          Color{R: 255, G: 128, B: 0, A: 64},
		Shading:        0xDEADBEEF,
		Rot:            Vec4{0, 0, 3.14159, 0},
		PrevAnimFrame:  4,
		CurrAnimFrame:  5,
		UpdateID:       6,
		PVars:          0x00CC0000,
		Type:           0x92,
	}
	out, err := Decode(Encode(in, binary.BigEndian), in.Addr, binary.BigEndian)
	require.Nil(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeShort(t *testing.T) {
	_, err := Decode(make([]byte, RecordSize-1), 0, binary.BigEndian)
	assert.ErrorIs(t, err, ErrShortRecord)
}

func TestGoldBoltVars(t *testing.T) {
	vars, err := DecodeGoldBoltVars([]byte{0x00, 0x00, 0x00, 0x05}, binary.BigEndian)
	require.Nil(t, err)
	assert.Equal(t, int32(5), vars.Number)

	// Negative index survives decoding; range policy lives with the caller.
	vars, err = DecodeGoldBoltVars([]byte{0xFF, 0xFF, 0xFF, 0xFF}, binary.BigEndian)
	require.Nil(t, err)
	assert.Equal(t, int32(-1), vars.Number)

	_, err = DecodeGoldBoltVars([]byte{0x01}, binary.BigEndian)
	assert.ErrorIs(t, err, ErrShortRecord)

	raw := EncodeGoldBoltVars(GoldBoltVars{Number: 40}, binary.BigEndian)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x28}, raw)
}
