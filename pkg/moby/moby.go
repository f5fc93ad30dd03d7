// Package moby decodes the host game's fixed-layout in-memory entity
// records ("mobies"). The layout is discovered, not designed: offsets and
// widths must match the host binary exactly. The host is big-endian, so
// every multi-byte field goes through the record's ByteOrder.
//
// The hook side only interprets State and the PVars pointer; the rest of
// the record is decoded so callers can inspect it, never written back.
package moby

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// RecordSize is the size of one moby record in host memory.
const RecordSize = 0x100

// Field offsets within a moby record, as laid out by the host binary.
const (
	offCollPos        = 0x00
	offPos            = 0x10
	offState          = 0x20
	offTextureMode    = 0x21
	offOpacity        = 0x22
	offModel          = 0x24
	offParent         = 0x28
	offScale          = 0x2C
	offVisible        = 0x31
	offRenderDistance = 0x32
	offColor          = 0x38
	offShading        = 0x3C
	offRot            = 0x40
	offPrevAnimFrame  = 0x50
	offCurrAnimFrame  = 0x51
	offUpdateID       = 0x52
	offPVars          = 0x78
	offType           = 0xA6
)

// Lifecycle states the collection hook reacts to. The host drives all
// transitions; other values exist but pass through this package untouched.
const (
	StateReset     = 0
	StateCollected = 2
)

var (
	// ErrShortRecord is returned when a byte slice is smaller than RecordSize.
	ErrShortRecord = errors.New("moby record too short")
	// ErrNilPVars is returned when a record's instance-vars pointer is zero.
	ErrNilPVars = errors.New("moby has no instance vars")
)

// Vec4 is the host's 16-byte xyzw vector.
type Vec4 struct {
	X, Y, Z, W float32
}

// Color is the host's 4-byte RGBA tint.
type Color struct {
	R, G, B, A uint8
}

// Moby is a decoded view of one host entity record. Addr is the guest
// address the record was read from; pointer fields (Model, Parent, PVars)
// are guest addresses too and must be resolved through host memory.
type Moby struct {
	Addr uint32

	CollPos        Vec4
	Pos            Vec4
	State          int8
	TextureMode    uint8
	Opacity        uint16
	Model          uint32
	Parent         uint32
	Scale          float32
	Visible        uint8
	RenderDistance int16
	Color          Color
	Shading        uint32
	Rot            Vec4
	PrevAnimFrame  uint8
	CurrAnimFrame  uint8
	UpdateID       uint8
	PVars          uint32
	Type           uint16
}

// Decode reads one moby record from raw. addr is the guest address raw was
// read from, kept on the result for delegation and pointer resolution.
func Decode(raw []byte, addr uint32, order binary.ByteOrder) (*Moby, error) {
	if len(raw) < RecordSize {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrShortRecord, len(raw), RecordSize)
	}
	m := &Moby{
		Addr:           addr,
		CollPos:        decodeVec4(raw[offCollPos:], order),
		Pos:            decodeVec4(raw[offPos:], order),
		State:          int8(raw[offState]),
		TextureMode:    raw[offTextureMode],
		Opacity:        order.Uint16(raw[offOpacity:]),
		Model:          order.Uint32(raw[offModel:]),
		Parent:         order.Uint32(raw[offParent:]),
		Scale:          decodeFloat32(raw[offScale:], order),
		Visible:        raw[offVisible],
		RenderDistance: int16(order.Uint16(raw[offRenderDistance:])),
		Color: Color{
			R: raw[offColor],
			G: raw[offColor+1],
			B: raw[offColor+2],
			A: raw[offColor+3],
		},
		Shading:       order.Uint32(raw[offShading:]),
		Rot:           decodeVec4(raw[offRot:], order),
		PrevAnimFrame: raw[offPrevAnimFrame],
		CurrAnimFrame: raw[offCurrAnimFrame],
		UpdateID:      raw[offUpdateID],
		PVars:         order.Uint32(raw[offPVars:]),
		Type:          order.Uint16(raw[offType:]),
	}
	return m, nil
}

func decodeVec4(raw []byte, order binary.ByteOrder) Vec4 {
	return Vec4{
		X: decodeFloat32(raw[0:], order),
		Y: decodeFloat32(raw[4:], order),
		Z: decodeFloat32(raw[8:], order),
		W: decodeFloat32(raw[12:], order),
	}
}

func decodeFloat32(raw []byte, order binary.ByteOrder) float32 {
	return math.Float32frombits(order.Uint32(raw))
}
