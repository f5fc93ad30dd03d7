package moby

import (
	"encoding/binary"
	"math"
)

// Encode writes m into a fresh RecordSize buffer. The hook never writes
// moby records back to the host; Encode exists for the mock-host side
// (tests, examples, segment authoring).
func Encode(m *Moby, order binary.ByteOrder) []byte {
	raw := make([]byte, RecordSize)
	encodeVec4(raw[offCollPos:], m.CollPos, order)
	encodeVec4(raw[offPos:], m.Pos, order)
	raw[offState] = byte(m.State)
	raw[offTextureMode] = m.TextureMode
	order.PutUint16(raw[offOpacity:], m.Opacity)
	order.PutUint32(raw[offModel:], m.Model)
	order.PutUint32(raw[offParent:], m.Parent)
	order.PutUint32(raw[offScale:], math.Float32bits(m.Scale))
	raw[offVisible] = m.Visible
	order.PutUint16(raw[offRenderDistance:], uint16(m.RenderDistance))
	raw[offColor] = m.Color.R
	raw[offColor+1] = m.Color.G
	raw[offColor+2] = m.Color.B
	raw[offColor+3] = m.Color.A
	order.PutUint32(raw[offShading:], m.Shading)
	encodeVec4(raw[offRot:], m.Rot, order)
	raw[offPrevAnimFrame] = m.PrevAnimFrame
	raw[offCurrAnimFrame] = m.CurrAnimFrame
	raw[offUpdateID] = m.UpdateID
	order.PutUint32(raw[offPVars:], m.PVars)
	order.PutUint16(raw[offType:], m.Type)
	return raw
}

// EncodeGoldBoltVars writes vars into a fresh GoldBoltVarsSize buffer.
func EncodeGoldBoltVars(vars GoldBoltVars, order binary.ByteOrder) []byte {
	raw := make([]byte, GoldBoltVarsSize)
	order.PutUint32(raw, uint32(vars.Number))
	return raw
}

func encodeVec4(raw []byte, v Vec4, order binary.ByteOrder) {
	order.PutUint32(raw[0:], math.Float32bits(v.X))
	order.PutUint32(raw[4:], math.Float32bits(v.Y))
	order.PutUint32(raw[8:], math.Float32bits(v.Z))
	order.PutUint32(raw[12:], math.Float32bits(v.W))
}
