package moby

import (
	"encoding/binary"
	"fmt"
)

// GoldBoltVarsSize is the size of a gold bolt's instance-vars block.
const GoldBoltVarsSize = 4

// GoldBoltVars is the per-instance data a gold bolt moby's PVars pointer
// resolves to. Number identifies the bolt among all bolts in the current
// level; it indexes the session's collected-flags table.
type GoldBoltVars struct {
	Number int32
}

// DecodeGoldBoltVars reads a gold bolt's instance vars from raw.
func DecodeGoldBoltVars(raw []byte, order binary.ByteOrder) (GoldBoltVars, error) {
	if len(raw) < GoldBoltVarsSize {
		return GoldBoltVars{}, fmt.Errorf("%w: got %d bytes, need %d", ErrShortRecord, len(raw), GoldBoltVarsSize)
	}
	return GoldBoltVars{Number: int32(order.Uint32(raw))}, nil
}
