package presentation

import (
	"encoding/binary"

	ddp "github.com/korni92/ddpclusterd/pkg/ddp"
)

// Canonical (unbiased) opcode values, per spec.md §4.3.1. Every opcode
// except claim is biased by the session's opcode_offset at send time;
// claim is a special case (see claimOpcode).
const (
	opClaim   = 0x52
	opText    = 0x57
	opBitmap  = 0x55
	opLine    = 0x63
	opRect    = 0x83
	opCommit  = 0x39
	opRelease = 0x33
)

// Line orientation tags, first operand byte of opLine.
const (
	lineVertical   = 0x10
	lineHorizontal = 0x20
)

// biasedOpcode applies the variant's opcode_offset to a canonical opcode,
// as spec.md §4.3.1 describes for every drawing opcode but claim.
func biasedOpcode(base byte, offset byte) byte {
	return base + offset
}

// claimOpcode is the one opcode spec.md §4.3.2 documents as a literal
// per-variant value rather than base-plus-offset: COLOR_TYPE1 claims with
// 0x7A, every other variant (including COLOR_TYPE2) claims with the
// canonical 0x52. Recorded as an Open Question resolution in DESIGN.md,
// since applying the general bias formula to COLOR_TYPE2's 0x08 offset
// would give 0x5A, not the 0x52 the spec states explicitly. §4.3.1 lists
// this opcode as dual-purpose ("claim or clear"), so encodeClearRect
// routes through it too.
func claimOpcode(mode ddp.Mode) byte {
	if mode == ddp.ModeColorType1 {
		return 0x7A
	}
	return opClaim
}

// encodeCoord renders one coordinate value as 1 or 2 bytes depending on the
// session's negotiated coord width. 2-byte coordinates are encoded
// big-endian (see DESIGN.md's coordinate byte order note).
func encodeCoord(v uint16, coordBytes uint8) []byte {
	if coordBytes <= 1 {
		return []byte{byte(v)}
	}
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return buf
}
