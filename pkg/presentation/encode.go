package presentation

// Wire encoders, one per Command kind, building the opcode + operand byte
// sequence spec.md §4.3.1 describes: "all opcodes are one-byte tags
// carrying a length byte and operands." Opcodes with no operands (commit,
// release) carry no length byte at all — see encodeCommit and
// inactivity.go's release send. Each operand-bearing opcode is biased by
// the session's negotiated opcode_offset (except claim/clear, see
// claimOpcode) and widens coordinate operands per the session's negotiated
// coord_bytes.

const defaultTextFlags = 0x06

// bitmapChunkFlags is the fixed flags byte original_source/dis_client/
// dis_service.py's draw_bitmap sends on every chunk ("Opaque" bit, the same
// value normal-mode text draws use), regardless of the command's own Flags.
const bitmapChunkFlags = 0x02

// bitmapChunkBudget is the packed-pixel-byte ceiling per chunk, matching
// dis_service.py:200's `37 // bytes_per_row` slicing so a chunk's DDP frame
// stays within a single reliable-send block.
const bitmapChunkBudget = 37

// fullRegionX, fullRegionY, fullRegionW, fullRegionH are the literal
// whole-screen region dis_service.py repeats for both the claim payload's
// tail and every window-reset rectangle.
const (
	fullRegionX uint16 = 0x00
	fullRegionY uint16 = 0x1B
	fullRegionW uint16 = 0x40
	fullRegionH uint16 = 0x30
)

// withLength prefixes operands with their own length byte, the framing
// every operand-bearing opcode uses per spec.md §4.3.1.
func withLength(opcode byte, operands []byte) []byte {
	buf := make([]byte, 0, 2+len(operands))
	buf = append(buf, opcode, byte(len(operands)))
	return append(buf, operands...)
}

// textFlags combines cmd.Flags (inversion/opaque bits, default 0x06 per
// spec.md §6) with cmd.Font folded into the lower nibble font-selector
// position spec.md §4.3.1 describes — Font is a convenience field (see
// TextStyle), not an extra wire byte.
func textFlags(cmd Command) byte {
	flags := cmd.Flags
	if flags == 0 {
		flags = defaultTextFlags
	}
	if cmd.Font != 0 {
		flags = (flags &^ 0x0F) | (cmd.Font & 0x0F)
	}
	return flags
}

func (s *Service) encodeText(cmd Command) []byte {
	offset, coordBytes := s.engine.OpcodeOffset(), s.engine.CoordBytes()
	flags := textFlags(cmd)
	opcode := biasedOpcode(opText, offset)
	if cmd.OpcodeOverride != 0 {
		opcode = cmd.OpcodeOverride
	}
	operands := []byte{flags}
	operands = append(operands, encodeCoord(cmd.X, coordBytes)...)
	operands = append(operands, encodeCoord(cmd.Y, coordBytes)...)
	operands = append(operands, translateText(cmd.Text)...)
	return withLength(opcode, operands)
}

type bitmapChunk struct {
	y    uint16
	data []byte
}

// bitmapChunks splits packed pixel data into row-aligned slices sized to
// bitmapChunkBudget, mirroring dis_service.py's draw_bitmap chunking loop.
func bitmapChunks(width, height uint16, pixels []byte) []bitmapChunk {
	bytesPerRow := (int(width) + 7) / 8
	if bytesPerRow < 1 {
		bytesPerRow = 1
	}
	rowsPerChunk := bitmapChunkBudget / bytesPerRow
	if rowsPerChunk < 1 {
		rowsPerChunk = 1
	}
	var chunks []bitmapChunk
	for y := 0; y < int(height); y += rowsPerChunk {
		rows := rowsPerChunk
		if y+rows > int(height) {
			rows = int(height) - y
		}
		start := y * bytesPerRow
		end := start + rows*bytesPerRow
		if end > len(pixels) {
			end = len(pixels)
		}
		chunks = append(chunks, bitmapChunk{y: uint16(y), data: pixels[start:end]})
	}
	return chunks
}

// encodeBitmapChunk builds one chunk's data frame: spec.md §8 scenario 6 /
// dis_service.py:209's `[0x55, len(chunk_data)+3, 0x02, 0x00, chunk_y] +
// chunk_data`.
func (s *Service) encodeBitmapChunk(chunkY uint16, chunk []byte) []byte {
	coordBytes := s.engine.CoordBytes()
	operands := []byte{bitmapChunkFlags}
	operands = append(operands, encodeCoord(0, coordBytes)...)
	operands = append(operands, encodeCoord(chunkY, coordBytes)...)
	operands = append(operands, chunk...)
	return withLength(biasedOpcode(opBitmap, s.engine.OpcodeOffset()), operands)
}

func (s *Service) encodeLine(cmd Command) []byte {
	offset, coordBytes := s.engine.OpcodeOffset(), s.engine.CoordBytes()
	orientation := byte(lineHorizontal)
	if cmd.Vertical {
		orientation = lineVertical
	}
	operands := []byte{orientation}
	operands = append(operands, encodeCoord(cmd.X, coordBytes)...)
	operands = append(operands, encodeCoord(cmd.Y, coordBytes)...)
	operands = append(operands, encodeCoord(cmd.Length, coordBytes)...)
	return withLength(biasedOpcode(opLine, offset), operands)
}

func (s *Service) encodeRect(cmd Command) []byte {
	offset, coordBytes := s.engine.OpcodeOffset(), s.engine.CoordBytes()
	operands := []byte{cmd.Color}
	operands = append(operands, encodeCoord(cmd.X, coordBytes)...)
	operands = append(operands, encodeCoord(cmd.Y, coordBytes)...)
	operands = append(operands, encodeCoord(cmd.W, coordBytes)...)
	operands = append(operands, encodeCoord(cmd.H, coordBytes)...)
	return withLength(biasedOpcode(opRect, offset), operands)
}

// encodeClearRect builds a window/region claim-or-clear frame: spec.md
// §4.3.1's `0x52`/`0x7A` opcode, routed through claimOpcode since the two
// share the same per-variant literal-vs-biased numbering (DESIGN.md).
func (s *Service) encodeClearRect(flags byte, x, y, w, h uint16) []byte {
	coordBytes := s.engine.CoordBytes()
	operands := []byte{flags}
	operands = append(operands, encodeCoord(x, coordBytes)...)
	operands = append(operands, encodeCoord(y, coordBytes)...)
	operands = append(operands, encodeCoord(w, coordBytes)...)
	operands = append(operands, encodeCoord(h, coordBytes)...)
	return withLength(claimOpcode(s.engine.Mode()), operands)
}

// encodeClearArea is clear_area's wire form: the generic clear-rect frame
// at the command's own x,y,w,h, with a neutral flags byte — the same
// flags dis_service.py's bitmap clip rectangle uses.
func (s *Service) encodeClearArea(cmd Command) []byte {
	return s.encodeClearRect(0x00, cmd.X, cmd.Y, cmd.W, cmd.H)
}

// encodeFullClear is the whole-screen clear dis_service.py's clear_screen
// sends: the full addressable region with flags 0x02.
func (s *Service) encodeFullClear() []byte {
	return s.encodeClearRect(0x02, fullRegionX, fullRegionY, fullRegionW, fullRegionH)
}

// encodeWindowReset restores the full-screen window after a clip
// rectangle has narrowed it, per dis_service.py's repeated
// `[0x52, 0x05, 0x00, 0x00, 0x1B, 0x40, 0x30]` tail.
func (s *Service) encodeWindowReset() []byte {
	return s.encodeClearRect(0x00, fullRegionX, fullRegionY, fullRegionW, fullRegionH)
}

func (s *Service) encodeCommit() []byte {
	return []byte{biasedOpcode(opCommit, s.engine.OpcodeOffset())}
}
