package ddp

import can "github.com/korni92/ddpclusterd/pkg/can"

// frameKind classifies a received CAN frame's first byte per spec.md §4.2.1.
type frameKind uint8

const (
	kindDataEnd frameKind = iota
	kindDataBody
	kindControl
	kindAck
	kindUnknown
)

func classify(data []byte) frameKind {
	if len(data) == 0 {
		return kindUnknown
	}
	nibble := data[0] >> 4
	switch nibble {
	case nibbleDataEndA, nibbleDataEndB:
		return kindDataEnd
	case nibbleDataBody:
		return kindDataBody
	case nibbleControl:
		return kindControl
	case nibbleAck:
		return kindAck
	default:
		return kindUnknown
	}
}

func seqOf(firstByte byte) uint8 {
	return firstByte & seqMask
}

// ackSeqConfirmed returns the send_seq an ACK frame's first byte confirms.
func ackSeqConfirmed(ackByte byte) uint8 {
	next := ackByte & seqMask
	return (next + 15) % 16 // (next - 1) mod 16
}

// ackForSeq builds the ACK byte confirming seq, per spec.md §3:
// 0xB0 + ((seq+1) mod 16).
func ackForSeq(seq uint8) byte {
	return ackFrameBaseType | ((seq + 1) % 16)
}

// encodeDataFrame builds a single CAN frame carrying up to 7 payload bytes
// for a data block, tagged as end (last frame of a block) or body.
func encodeDataFrame(seq uint8, payload []byte, end bool) can.Frame {
	typeByte := bodyFrameType
	if end {
		typeByte = endFrameType
	}
	buf := make([]byte, 0, 8)
	buf = append(buf, typeByte|(seq&seqMask))
	buf = append(buf, payload...)
	return can.NewFrame(CanIDSend, buf)
}

func encodeAck(seq uint8) can.Frame {
	return can.NewFrame(CanIDSend, []byte{ackForSeq(seq)})
}

func encodeControl(payload []byte) can.Frame {
	return can.NewFrame(CanIDSend, payload)
}

// chunkPayload splits an application payload into blocks of at most
// blockSize*7 bytes, per spec.md §4.2.6.
func chunkPayload(payload []byte, blockSize uint8) [][]byte {
	maxBlockBytes := int(blockSize) * 7
	if maxBlockBytes <= 0 {
		maxBlockBytes = 7
	}
	var blocks [][]byte
	for len(payload) > 0 {
		n := maxBlockBytes
		if n > len(payload) {
			n = len(payload)
		}
		blocks = append(blocks, payload[:n])
		payload = payload[n:]
	}
	if len(blocks) == 0 {
		blocks = append(blocks, []byte{})
	}
	return blocks
}

// chunkBlock splits one block's bytes into 7-byte CAN-frame chunks.
func chunkBlock(block []byte) [][]byte {
	var chunks [][]byte
	for len(block) > 0 {
		n := 7
		if n > len(block) {
			n = len(block)
		}
		chunks = append(chunks, block[:n])
		block = block[n:]
	}
	if len(chunks) == 0 {
		chunks = append(chunks, []byte{})
	}
	return chunks
}
