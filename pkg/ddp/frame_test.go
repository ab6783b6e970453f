package ddp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, kindDataEnd, classify([]byte{0x10, 1, 2}))
	assert.Equal(t, kindDataEnd, classify([]byte{0x03}))
	assert.Equal(t, kindDataBody, classify([]byte{0x2F, 1}))
	assert.Equal(t, kindControl, classify([]byte{0xA3}))
	assert.Equal(t, kindAck, classify([]byte{0xB1}))
	assert.Equal(t, kindUnknown, classify([]byte{0xC0}))
	assert.Equal(t, kindUnknown, classify(nil))
}

func TestAckForSeqAndConfirmation(t *testing.T) {
	assert.Equal(t, byte(0xB1), ackForSeq(0))
	assert.Equal(t, byte(0xB0), ackForSeq(15))
	assert.EqualValues(t, 0, ackSeqConfirmed(0xB1))
	assert.EqualValues(t, 15, ackSeqConfirmed(0xB0))
}

func TestChunkPayloadRespectsBlockSize(t *testing.T) {
	payload := make([]byte, 50)
	for i := range payload {
		payload[i] = byte(i)
	}
	blocks := chunkPayload(payload, 0x0F) // BS=15 -> 105 bytes/block, all fits one block
	assert.Len(t, blocks, 1)
	assert.Len(t, blocks[0], 50)

	blocks = chunkPayload(payload, 2) // 14 bytes/block -> 4 blocks
	assert.Len(t, blocks, 4)
	total := 0
	for _, b := range blocks {
		total += len(b)
		assert.LessOrEqual(t, len(b), 14)
	}
	assert.Equal(t, 50, total)
}

func TestChunkBlockSplitsSevenByteFrames(t *testing.T) {
	block := make([]byte, 10)
	chunks := chunkBlock(block)
	assert.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 7)
	assert.Len(t, chunks[1], 3)
}

func TestChunkBlockEmptyYieldsOneEmptyChunk(t *testing.T) {
	chunks := chunkBlock(nil)
	assert.Len(t, chunks, 1)
	assert.Empty(t, chunks[0])
}
