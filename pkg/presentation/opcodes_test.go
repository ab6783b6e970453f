package presentation

import (
	"testing"

	ddp "github.com/korni92/ddpclusterd/pkg/ddp"
	"github.com/stretchr/testify/assert"
)

func TestBiasedOpcodeAddsOffset(t *testing.T) {
	assert.EqualValues(t, 0x7F, biasedOpcode(opText, 0x28))
}

func TestClaimOpcodePerMode(t *testing.T) {
	assert.EqualValues(t, 0x7A, claimOpcode(ddp.ModeColorType1))
	assert.EqualValues(t, opClaim, claimOpcode(ddp.ModeColorType2))
	assert.EqualValues(t, opClaim, claimOpcode(ddp.ModeWhite))
	assert.EqualValues(t, opClaim, claimOpcode(ddp.ModeRed))
}

func TestEncodeCoordWidthsByCoordBytes(t *testing.T) {
	assert.Equal(t, []byte{0x2A}, encodeCoord(0x2A, 1))
	assert.Equal(t, []byte{0x01, 0x2C}, encodeCoord(0x012C, 2))
}

func TestGlyphTranslationPassesThroughASCII(t *testing.T) {
	assert.Equal(t, []byte("Hello!"), translateText("Hello!"))
}

func TestGlyphTranslationSanitizesNonASCII(t *testing.T) {
	assert.Equal(t, []byte("  "), translateText("é€"))
}
