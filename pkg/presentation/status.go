package presentation

// Status payload constants, supplemented from the original implementation
// this driver was distilled from (original_source/dis_client/ddp_protocol.py):
// the closed enum of two-byte status pairs the cluster emits during claim
// and pre-emption, named here instead of left as inline byte-pair literals.
var (
	statBusyHalf     = []byte{0x53, 0x84}
	statBusyWarnHalf = []byte{0x53, 0x04}
	statBusyFull     = []byte{0x53, 0x88}
	statBusyWarnFull = []byte{0x53, 0x08}
	statFreeHalf     = []byte{0x53, 0x05}
	statFreeFull     = []byte{0x53, 0x0A}
	statOK           = []byte{0x53, 0x85}

	statColorBusyHalf     = []byte{0x7B, 0x84}
	statColorBusyWarnHalf = []byte{0x7B, 0x04}
	statColorBusyFull     = []byte{0x7B, 0x88}
	statColorBusyWarnFull = []byte{0x7B, 0x08}
	statColorFreeHalf     = []byte{0x7B, 0x05}
	statColorFreeFull     = []byte{0x7B, 0x0A}
	statColorOK           = []byte{0x7B, 0x85}
	statColorInvalid      = []byte{0x7B, 0xC0}

	// Equivalent accept signals on certain firmware revisions, per the
	// original's explicit "graphic ack" handling — folded into the claim
	// acceptance set alongside the documented statOK/statColorOK.
	statGraphicAckWhite = []byte{0x0B, 0x03, 0x57}
	statGraphicAckRed   = []byte{0x0B, 0x01, 0x00}
)

const (
	opReinitRequest = 0x2E
	opReinitConfirm = 0x2F
)

func anyEqual(payload []byte, candidates ...[]byte) bool {
	for _, c := range candidates {
		if equalBytesP(payload, c) {
			return true
		}
	}
	return false
}

func equalBytesP(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
