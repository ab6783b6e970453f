package presentation

import "hash/fnv"

// textFingerprint hashes the content that determines whether a row's text
// draw is visually distinguishable from what's already on screen: the
// glyph-translated text and the flags byte (which carries the inversion
// bit). x is checked separately in prepareTextDraw against lineEntry.x.
func textFingerprint(translated []byte, flags byte) uint64 {
	h := fnv.New64a()
	h.Write(translated)
	h.Write([]byte{flags})
	return h.Sum64()
}

// prepareTextDraw applies spec.md §4.3.5's suppression and artifact rules
// ahead of a draw_text. It returns the commands that must precede the text
// opcode itself (a shrink-clear rectangle, an uninversion full-line clear,
// or nothing), and suppressed=true when the text opcode itself should be
// dropped entirely because the row is visually unchanged.
func (s *Service) prepareTextDraw(cmd Command) (pre []Command, suppressed bool) {
	translated := translateText(cmd.Text)
	flags := textFlags(cmd)
	inverted := flags&0x80 != 0
	fp := textFingerprint(translated, flags)

	prior, ok := s.lineCache.get(cmd.Y)
	if ok && prior.x == cmd.X && prior.hash == fp && prior.length == len(translated) && prior.inverted == inverted {
		return nil, true
	}

	if ok && cmd.H > 0 && prior.inverted && !inverted {
		pre = append(pre, Command{
			Kind: CommandClearArea,
			X:    0, Y: cmd.Y,
			W: cmd.W, H: cmd.H,
		})
	} else if ok && cmd.H > 0 && len(translated) < prior.length {
		pre = append(pre, Command{
			Kind: CommandClearArea,
			X:    cmd.X + uint16(len(translated)),
			Y:    cmd.Y,
			W:    uint16(prior.length - len(translated)),
			H:    cmd.H,
		})
	}

	s.lineCache.set(cmd.Y, lineEntry{x: cmd.X, hash: fp, length: len(translated), inverted: inverted})
	return pre, false
}
