package presentation

import (
	"context"
	"sort"
)

// cacheKey identifies one render-cache slot: opcode_kind, y, x, per
// spec.md §3's command_cache definition.
type cacheKey struct {
	Kind CommandKind
	Y, X uint16
}

// CommandCache mirrors the cluster's current screen contents: one entry
// per draw call, the authoritative source of truth across a PAUSED->READY
// transition (spec.md §3, §4.3.3).
type CommandCache struct {
	entries map[cacheKey]Command
}

func newCommandCache() *CommandCache {
	return &CommandCache{entries: make(map[cacheKey]Command)}
}

func (c *CommandCache) put(cmd Command) {
	c.entries[cacheKey{Kind: cmd.Kind, Y: cmd.Y, X: cmd.X}] = cmd
}

func (c *CommandCache) clear() {
	c.entries = make(map[cacheKey]Command)
}

// ordered returns the cached commands sorted ascending by (y, x), the
// replay order spec.md §4.3.3 mandates.
func (c *CommandCache) ordered() []Command {
	out := make([]Command, 0, len(c.entries))
	for _, cmd := range c.entries {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// lineEntry is one row's redraw-suppression fingerprint, spec.md §3's
// line_cache and §4.3.5's suppression rules. x is part of the fingerprint
// because spec.md §4.3.5 only calls a redraw suppressible when (x, y,
// text, flags) are all unchanged — identical text reappearing at a new x
// on the same row must still go out.
type lineEntry struct {
	x        uint16
	hash     uint64
	length   int
	inverted bool
}

// LineCache tracks, per row y, the fingerprint of the last text actually
// written there, so unchanged text is suppressed and shrinking/uninverting
// text gets the artifact-cleanup rectangle spec.md §4.3.5 describes.
type LineCache struct {
	rows map[uint16]lineEntry
}

func newLineCache() *LineCache {
	return &LineCache{rows: make(map[uint16]lineEntry)}
}

func (l *LineCache) get(y uint16) (lineEntry, bool) {
	e, ok := l.rows[y]
	return e, ok
}

func (l *LineCache) set(y uint16, e lineEntry) {
	l.rows[y] = e
}

func (l *LineCache) clear() {
	l.rows = make(map[uint16]lineEntry)
}

// replayCache re-sends every cached command in ascending (y,x) order
// followed by a Commit, per spec.md §4.3.3. Commands go through
// sendCommand directly rather than re-entering Submit, so replay runs the
// same suppression check and cache writes as a live draw; nothing is
// suppressed because line_cache is cleared when the pre-emption is
// detected, and re-writing command_cache with its own entries is harmless.
func (s *Service) replayCache(ctx context.Context) error {
	for _, cmd := range s.cache.ordered() {
		if err := s.sendCommand(ctx, cmd); err != nil {
			return err
		}
	}
	return s.sendCommand(ctx, Command{Kind: CommandCommit})
}
