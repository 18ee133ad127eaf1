package logic

// CanStart reports whether a block may start from s.
func CanStart(s State) bool {
	return s.Phase == PhaseIdle
}

// CanAbort reports whether the running block may be aborted from s.
// Breaks and the cooldown are locked.
func CanAbort(s State) bool {
	return s.Phase == PhaseChunkActive
}

// IsLastChunk reports whether finishing the current chunk ends the block.
func IsLastChunk(s State) bool {
	return s.TotalChunks == 0 || s.CurrentChunk >= s.TotalChunks
}

// Ticking reports whether the countdown runs in phase p.
// The driver keeps its once-per-second cadence alive only while this holds.
func Ticking(p Phase) bool {
	switch p {
	case PhaseChunkActive, PhaseChunkBreak, PhaseNeutralReset:
		return true
	}
	return false
}

// ChunkDurationFor returns the length of one chunk, floored to whole seconds.
func ChunkDurationFor(c Config) int {
	if c.TotalChunks > 0 {
		return c.BlockDuration / c.TotalChunks
	}
	return c.BlockDuration
}
