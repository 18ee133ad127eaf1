// Package display turns timer state into the strings shown to a user.
package display

import (
	"fmt"

	"github.com/sweeney/focus-timer/internal/logic"
)

// FormatTime renders a countdown as "MM:SS". Minutes are not capped at 59,
// so 3661 renders as "61:01". Negative values render as "00:00".
func FormatTime(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	return fmt.Sprintf("%02d:%02d", totalSeconds/60, totalSeconds%60)
}

var labels = map[logic.Phase]string{
	logic.PhaseIdle:         "Configure Block",
	logic.PhaseChunkActive:  "Working",
	logic.PhaseChunkBreak:   "Chunk Break",
	logic.PhaseNeutralReset: "Cooldown Period",
}

// Label returns the heading for a phase.
func Label(p logic.Phase) string {
	if l, ok := labels[p]; ok {
		return l
	}
	return string(p)
}

// ChunkLabel returns "Chunk X of Y" while a chunked block is in a chunk or
// its break, and "" otherwise.
func ChunkLabel(s logic.State) string {
	if s.TotalChunks <= 0 {
		return ""
	}
	if s.Phase != logic.PhaseChunkActive && s.Phase != logic.PhaseChunkBreak {
		return ""
	}
	return fmt.Sprintf("Chunk %d of %d", s.CurrentChunk, s.TotalChunks)
}

// LockedMessage explains why no action is available in a locked phase.
func LockedMessage(p logic.Phase) string {
	switch p {
	case logic.PhaseChunkBreak:
		return "Break in progress..."
	case logic.PhaseNeutralReset:
		return "Cannot start until cooldown completes"
	}
	return ""
}
