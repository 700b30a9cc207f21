// Package answer resolves and renders the agent's final answer from a pane
// snapshot once completion has been detected.
//
// Which lines form the answer depends on the signal that ended monitoring:
//
//   - CaseStableTimer: the live timer stopped advancing. The answer is
//     everything after the last timer line up to the next prompt line.
//   - CaseWorkedFor: the timer disappeared and a "Worked for" summary is on
//     screen. The answer starts at the summary line itself and runs up to
//     the next prompt line.
//   - CaseFallback: the timer disappeared and no summary exists. The whole
//     snapshot is returned as a best-effort answer.
//
// In every case leading and trailing blank lines are dropped.
package answer

import (
	"strings"

	"github.com/Iron-Ham/dispatcher/internal/pane"
)

// Case identifies how an answer span was resolved.
type Case int

const (
	// CaseStableTimer anchors the answer below the frozen live timer.
	CaseStableTimer Case = iota
	// CaseWorkedFor anchors the answer at the completion summary line.
	CaseWorkedFor
	// CaseFallback uses the entire snapshot.
	CaseFallback
)

// String returns a human-readable name for the case.
func (c Case) String() string {
	switch c {
	case CaseStableTimer:
		return "stable_timer"
	case CaseWorkedFor:
		return "worked_for"
	case CaseFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Span delimits the answer inside a snapshot. End is exclusive; -1 means
// the end of the snapshot.
type Span struct {
	Case          Case
	Anchor        int
	End           int
	IncludeAnchor bool
}

// ResolveStableTimer builds the span for a frozen live timer at timerIndex.
func ResolveStableTimer(p *pane.Parser, lines []string, timerIndex int) Span {
	end, ok := p.FindPromptLine(lines, timerIndex)
	if !ok {
		end = -1
	}
	return Span{Case: CaseStableTimer, Anchor: timerIndex, End: end}
}

// ResolveTimerAbsent builds the span used once the live timer has been gone
// long enough to declare completion.
func ResolveTimerAbsent(p *pane.Parser, lines []string) Span {
	idx, ok := p.FindLastWorkedForLine(lines)
	if !ok {
		return Span{Case: CaseFallback, Anchor: 0, End: -1, IncludeAnchor: true}
	}
	end, ok := p.FindPromptLine(lines, idx)
	if !ok {
		end = -1
	}
	return Span{Case: CaseWorkedFor, Anchor: idx, End: end, IncludeAnchor: true}
}

// Lines returns the span's lines, trimmed of surrounding blank lines.
func (s Span) Lines(lines []string) []string {
	return pane.ExtractBodyLines(lines, s.Anchor, s.End, s.IncludeAnchor)
}

// Render returns the answer as a single newline-joined block.
func Render(lines []string, span Span) string {
	return strings.Join(span.Lines(lines), "\n")
}
