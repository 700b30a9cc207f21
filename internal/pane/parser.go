// Package pane locates completion signals in a captured terminal pane.
//
// The agent renders its progress as ordinary text that is continuously
// rewritten, so every lookup here scans from the most recent line backwards:
// only the tail state is meaningful, and a stale match earlier in scrollback
// must never override the latest one. All functions are pure and never
// modify the lines they are given.
package pane

import (
	"strconv"
	"strings"
	"unicode"
)

// TimerSignal is the most recent live-timer line in a snapshot.
type TimerSignal struct {
	Index int
	Line  string
	Value string
	Found bool
}

// BudgetSignal is the most recent remaining-context indicator in a snapshot.
type BudgetSignal struct {
	Percent int
	Line    string
	Found   bool
}

// Signals bundles everything the parser extracts from one snapshot.
type Signals struct {
	Timer  TimerSignal
	Budget BudgetSignal
}

// Parser evaluates a Markers table against line sequences.
type Parser struct {
	markers Markers
}

// NewParser creates a parser for the given marker table.
func NewParser(markers Markers) *Parser {
	return &Parser{markers: markers}
}

var defaultParser = NewParser(DefaultMarkers())

// DefaultParser returns the parser configured with the Codex CLI markers.
func DefaultParser() *Parser {
	return defaultParser
}

// Markers returns the parser's marker table.
func (p *Parser) Markers() Markers {
	return p.markers
}

// Scan extracts the timer and budget signals from a snapshot.
func (p *Parser) Scan(lines []string) Signals {
	var sig Signals
	if idx, line, ok := p.FindLastTimerLine(lines); ok {
		value, _ := p.ExtractTimerValue(line)
		sig.Timer = TimerSignal{Index: idx, Line: line, Value: value, Found: true}
	}
	if pct, line, ok := p.FindContextLeft(lines); ok {
		sig.Budget = BudgetSignal{Percent: pct, Line: line, Found: true}
	}
	return sig
}

// FindLastTimerLine returns the index and text of the last line showing the
// live elapsed-work timer.
func (p *Parser) FindLastTimerLine(lines []string) (int, string, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		if p.markers.Timer.MatchString(lines[i]) {
			return i, lines[i], true
		}
	}
	return -1, "", false
}

// ExtractTimerValue returns the duration token ("3m 12s", "45s") from a
// timer line. An empty or non-matching line yields false.
func (p *Parser) ExtractTimerValue(line string) (string, bool) {
	if line == "" {
		return "", false
	}
	m := p.markers.Timer.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[p.markers.Timer.SubexpIndex(timerGroup)], true
}

// FindContextLeft returns the most recent remaining-context percentage and
// the line it was read from.
func (p *Parser) FindContextLeft(lines []string) (int, string, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		if !strings.Contains(lines[i], p.markers.ContextLeftPhrase) {
			continue
		}
		m := p.markers.ContextLeft.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		pct, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return pct, lines[i], true
	}
	return 0, "", false
}

// FindPromptLine returns the first index strictly after start whose
// left-trimmed text begins with a prompt glyph. Pass -1 to search from the
// first line.
func (p *Parser) FindPromptLine(lines []string, start int) (int, bool) {
	if start < -1 {
		start = -1
	}
	for i := start + 1; i < len(lines); i++ {
		trimmed := strings.TrimLeftFunc(lines[i], unicode.IsSpace)
		for _, glyph := range p.markers.PromptGlyphs {
			if strings.HasPrefix(trimmed, glyph) {
				return i, true
			}
		}
	}
	return -1, false
}

// FindLastWorkedForLine returns the index of the last completion-summary line.
func (p *Parser) FindLastWorkedForLine(lines []string) (int, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(lines[i], p.markers.WorkedForPhrase) {
			return i, true
		}
	}
	return -1, false
}

// ExtractBodyLines returns the lines between two markers with leading and
// trailing blank lines removed. The slice starts at start when includeStart
// is set and at start+1 otherwise, and ends before end; a negative end means
// the end of input. Out-of-range indices are clamped. The result is always a
// fresh slice.
func ExtractBodyLines(lines []string, start, end int, includeStart bool) []string {
	from := start
	if !includeStart {
		from++
	}
	if from < 0 {
		from = 0
	}
	to := end
	if to < 0 || to > len(lines) {
		to = len(lines)
	}
	if from >= to {
		return []string{}
	}
	body := make([]string, to-from)
	copy(body, lines[from:to])
	return TrimBlankLines(body)
}

// TrimBlankLines drops wholly-blank lines from both ends of a slice. The
// returned slice shares the input's backing array.
func TrimBlankLines(lines []string) []string {
	first := 0
	for first < len(lines) && strings.TrimSpace(lines[first]) == "" {
		first++
	}
	last := len(lines)
	for last > first && strings.TrimSpace(lines[last-1]) == "" {
		last--
	}
	return lines[first:last]
}

// FindLastTimerLine is Parser.FindLastTimerLine with the default markers.
func FindLastTimerLine(lines []string) (int, string, bool) {
	return defaultParser.FindLastTimerLine(lines)
}

// ExtractTimerValue is Parser.ExtractTimerValue with the default markers.
func ExtractTimerValue(line string) (string, bool) {
	return defaultParser.ExtractTimerValue(line)
}

// FindContextLeft is Parser.FindContextLeft with the default markers.
func FindContextLeft(lines []string) (int, string, bool) {
	return defaultParser.FindContextLeft(lines)
}

// FindPromptLine is Parser.FindPromptLine with the default markers.
func FindPromptLine(lines []string, start int) (int, bool) {
	return defaultParser.FindPromptLine(lines, start)
}

// FindLastWorkedForLine is Parser.FindLastWorkedForLine with the default markers.
func FindLastWorkedForLine(lines []string) (int, bool) {
	return defaultParser.FindLastWorkedForLine(lines)
}
