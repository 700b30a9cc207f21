package pane

import (
	"fmt"
	"regexp"
	"strings"
)

// Default marker values for the Codex CLI. The separator inside the live
// timer has been observed as both a bullet and a middle dot, so the default
// pattern accepts either.
const (
	DefaultTimerPattern       = `\((?P<time>(?:\d+m )?\d+s) [•·] esc to interrupt\)`
	DefaultContextLeftPattern = `(\d+)%\s+context left`
	DefaultContextLeftPhrase  = "context left"
	DefaultWorkedForPhrase    = "Worked for "
)

// DefaultPromptGlyphs are the characters that start the agent's idle input line.
var DefaultPromptGlyphs = []string{">", "›"}

// timerGroup is the named capture group holding the duration token.
const timerGroup = "time"

// Markers is the pattern table used to locate signals in a pane snapshot.
// Every on-screen format assumption lives here so a change in the agent's
// rendering only touches this table.
type Markers struct {
	// Timer matches the live "elapsed, interruptible" fragment. It must
	// contain a named group "time" holding the duration token.
	Timer *regexp.Regexp
	// ContextLeft matches the remaining-context indicator. Group 1 holds the
	// integer percentage.
	ContextLeft *regexp.Regexp
	// ContextLeftPhrase is a substring pre-check for ContextLeft. Empty
	// means every line is tried.
	ContextLeftPhrase string
	// PromptGlyphs are prefixes of a left-trimmed prompt line.
	PromptGlyphs []string
	// WorkedForPhrase marks the one-line completion summary.
	WorkedForPhrase string
}

// MarkerSpec is the uncompiled form of Markers, as read from configuration.
type MarkerSpec struct {
	TimerPattern       string
	ContextLeftPattern string
	ContextLeftPhrase  string
	PromptGlyphs       []string
	WorkedForPhrase    string
}

// DefaultMarkerSpec returns the marker spec for the Codex CLI.
func DefaultMarkerSpec() MarkerSpec {
	glyphs := make([]string, len(DefaultPromptGlyphs))
	copy(glyphs, DefaultPromptGlyphs)
	return MarkerSpec{
		TimerPattern:       DefaultTimerPattern,
		ContextLeftPattern: DefaultContextLeftPattern,
		ContextLeftPhrase:  DefaultContextLeftPhrase,
		PromptGlyphs:       glyphs,
		WorkedForPhrase:    DefaultWorkedForPhrase,
	}
}

// DefaultMarkers returns the compiled default marker table.
func DefaultMarkers() Markers {
	m, err := DefaultMarkerSpec().Compile()
	if err != nil {
		// The defaults are constants; failing here is a programming error.
		panic(fmt.Sprintf("pane: invalid default markers: %v", err))
	}
	return m
}

// Compile validates the marker spec and compiles its patterns. Empty fields fall
// back to the defaults. The default context-left phrase only pre-filters the
// default context-left pattern; a custom pattern without a phrase is tried on
// every line.
func (s MarkerSpec) Compile() (Markers, error) {
	def := DefaultMarkerSpec()
	if s.TimerPattern == "" {
		s.TimerPattern = def.TimerPattern
	}
	if s.ContextLeftPattern == "" {
		s.ContextLeftPattern = def.ContextLeftPattern
	}
	if s.ContextLeftPhrase == "" && s.ContextLeftPattern == def.ContextLeftPattern {
		s.ContextLeftPhrase = def.ContextLeftPhrase
	}
	if len(s.PromptGlyphs) == 0 {
		s.PromptGlyphs = def.PromptGlyphs
	}
	if s.WorkedForPhrase == "" {
		s.WorkedForPhrase = def.WorkedForPhrase
	}

	timer, err := regexp.Compile(s.TimerPattern)
	if err != nil {
		return Markers{}, fmt.Errorf("invalid timer pattern: %w", err)
	}
	if timer.SubexpIndex(timerGroup) < 0 {
		return Markers{}, fmt.Errorf("timer pattern must define a named group %q", timerGroup)
	}

	ctxLeft, err := regexp.Compile(s.ContextLeftPattern)
	if err != nil {
		return Markers{}, fmt.Errorf("invalid context-left pattern: %w", err)
	}
	if ctxLeft.NumSubexp() < 1 {
		return Markers{}, fmt.Errorf("context-left pattern must capture the percentage")
	}

	glyphs := make([]string, 0, len(s.PromptGlyphs))
	for _, g := range s.PromptGlyphs {
		if strings.TrimSpace(g) == "" {
			return Markers{}, fmt.Errorf("prompt glyphs must not be blank")
		}
		glyphs = append(glyphs, g)
	}

	return Markers{
		Timer:             timer,
		ContextLeft:       ctxLeft,
		ContextLeftPhrase: s.ContextLeftPhrase,
		PromptGlyphs:      glyphs,
		WorkedForPhrase:   s.WorkedForPhrase,
	}, nil
}
