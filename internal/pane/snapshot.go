package pane

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Snapshot is the text content of one pane at one poll instant, as an
// ordered sequence of lines. A Snapshot is never modified after capture;
// helpers that derive new line sequences always copy.
type Snapshot []string

// ParseSnapshot splits raw capture-pane output into lines. Escape sequences
// are stripped so that markers match regardless of whether the capture kept
// colors. A trailing newline does not produce an empty final line.
func ParseSnapshot(raw string) Snapshot {
	raw = ansi.Strip(raw)
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	raw = strings.TrimSuffix(raw, "\n")
	if raw == "" {
		return Snapshot{}
	}
	return Snapshot(strings.Split(raw, "\n"))
}

// Lines returns a copy of the snapshot's lines.
func (s Snapshot) Lines() []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Tail returns a copy of the last n lines. n <= 0 returns nothing.
func (s Snapshot) Tail(n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(s) {
		n = len(s)
	}
	out := make([]string, n)
	copy(out, s[len(s)-n:])
	return out
}

// String joins the snapshot back into its raw, untrimmed text form.
func (s Snapshot) String() string {
	return strings.Join(s, "\n")
}
