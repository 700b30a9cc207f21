// Package preview prints the operator-facing view of each poll: a
// timestamped header, the last lines of the pane in cyan and a metrics line.
package preview

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/Iron-Ham/dispatcher/internal/pane"
)

// Unknown is shown for a metric the pane does not currently display.
const Unknown = "unknown"

const timestampLayout = "2006-01-02 15:04:05"

// Printer writes poll previews to an output stream. It is safe for
// concurrent use.
type Printer struct {
	mu    sync.Mutex
	out   io.Writer
	tail  lipgloss.Style
	width int
	now   func() time.Time
}

// NewPrinter creates a Printer for out. Colors follow out's capabilities,
// so a pipe or file receives plain text. Lines wider than the terminal are
// truncated when out is a terminal.
func NewPrinter(out io.Writer) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out:   out,
		tail:  r.NewStyle().Foreground(lipgloss.Color("6")),
		width: TerminalWidth(out),
		now:   time.Now,
	}
}

// WithClock replaces the clock used for headers.
func (p *Printer) WithClock(now func() time.Time) *Printer {
	p.now = now
	return p
}

// WithWidth overrides the truncation width; 0 disables truncation.
func (p *Printer) WithWidth(width int) *Printer {
	p.width = width
	return p
}

// Poll prints one preview with the last tailLines lines of snap.
func (p *Printer) Poll(snap pane.Snapshot, sig pane.Signals, tailLines int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n[%s] ---- tmux pane tail ----\n", p.now().Format(timestampLayout))
	for _, line := range trimTrailingBlank(snap.Tail(tailLines)) {
		sb.WriteString(p.tail.Render(truncate(line, p.width)))
		sb.WriteByte('\n')
	}
	sb.WriteString(FormatMetrics(sig))
	sb.WriteByte('\n')

	_, _ = io.WriteString(p.out, sb.String())
}

// Printf writes a formatted status message.
func (p *Printer) Printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// FormatMetrics renders "Metrics: timer=<value> context_left=<n>%", using
// "unknown" for signals that are not on screen.
func FormatMetrics(sig pane.Signals) string {
	timer := Unknown
	if sig.Timer.Found && sig.Timer.Value != "" {
		timer = sig.Timer.Value
	}
	budget := Unknown
	if sig.Budget.Found {
		budget = fmt.Sprintf("%d%%", sig.Budget.Percent)
	}
	return fmt.Sprintf("Metrics: timer=%s context_left=%s", timer, budget)
}

// TerminalWidth returns the column count of w when it is a terminal, or 0.
func TerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// truncate shortens s to width visual columns with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	if width <= 3 {
		return "..."
	}
	return ansi.Truncate(s, width, "...")
}

func trimTrailingBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
