// Package testutil provides fakes and helpers shared by dispatcher tests.
package testutil

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/dispatcher/internal/pane"
	"github.com/Iron-Ham/dispatcher/internal/tmux"
)

// SkipIfNoTmux skips the test if tmux is not installed.
func SkipIfNoTmux(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not found in PATH, skipping test")
	}
}

// TimerPane renders a pane showing the live timer with value, an answer
// body and an idle prompt.
func TimerPane(value string, body ...string) pane.Snapshot {
	lines := []string{
		"› run the task",
		fmt.Sprintf("• Working (%s • esc to interrupt)", value),
		"",
	}
	lines = append(lines, body...)
	lines = append(lines, "", "› ", "  88% context left · ? for shortcuts")
	return pane.Snapshot(lines)
}

// IdlePane renders a finished pane with a "Worked for" summary.
func IdlePane(body ...string) pane.Snapshot {
	lines := []string{"› run the task", "─ Worked for 2m 03s ─", ""}
	lines = append(lines, body...)
	lines = append(lines, "", "› ")
	return pane.Snapshot(lines)
}

// ScriptedSource replays a fixed sequence of snapshots. Once the script is
// exhausted the last snapshot repeats. Errs, keyed by 1-based capture
// number, injects failures.
type ScriptedSource struct {
	mu        sync.Mutex
	Snapshots []pane.Snapshot
	Errs      map[int]error
	calls     int
	// OnCapture runs after each capture with its 1-based number.
	OnCapture func(n int)
}

// Capture returns the next scripted snapshot.
func (s *ScriptedSource) Capture(ctx context.Context) (pane.Snapshot, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	hook := s.OnCapture
	var snap pane.Snapshot
	if len(s.Snapshots) > 0 {
		idx := min(n-1, len(s.Snapshots)-1)
		snap = s.Snapshots[idx]
	}
	err := s.Errs[n]
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Calls returns how many captures were made.
func (s *ScriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FakeRunner records tmux invocations and answers them from handlers.
// It implements tmux.Runner.
type FakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	// Handle answers a call; nil returns an empty result.
	Handle func(args []string) (tmux.Result, error)
}

// Run records args and delegates to Handle.
func (f *FakeRunner) Run(ctx context.Context, args ...string) (tmux.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	handle := f.Handle
	f.mu.Unlock()

	if handle == nil {
		return tmux.Result{}, nil
	}
	return handle(args)
}

// Calls returns a copy of every recorded invocation.
func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = append([]string(nil), c...)
	}
	return out
}

// Commands returns the tmux subcommand of every invocation, skipping any
// leading socket arguments.
func (f *FakeRunner) Commands() []string {
	var cmds []string
	for _, c := range f.Calls() {
		cmds = append(cmds, Subcommand(c))
	}
	return cmds
}

// Subcommand returns the first argument after the socket selection.
func Subcommand(args []string) string {
	if len(args) >= 2 && args[0] == "-L" {
		args = args[2:]
	}
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// HasCall reports whether any invocation contains all of want, in order.
func (f *FakeRunner) HasCall(want ...string) bool {
	needle := strings.Join(want, "\x00")
	for _, c := range f.Calls() {
		if strings.Contains(strings.Join(c, "\x00"), needle) {
			return true
		}
	}
	return false
}
