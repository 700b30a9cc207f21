// Package tmux drives the tmux server that hosts the agent.
//
// Every session runs on its own socket (tmux -L <prefix>-<session>), so its
// server never mixes with the operator's tmux sessions or with other
// dispatcher runs. All tmux invocations go through a Runner so the command
// sequence can be asserted in tests without a tmux binary.
package tmux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/uuid"
)

// Binary is the tmux executable name looked up on PATH.
const Binary = "tmux"

// DefaultSocket is the default socket prefix.
const DefaultSocket = "dispatcher"

// SessionPrefix starts every generated session name.
const SessionPrefix = "codex_task_"

// Result holds the separated output streams of one tmux invocation.
type Result struct {
	Stdout string
	Stderr string
}

// Runner executes tmux with the given arguments. Implementations must return
// the output streams even when the command fails.
type Runner interface {
	Run(ctx context.Context, args ...string) (Result, error)
}

// ExecRunner runs the real tmux binary.
type ExecRunner struct {
	// Path overrides the binary; empty means "tmux" from PATH.
	Path string
}

// Run executes tmux and returns its output. A failing command's error
// carries the trimmed stderr.
func (r ExecRunner) Run(ctx context.Context, args ...string) (Result, error) {
	path := r.Path
	if path == "" {
		path = Binary
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if msg := strings.TrimSpace(res.Stderr); msg != "" {
			return res, fmt.Errorf("%w: %s", err, msg)
		}
		return res, err
	}
	return res, nil
}

// BaseArgsWithSocket returns the socket arguments for socket. An empty
// socket selects the default tmux server and yields no arguments.
func BaseArgsWithSocket(socket string) []string {
	if socket == "" {
		return nil
	}
	return []string{"-L", socket}
}

// CommandArgsWithSocket returns tmux arguments prefixed with the socket selection.
func CommandArgsWithSocket(socket string, args ...string) []string {
	return append(BaseArgsWithSocket(socket), args...)
}

// CommandLine renders a tmux invocation for error reports and logs.
func CommandLine(args []string) string {
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, Binary)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		quoted = append(quoted, a)
	}
	return strings.Join(quoted, " ")
}

// NewSessionName returns a fresh session name of the form
// codex_task_<8 hex digits>.
func NewSessionName() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return SessionPrefix + id[:8]
}

// SessionSocket returns the socket of one session, "<prefix>-<session>".
// An empty prefix selects the operator's default tmux server.
func SessionSocket(prefix, session string) string {
	if prefix == "" {
		return ""
	}
	return prefix + "-" + session
}

// PaneTarget returns the target of the first pane of the session's first window.
func PaneTarget(session string) string {
	return session + ":0.0"
}

// isSessionNotFound reports whether tmux output says the session or its
// server is gone.
func isSessionNotFound(msg string) bool {
	return strings.Contains(msg, "session not found") ||
		strings.Contains(msg, "no server running") ||
		strings.Contains(msg, "can't find session") ||
		strings.Contains(msg, "can't find pane") ||
		strings.Contains(msg, "error connecting to") ||
		strings.Contains(msg, "server exited unexpectedly")
}
