package tmux

import (
	"context"
	"regexp"
	"slices"
	"testing"
)

func TestBaseArgsWithSocket(t *testing.T) {
	if got := BaseArgsWithSocket(""); len(got) != 0 {
		t.Errorf("BaseArgsWithSocket(\"\") = %v, want none", got)
	}
	if got := BaseArgsWithSocket("ci"); !slices.Equal(got, []string{"-L", "ci"}) {
		t.Errorf("BaseArgsWithSocket(ci) = %v", got)
	}
}

func TestCommandArgsWithSocket(t *testing.T) {
	args := CommandArgsWithSocket(DefaultSocket, "kill-session", "-t", "test")

	expected := []string{"-L", DefaultSocket, "kill-session", "-t", "test"}
	if !slices.Equal(args, expected) {
		t.Errorf("CommandArgsWithSocket() = %v, want %v", args, expected)
	}
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"capture-pane", "-p", "-t", "s:0.0"}, "tmux capture-pane -p -t s:0.0"},
		{[]string{"send-keys", "-t", "s:0.0", "-l", "hello world"}, `tmux send-keys -t s:0.0 -l "hello world"`},
		{[]string{"send-keys", ""}, `tmux send-keys ""`},
	}
	for _, tt := range tests {
		if got := CommandLine(tt.args); got != tt.want {
			t.Errorf("CommandLine(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestNewSessionName(t *testing.T) {
	pattern := regexp.MustCompile(`^codex_task_[0-9a-f]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		name := NewSessionName()
		if !pattern.MatchString(name) {
			t.Fatalf("NewSessionName() = %q, want codex_task_<8 hex>", name)
		}
		seen[name] = true
	}
	if len(seen) < 49 {
		t.Errorf("expected unique names, got %d distinct of 50", len(seen))
	}
}

func TestPaneTarget(t *testing.T) {
	if got := PaneTarget("codex_task_1a2b3c4d"); got != "codex_task_1a2b3c4d:0.0" {
		t.Errorf("PaneTarget() = %q", got)
	}
}

func TestIsSessionNotFound(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"can't find session: codex_task_x", true},
		{"no server running on /tmp/tmux-0/dispatcher", true},
		{"error connecting to /tmp/tmux-0/dispatcher (No such file or directory)", true},
		{"can't find pane: %3", true},
		{"server exited unexpectedly", true},
		{"unknown option -- z", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isSessionNotFound(tt.msg); got != tt.want {
			t.Errorf("isSessionNotFound(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := ExecRunner{Path: "/nonexistent/tmux-binary"}
	if _, err := r.Run(context.Background(), "-V"); err == nil {
		t.Error("expected error for missing binary")
	}
}
