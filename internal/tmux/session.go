package tmux

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/dispatcher/internal/errors"
	"github.com/Iron-Ham/dispatcher/internal/logging"
	"github.com/Iron-Ham/dispatcher/internal/pane"
	"github.com/Iron-Ham/dispatcher/internal/util"
)

// DefaultGracefulStopTimeout is the wait between Ctrl+C and kill-session.
const DefaultGracefulStopTimeout = 500 * time.Millisecond

// Options configures a Session.
type Options struct {
	Socket         string
	Width          int
	Height         int
	HistoryLimit   int
	FullScrollback bool
	// GracefulStop is the wait after Ctrl+C before the session is killed.
	// Zero uses DefaultGracefulStopTimeout.
	GracefulStop time.Duration
}

// Session is one detached tmux session running the agent in its first pane.
// It is not safe for concurrent use.
type Session struct {
	name    string
	target  string
	opts    Options
	runner  Runner
	logger  *logging.Logger
	created bool
	sleep   func(context.Context, time.Duration) error
}

// NewSession prepares a session handle. Nothing runs until Create.
// A nil runner uses ExecRunner; a nil logger discards output.
func NewSession(name string, opts Options, runner Runner, logger *logging.Logger) *Session {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if opts.Width <= 0 {
		opts.Width = 200
	}
	if opts.Height <= 0 {
		opts.Height = 50
	}
	if opts.GracefulStop <= 0 {
		opts.GracefulStop = DefaultGracefulStopTimeout
	}
	return &Session{
		name:   name,
		target: PaneTarget(name),
		opts:   opts,
		runner: runner,
		logger: logger.WithSession(name).WithComponent("tmux"),
		sleep:  util.SleepContext,
	}
}

// Name returns the tmux session name.
func (s *Session) Name() string { return s.name }

// Target returns the pane target, "<session>:0.0".
func (s *Session) Target() string { return s.target }

// Created reports whether Create succeeded.
func (s *Session) Created() bool { return s.created }

func (s *Session) run(ctx context.Context, args ...string) (Result, []string, error) {
	full := CommandArgsWithSocket(s.opts.Socket, args...)
	res, err := s.runner.Run(ctx, full...)
	return res, full, err
}

// Create starts the detached session.
func (s *Session) Create(ctx context.Context) error {
	if s.created {
		return errors.NewSessionError("create", errors.ErrSessionExists).WithSession(s.name)
	}

	_, _, err := s.run(ctx, "new-session", "-d",
		"-s", s.name,
		"-x", strconv.Itoa(s.opts.Width),
		"-y", strconv.Itoa(s.opts.Height),
	)
	if err != nil {
		return errors.NewSessionError("failed to create tmux session", err).WithSession(s.name)
	}
	s.created = true

	// A failed option leaves a working session behind.
	if s.opts.HistoryLimit > 0 {
		if _, _, err := s.run(ctx, "set-option", "-t", s.name, "history-limit", strconv.Itoa(s.opts.HistoryLimit)); err != nil {
			s.logger.Warn("failed to set history-limit", "error", err)
		}
	}

	s.logger.Info("tmux session created", "target", s.target, "socket", s.opts.Socket)
	return nil
}

// Launch types command into the pane and presses Enter.
func (s *Session) Launch(ctx context.Context, command string) error {
	if err := s.sendLine(ctx, command); err != nil {
		return errors.NewSessionError("failed to launch agent", err).WithSession(s.name)
	}
	s.logger.Info("agent launched", "command", command)
	return nil
}

// Submit types the prompt one line at a time, pressing Enter after each so
// blank lines survive, then presses Enter once more to submit it.
func (s *Session) Submit(ctx context.Context, prompt string) error {
	lines := splitLines(prompt)
	for _, line := range lines {
		if err := s.sendLine(ctx, line); err != nil {
			return errors.NewSessionError("failed to submit prompt", err).WithSession(s.name)
		}
	}
	if err := s.sendKeys(ctx, "Enter"); err != nil {
		return errors.NewSessionError("failed to submit prompt", err).WithSession(s.name)
	}
	s.logger.Info("prompt submitted", "lines", len(lines))
	return nil
}

// sendLine types text literally, then sends C-m. Blank text sends only C-m.
func (s *Session) sendLine(ctx context.Context, text string) error {
	if !s.created {
		return errors.ErrSessionNotStarted
	}
	if strings.TrimSpace(text) != "" {
		if _, _, err := s.run(ctx, "send-keys", "-t", s.target, "-l", text); err != nil {
			return err
		}
	}
	return s.sendKeys(ctx, "C-m")
}

func (s *Session) sendKeys(ctx context.Context, keys ...string) error {
	if !s.created {
		return errors.ErrSessionNotStarted
	}
	args := append([]string{"send-keys", "-t", s.target}, keys...)
	_, _, err := s.run(ctx, args...)
	return err
}

// Capture returns the pane's current text. Failures are reported as
// *errors.ObservationError with the command and both output streams.
func (s *Session) Capture(ctx context.Context) (pane.Snapshot, error) {
	args := []string{"capture-pane", "-p", "-t", s.target}
	if s.opts.FullScrollback {
		args = append(args, "-S", "-")
	}

	res, full, err := s.run(ctx, args...)
	if err != nil {
		cause := errors.ErrCaptureFailed
		if isSessionNotFound(res.Stderr) || isSessionNotFound(err.Error()) {
			cause = errors.ErrTargetUnavailable
		}
		if ctx.Err() != nil {
			cause = ctx.Err()
		}
		return nil, errors.NewObservationError(err.Error(), cause).
			WithTarget(s.target).
			WithCommand(CommandLine(full)).
			WithOutput(res.Stdout, res.Stderr)
	}
	return pane.ParseSnapshot(res.Stdout), nil
}

// Terminate stops the agent with Ctrl+C, waits briefly, then kills the
// session, and the socket's server once no session is left on it. It runs
// every step even if earlier ones fail, is safe to call more than once, and
// ignores ctx cancellation so teardown still happens after an interrupt.
func (s *Session) Terminate(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	if s.created {
		if err := s.sendKeys(ctx, "C-c"); err != nil && !isSessionNotFound(err.Error()) {
			s.logger.Warn("failed to send Ctrl+C, proceeding to kill", "error", err)
		}
		_ = s.sleep(ctx, s.opts.GracefulStop)
	}

	var errs []error
	if _, _, err := s.run(ctx, "kill-session", "-t", s.name); err != nil && !isSessionNotFound(err.Error()) {
		errs = append(errs, err)
	}

	s.killServerIfEmpty(ctx)

	s.created = false
	if len(errs) > 0 {
		return errors.NewSessionError("failed to kill tmux session", errors.Join(errs...)).WithSession(s.name)
	}
	s.logger.Info("tmux session terminated")
	return nil
}

// killServerIfEmpty stops the server of a named socket when it hosts no
// sessions. The default server is never stopped, and a server with other
// sessions is left running.
func (s *Session) killServerIfEmpty(ctx context.Context) {
	if s.opts.Socket == "" {
		return
	}
	res, _, err := s.run(ctx, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		if !isSessionNotFound(res.Stderr) && !isSessionNotFound(err.Error()) {
			s.logger.Debug("list-sessions failed, leaving server running", "error", err)
		}
		return
	}
	if remaining := strings.TrimSpace(res.Stdout); remaining != "" {
		s.logger.Debug("server still hosts sessions, leaving it running",
			"socket", s.opts.Socket, "sessions", strings.Count(remaining, "\n")+1)
		return
	}
	if _, _, err := s.run(ctx, "kill-server"); err != nil && !isSessionNotFound(err.Error()) {
		s.logger.Debug("kill-server failed", "error", err)
	}
}

// splitLines splits text on line breaks the way an editor would: a trailing
// newline does not start another line, and an empty prompt has no lines.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
