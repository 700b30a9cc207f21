// Package dispatch runs one complete agent session: it checks the required
// binaries, starts the agent inside tmux, submits the prompt, monitors the
// pane until completion, and always saves a transcript and tears the session
// down, whatever way the run ends.
package dispatch

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/Iron-Ham/dispatcher/internal/detect"
	"github.com/Iron-Ham/dispatcher/internal/errors"
	"github.com/Iron-Ham/dispatcher/internal/logging"
	"github.com/Iron-Ham/dispatcher/internal/monitor"
	"github.com/Iron-Ham/dispatcher/internal/pane"
	"github.com/Iron-Ham/dispatcher/internal/tmux"
	"github.com/Iron-Ham/dispatcher/internal/transcript"
	"github.com/Iron-Ham/dispatcher/internal/util"
)

// cleanupTimeout bounds the final capture and teardown.
const cleanupTimeout = 10 * time.Second

// Host is a multiplexer session hosting the agent. *tmux.Session implements it.
type Host interface {
	Name() string
	Target() string
	Created() bool
	Create(ctx context.Context) error
	Launch(ctx context.Context, command string) error
	Submit(ctx context.Context, prompt string) error
	Capture(ctx context.Context) (pane.Snapshot, error)
	Terminate(ctx context.Context) error
}

// Printer shows progress to the operator. *preview.Printer implements it.
type Printer interface {
	monitor.Reporter
	Printf(format string, args ...any)
}

// Config holds the settings of one run.
type Config struct {
	AgentCommand string
	// AgentBinary must be on PATH along with tmux.
	AgentBinary  string
	StartupDelay time.Duration
	Monitor      monitor.Options
}

// Outcome summarizes a run. It is populated as far as the run got, so it is
// meaningful alongside an error too.
type Outcome struct {
	Session        string
	Result         monitor.Result
	TranscriptPath string
}

// Dispatcher drives a single session. Create one per run.
type Dispatcher struct {
	cfg         Config
	host        Host
	transcripts *transcript.Writer
	printer     Printer
	logger      *logging.Logger

	lookPath func(string) (string, error)
	sleep    func(context.Context, time.Duration) error

	mu  sync.Mutex
	mon *monitor.Monitor
}

// New creates a Dispatcher. A nil logger discards log output.
func New(cfg Config, host Host, transcripts *transcript.Writer, printer Printer, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Dispatcher{
		cfg:         cfg,
		host:        host,
		transcripts: transcripts,
		printer:     printer,
		logger:      logger.WithSession(host.Name()).WithComponent("dispatch"),
		lookPath:    exec.LookPath,
		sleep:       util.SleepContext,
	}
}

// UpdateSettings changes the live monitor settings of the current or next run.
func (d *Dispatcher) UpdateSettings(s monitor.Settings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg.Monitor.Settings = s
	if d.mon != nil {
		d.mon.Update(s)
	}
}

// CheckDependencies verifies that every binary is on PATH, returning a
// *errors.DependencyError for the first one missing.
func CheckDependencies(lookPath func(string) (string, error), binaries ...string) error {
	for _, bin := range binaries {
		if bin == "" {
			continue
		}
		if _, err := lookPath(bin); err != nil {
			return errors.NewDependencyError(bin, err)
		}
	}
	return nil
}

// Run executes the session with prompt. Interruption through ctx returns
// ErrInterrupted after the same cleanup as every other exit path.
func (d *Dispatcher) Run(ctx context.Context, prompt string) (out Outcome, err error) {
	out.Session = d.host.Name()

	if err := CheckDependencies(d.lookPath, tmux.Binary, d.cfg.AgentBinary); err != nil {
		d.logger.Error("dependency check failed", "error", err, "severity", errors.GetSeverity(err).String())
		return out, err
	}

	d.printf("Starting tmux session '%s' and launching Codex...\n", out.Session)

	defer func() {
		out.TranscriptPath = d.cleanup(ctx, out.Result.Final)
	}()

	if err := d.host.Create(ctx); err != nil {
		return out, err
	}
	if err := d.host.Launch(ctx, d.cfg.AgentCommand); err != nil {
		return out, err
	}
	if err := d.sleep(ctx, d.cfg.StartupDelay); err != nil {
		d.printf("\nInterrupted by user; shutting down tmux session.\n")
		return out, errors.ErrInterrupted
	}
	if err := d.host.Submit(ctx, prompt); err != nil {
		if ctx.Err() != nil {
			d.printf("\nInterrupted by user; shutting down tmux session.\n")
			return out, errors.ErrInterrupted
		}
		return out, err
	}

	mon := d.startMonitor()
	d.printf("Monitoring tmux pane output (last %d lines). Press Ctrl+C to stop.\n", mon.Settings().TailPreviewLines)

	out.Result, err = mon.Run(ctx)
	switch {
	case err == nil:
		d.printf("\n%s; final answer from pane:\n%s\n", completionHeadline(out.Result.Trigger), out.Result.Answer)
		return out, nil
	case errors.Is(err, errors.ErrInterrupted):
		d.printf("\nInterrupted by user; shutting down tmux session.\n")
		return out, err
	default:
		d.logger.Error("monitoring failed",
			"error", err,
			"severity", errors.GetSeverity(err).String(),
			"polls", out.Result.Polls,
		)
		return out, err
	}
}

func (d *Dispatcher) startMonitor() *monitor.Monitor {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mon = monitor.New(d.host, d.cfg.Monitor, d.printer, d.logger)
	return d.mon
}

// cleanup saves the transcript and tears the session down. It runs on every
// exit path once the session may exist, and survives a cancelled ctx.
func (d *Dispatcher) cleanup(ctx context.Context, last pane.Snapshot) string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	var path string
	if d.host.Created() {
		snap, err := d.host.Capture(ctx)
		if err != nil {
			d.logger.Warn("final capture failed", "error", err)
			snap = last
		}
		if snap != nil && d.transcripts != nil {
			p, werr := d.transcripts.Write(d.host.Name(), snap)
			if werr != nil {
				d.logger.Warn("failed to save transcript", "error", werr)
			} else {
				path = p
			}
		}
		if path != "" {
			d.printf("Saved tmux pane log to %s\n", path)
		} else {
			d.printf("Unable to capture tmux pane for logging.\n")
		}
	}

	if err := d.host.Terminate(ctx); err != nil {
		d.logger.Warn("teardown failed", "error", err)
	}
	d.printf("tmux session '%s' terminated.\n", d.host.Name())
	return path
}

func (d *Dispatcher) printf(format string, args ...any) {
	if d.printer != nil {
		d.printer.Printf(format, args...)
	}
}

func completionHeadline(t detect.Trigger) string {
	if t == detect.TriggerTimerAbsent {
		return "Detected finished turn (timer gone)"
	}
	return "Detected stable timer"
}
