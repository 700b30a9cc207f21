// Package monitor runs the polling loop that watches the agent's pane until
// the completion detector fires, the operator interrupts, or a fault occurs.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/dispatcher/internal/answer"
	"github.com/Iron-Ham/dispatcher/internal/detect"
	"github.com/Iron-Ham/dispatcher/internal/errors"
	"github.com/Iron-Ham/dispatcher/internal/logging"
	"github.com/Iron-Ham/dispatcher/internal/pane"
	"github.com/Iron-Ham/dispatcher/internal/util"
)

// Source captures the monitored pane.
type Source interface {
	Capture(ctx context.Context) (pane.Snapshot, error)
}

// Reporter receives every captured snapshot for display.
type Reporter interface {
	Poll(snap pane.Snapshot, sig pane.Signals, tailLines int)
}

// Settings are the operator-facing knobs that may change while a session
// is being monitored.
type Settings struct {
	PollInterval     time.Duration
	TailPreviewLines int
}

// Options configures a Monitor.
type Options struct {
	Settings
	Detector detect.Config
	// Parser locates signals; nil uses the default markers.
	Parser *pane.Parser
	// MaxPolls aborts with ErrMaxPollsExceeded after this many polls.
	// Zero means unbounded.
	MaxPolls int
}

// Result describes how monitoring ended. Final and Signals reflect the last
// successful capture even when Run returns an error.
type Result struct {
	Answer  string
	Trigger detect.Trigger
	Span    answer.Span
	Polls   int
	Final   pane.Snapshot
	Signals pane.Signals
}

// Completed reports whether the detector fired.
func (r Result) Completed() bool {
	return r.Trigger != detect.TriggerNone
}

// Monitor polls a Source and feeds a detector.
type Monitor struct {
	source   Source
	reporter Reporter
	logger   *logging.Logger
	opts     Options

	mu       sync.Mutex
	settings Settings

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Monitor. A nil reporter disables previews and a nil logger
// discards log output.
func New(source Source, opts Options, reporter Reporter, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Monitor{
		source:   source,
		reporter: reporter,
		logger:   logger.WithComponent("monitor"),
		opts:     opts,
		settings: opts.Settings,
		sleep:    util.SleepContext,
	}
}

// Update replaces the live settings. It takes effect from the next poll.
// Non-positive intervals are ignored.
func (m *Monitor) Update(s Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.PollInterval > 0 {
		m.settings.PollInterval = s.PollInterval
	}
	if s.TailPreviewLines >= 0 {
		m.settings.TailPreviewLines = s.TailPreviewLines
	}
	m.logger.Info("monitor settings updated",
		"poll_interval", m.settings.PollInterval.String(),
		"tail_preview_lines", m.settings.TailPreviewLines,
	)
}

// Settings returns the current live settings.
func (m *Monitor) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Run polls until completion. It returns ErrInterrupted when ctx is
// cancelled, ErrMaxPollsExceeded when the ceiling is hit, and the Source's
// error, unchanged, on an observation fault.
func (m *Monitor) Run(ctx context.Context) (Result, error) {
	det := detect.New(m.opts.Detector, m.opts.Parser)
	var res Result

	for {
		if ctx.Err() != nil {
			return res, m.interrupted(res)
		}
		if m.opts.MaxPolls > 0 && res.Polls >= m.opts.MaxPolls {
			m.logger.Warn("poll ceiling reached", "polls", res.Polls)
			return res, errors.ErrMaxPollsExceeded
		}

		snap, err := m.source.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return res, m.interrupted(res)
			}
			m.logger.Error("capture failed", "poll", res.Polls+1, "error", err)
			return res, err
		}

		obs, err := det.Observe(snap)
		if err != nil {
			return res, err
		}
		res.Polls = obs.Poll
		res.Final = snap
		res.Signals = obs.Signals

		settings := m.Settings()
		if m.reporter != nil {
			m.reporter.Poll(snap, obs.Signals, settings.TailPreviewLines)
		}
		m.logger.Debug("poll",
			"poll", obs.Poll,
			"timer", obs.Signals.Timer.Value,
			"timer_found", obs.Signals.Timer.Found,
			"context_left", obs.Signals.Budget.Percent,
			"context_found", obs.Signals.Budget.Found,
			"stable", obs.Counters.StableCount,
			"absent", obs.Counters.AbsentCount,
		)

		if obs.Completed() {
			res.Trigger = obs.Trigger
			res.Span = obs.Span
			res.Answer = answer.Render(snap, obs.Span)
			m.logger.Info("completion detected",
				"trigger", obs.Trigger.String(),
				"answer_case", obs.Span.Case.String(),
				"polls", obs.Poll,
			)
			return res, nil
		}

		if err := m.sleep(ctx, settings.PollInterval); err != nil {
			return res, m.interrupted(res)
		}
	}
}

func (m *Monitor) interrupted(res Result) error {
	m.logger.Info("monitoring interrupted", "polls", res.Polls)
	return errors.ErrInterrupted
}
