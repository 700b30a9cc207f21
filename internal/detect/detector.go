// Package detect decides when the agent has finished working by watching
// the live elapsed-work timer across successive pane snapshots.
//
// The agent never announces completion. While it works it renders a timer
// such as "(1m 12s • esc to interrupt)" that advances every second. Two
// independent counters turn that noisy signal into a single event:
//
//   - the stable counter grows while the timer shows the same value poll
//     after poll, and restarts at 1 whenever the value changes;
//   - the absent counter grows while no timer is visible at all, and
//     restarts at 0 as soon as one reappears.
//
// Whichever counter first reaches its threshold completes the session. A
// Detector is owned by a single monitoring loop and is not safe for
// concurrent use.
package detect

import (
	"github.com/Iron-Ham/dispatcher/internal/answer"
	"github.com/Iron-Ham/dispatcher/internal/errors"
	"github.com/Iron-Ham/dispatcher/internal/pane"
)

// DefaultThreshold is the default number of consecutive polls required to
// declare completion.
const DefaultThreshold = 5

// Phase is the detector's lifecycle state.
type Phase int

const (
	// PhasePolling means completion has not been detected yet.
	PhasePolling Phase = iota
	// PhaseCompleted is terminal; the detector accepts no more snapshots.
	PhaseCompleted
)

// String returns a human-readable string for the phase.
func (p Phase) String() string {
	switch p {
	case PhasePolling:
		return "polling"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Trigger names the signal that completed a session.
type Trigger int

const (
	// TriggerNone means the session has not completed.
	TriggerNone Trigger = iota
	// TriggerStableTimer means the live timer stopped advancing.
	TriggerStableTimer
	// TriggerTimerAbsent means the live timer disappeared.
	TriggerTimerAbsent
)

// String returns a human-readable string for the trigger.
func (t Trigger) String() string {
	switch t {
	case TriggerNone:
		return "none"
	case TriggerStableTimer:
		return "stable_timer"
	case TriggerTimerAbsent:
		return "timer_absent"
	default:
		return "unknown"
	}
}

// Policy selects the counting rules.
type Policy int

const (
	// PolicySplit tracks stability and absence with separate counters and
	// completes on either.
	PolicySplit Policy = iota
	// PolicyLegacy keeps only the stable counter: a missing timer resets it
	// to zero and can never complete the session.
	PolicyLegacy
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case PolicySplit:
		return "split"
	case PolicyLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a configuration value to a Policy. Unknown values
// return false.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "", "split":
		return PolicySplit, true
	case "legacy":
		return PolicyLegacy, true
	default:
		return PolicySplit, false
	}
}

// Config holds the detector thresholds.
type Config struct {
	// StabilityThreshold is the number of consecutive polls with an
	// unchanged timer value that completes the session.
	StabilityThreshold int
	// AbsenceThreshold is the number of consecutive polls without any timer
	// that completes the session. Zero means StabilityThreshold.
	AbsenceThreshold int
	Policy           Policy
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{
		StabilityThreshold: DefaultThreshold,
		AbsenceThreshold:   DefaultThreshold,
		Policy:             PolicySplit,
	}
}

func (c Config) normalized() Config {
	if c.StabilityThreshold <= 0 {
		c.StabilityThreshold = DefaultThreshold
	}
	if c.AbsenceThreshold <= 0 {
		c.AbsenceThreshold = c.StabilityThreshold
	}
	return c
}

// Counters is the detector's mutable state.
type Counters struct {
	StableCount int
	// LastTimerValue is meaningful only when HasTimerValue is set.
	LastTimerValue string
	HasTimerValue  bool
	AbsentCount    int
}

// Observation is the outcome of evaluating one snapshot.
type Observation struct {
	// Poll is the 1-based index of the snapshot in this session.
	Poll     int
	Signals  pane.Signals
	Counters Counters
	Phase    Phase
	Trigger  Trigger
	// Span is set once Phase is PhaseCompleted.
	Span answer.Span
}

// Completed reports whether this observation completed the session.
func (o Observation) Completed() bool {
	return o.Phase == PhaseCompleted
}

// Detector is the completion state machine for one monitored session.
type Detector struct {
	config   Config
	parser   *pane.Parser
	counters Counters
	phase    Phase
	polls    int
	last     Observation
}

// New creates a detector. A nil parser uses the default markers.
func New(cfg Config, parser *pane.Parser) *Detector {
	if parser == nil {
		parser = pane.DefaultParser()
	}
	return &Detector{
		config: cfg.normalized(),
		parser: parser,
	}
}

// Config returns the effective configuration.
func (d *Detector) Config() Config {
	return d.config
}

// Phase returns the current phase.
func (d *Detector) Phase() Phase {
	return d.phase
}

// Counters returns a copy of the current counters.
func (d *Detector) Counters() Counters {
	return d.counters
}

// Last returns the most recent observation.
func (d *Detector) Last() Observation {
	return d.last
}

// Observe evaluates the next snapshot. Once the detector has completed it
// returns ErrDetectorCompleted and leaves its state untouched.
func (d *Detector) Observe(snap pane.Snapshot) (Observation, error) {
	if d.phase == PhaseCompleted {
		return d.last, errors.ErrDetectorCompleted
	}
	d.polls++

	lines := []string(snap)
	signals := d.parser.Scan(lines)
	obs := Observation{Poll: d.polls, Signals: signals, Phase: PhasePolling}

	if !signals.Timer.Found {
		d.counters.StableCount = 0
		d.counters.LastTimerValue = ""
		d.counters.HasTimerValue = false
		if d.config.Policy == PolicySplit {
			d.counters.AbsentCount++
			if d.counters.AbsentCount >= d.config.AbsenceThreshold {
				d.complete(&obs, TriggerTimerAbsent, answer.ResolveTimerAbsent(d.parser, lines))
			}
		}
	} else {
		d.counters.AbsentCount = 0
		value := signals.Timer.Value
		if d.counters.HasTimerValue && value == d.counters.LastTimerValue {
			d.counters.StableCount++
		} else {
			d.counters.LastTimerValue = value
			d.counters.HasTimerValue = true
			d.counters.StableCount = 1
		}
		if d.counters.StableCount >= d.config.StabilityThreshold {
			d.complete(&obs, TriggerStableTimer, answer.ResolveStableTimer(d.parser, lines, signals.Timer.Index))
		}
	}

	obs.Counters = d.counters
	d.last = obs
	return obs, nil
}

func (d *Detector) complete(obs *Observation, trigger Trigger, span answer.Span) {
	d.phase = PhaseCompleted
	obs.Phase = PhaseCompleted
	obs.Trigger = trigger
	obs.Span = span
}
