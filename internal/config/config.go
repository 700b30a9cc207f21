package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/dispatcher/internal/detect"
	"github.com/Iron-Ham/dispatcher/internal/pane"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// DISPATCHER_DISPATCH_POLL_INTERVAL_SECONDS.
const EnvPrefix = "DISPATCHER"

// Config represents the complete dispatcher configuration
type Config struct {
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Tmux     TmuxConfig     `mapstructure:"tmux"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Markers  MarkersConfig  `mapstructure:"markers"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

// DispatchConfig controls prompt submission and the monitoring loop
type DispatchConfig struct {
	// PollIntervalSeconds is the pause between pane captures
	PollIntervalSeconds float64 `mapstructure:"poll_interval_seconds"`
	// StabilityThreshold is how many consecutive polls with an unchanged
	// timer value complete the session
	StabilityThreshold int `mapstructure:"stability_threshold"`
	// AbsenceThreshold is how many consecutive polls without a timer complete
	// the session (0 = same as stability_threshold)
	AbsenceThreshold int `mapstructure:"absence_threshold"`
	// TailPreviewLines is how many trailing pane lines are echoed per poll
	TailPreviewLines int `mapstructure:"tail_preview_lines"`
	// MaxPolls aborts monitoring after this many polls (0 = unbounded)
	MaxPolls int `mapstructure:"max_polls"`
	// StartupDelayMs is the wait between launching the agent and typing the prompt
	StartupDelayMs int `mapstructure:"startup_delay_ms"`
	// Prompt is the default prompt when none is given on the command line
	Prompt string `mapstructure:"prompt"`
	// PromptFile is read when neither arguments nor Prompt supply a prompt
	PromptFile string `mapstructure:"prompt_file"`
	// Policy selects the completion counting rules
	// Options: "split", "legacy"
	Policy string `mapstructure:"policy"`
}

// AgentConfig describes how the agent CLI is launched
type AgentConfig struct {
	// Command is typed into the pane to start the agent
	Command string `mapstructure:"command"`
	// Binary must be on PATH before a session is created
	Binary string `mapstructure:"binary"`
}

// TmuxConfig controls the tmux session hosting the agent
type TmuxConfig struct {
	// Socket prefixes the per-session server socket (-L <socket>-<session>);
	// empty uses the default server
	Socket string `mapstructure:"socket"`
	// Width is the pane width in columns
	Width int `mapstructure:"width"`
	// Height is the pane height in rows
	Height int `mapstructure:"height"`
	// HistoryLimit is the scrollback kept by the pane (0 = tmux default)
	HistoryLimit int `mapstructure:"history_limit"`
}

// CaptureConfig controls pane capture
type CaptureConfig struct {
	// FullScrollback captures the whole history instead of the visible pane
	FullScrollback bool `mapstructure:"full_scrollback"`
}

// MarkersConfig overrides the pane markers used for detection.
// Empty values use the built-in Codex markers. ContextLeftPhrase pre-filters
// lines for ContextLeftPattern; left empty it is "context left" with the
// built-in pattern and no pre-filter with a custom one.
type MarkersConfig struct {
	TimerPattern       string   `mapstructure:"timer_pattern"`
	ContextLeftPattern string   `mapstructure:"context_left_pattern"`
	ContextLeftPhrase  string   `mapstructure:"context_left_phrase"`
	PromptGlyphs       []string `mapstructure:"prompt_glyphs"`
	WorkedForPhrase    string   `mapstructure:"worked_for_phrase"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// Dir is where dispatcher.log is written; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// PathsConfig controls where artifacts are written
type PathsConfig struct {
	// TranscriptDir receives the final pane snapshot of every session
	TranscriptDir string `mapstructure:"transcript_dir"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	spec := pane.DefaultMarkerSpec()
	return &Config{
		Dispatch: DispatchConfig{
			PollIntervalSeconds: 1,
			StabilityThreshold:  detect.DefaultThreshold,
			AbsenceThreshold:    detect.DefaultThreshold,
			TailPreviewLines:    10,
			MaxPolls:            0,
			StartupDelayMs:      1000,
			Prompt:              "",
			PromptFile:          "",
			Policy:              detect.PolicySplit.String(),
		},
		Agent: AgentConfig{
			Command: "codex -s danger-full-access",
			Binary:  "codex",
		},
		Tmux: TmuxConfig{
			Socket:       "dispatcher",
			Width:        200,
			Height:       50,
			HistoryLimit: 50000,
		},
		Capture: CaptureConfig{
			FullScrollback: false,
		},
		Markers: MarkersConfig{
			TimerPattern:       spec.TimerPattern,
			ContextLeftPattern: spec.ContextLeftPattern,
			PromptGlyphs:       spec.PromptGlyphs,
			WorkedForPhrase:    spec.WorkedForPhrase,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
		Paths: PathsConfig{
			TranscriptDir: filepath.Join("agents", "logs"),
		},
	}
}

// PollInterval returns the poll interval as a Duration
func (c *DispatchConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds * float64(time.Second))
}

// StartupDelay returns the agent startup delay as a Duration
func (c *DispatchConfig) StartupDelay() time.Duration {
	return time.Duration(c.StartupDelayMs) * time.Millisecond
}

// DetectorConfig returns the completion detector settings.
// Validate must have accepted the policy.
func (c *DispatchConfig) DetectorConfig() detect.Config {
	policy, _ := detect.ParsePolicy(c.Policy)
	return detect.Config{
		StabilityThreshold: c.StabilityThreshold,
		AbsenceThreshold:   c.AbsenceThreshold,
		Policy:             policy,
	}
}

// Spec converts the marker overrides into a compilable marker spec
func (c *MarkersConfig) Spec() pane.MarkerSpec {
	spec := pane.DefaultMarkerSpec()
	spec.TimerPattern = c.TimerPattern
	spec.ContextLeftPattern = c.ContextLeftPattern
	spec.ContextLeftPhrase = c.ContextLeftPhrase
	spec.PromptGlyphs = c.PromptGlyphs
	spec.WorkedForPhrase = c.WorkedForPhrase
	return spec
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Dispatch defaults
	viper.SetDefault("dispatch.poll_interval_seconds", defaults.Dispatch.PollIntervalSeconds)
	viper.SetDefault("dispatch.stability_threshold", defaults.Dispatch.StabilityThreshold)
	viper.SetDefault("dispatch.absence_threshold", defaults.Dispatch.AbsenceThreshold)
	viper.SetDefault("dispatch.tail_preview_lines", defaults.Dispatch.TailPreviewLines)
	viper.SetDefault("dispatch.max_polls", defaults.Dispatch.MaxPolls)
	viper.SetDefault("dispatch.startup_delay_ms", defaults.Dispatch.StartupDelayMs)
	viper.SetDefault("dispatch.prompt", defaults.Dispatch.Prompt)
	viper.SetDefault("dispatch.prompt_file", defaults.Dispatch.PromptFile)
	viper.SetDefault("dispatch.policy", defaults.Dispatch.Policy)

	// Agent defaults
	viper.SetDefault("agent.command", defaults.Agent.Command)
	viper.SetDefault("agent.binary", defaults.Agent.Binary)

	// Tmux defaults
	viper.SetDefault("tmux.socket", defaults.Tmux.Socket)
	viper.SetDefault("tmux.width", defaults.Tmux.Width)
	viper.SetDefault("tmux.height", defaults.Tmux.Height)
	viper.SetDefault("tmux.history_limit", defaults.Tmux.HistoryLimit)

	// Capture defaults
	viper.SetDefault("capture.full_scrollback", defaults.Capture.FullScrollback)

	// Marker defaults
	viper.SetDefault("markers.timer_pattern", defaults.Markers.TimerPattern)
	viper.SetDefault("markers.context_left_pattern", defaults.Markers.ContextLeftPattern)
	viper.SetDefault("markers.context_left_phrase", defaults.Markers.ContextLeftPhrase)
	viper.SetDefault("markers.prompt_glyphs", defaults.Markers.PromptGlyphs)
	viper.SetDefault("markers.worked_for_phrase", defaults.Markers.WorkedForPhrase)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// Paths defaults
	viper.SetDefault("paths.transcript_dir", defaults.Paths.TranscriptDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dispatcher")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dispatcher"
	}
	return filepath.Join(home, ".config", "dispatcher")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
