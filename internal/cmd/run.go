package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/dispatcher/internal/config"
	"github.com/Iron-Ham/dispatcher/internal/dispatch"
	"github.com/Iron-Ham/dispatcher/internal/errors"
	"github.com/Iron-Ham/dispatcher/internal/logging"
	"github.com/Iron-Ham/dispatcher/internal/monitor"
	"github.com/Iron-Ham/dispatcher/internal/pane"
	"github.com/Iron-Ham/dispatcher/internal/preview"
	"github.com/Iron-Ham/dispatcher/internal/tmux"
	"github.com/Iron-Ham/dispatcher/internal/transcript"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt...]",
	Short: "Start an agent session, submit a prompt and wait for the answer",
	Long: `Run creates a tmux session, launches the agent, types the prompt and
polls the pane until the agent is done. The prompt comes from the arguments,
then dispatch.prompt, then the file named by --prompt-file.

Press Ctrl+C to stop early; the transcript is still saved and the session
is still torn down.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("prompt-file", "", "read the prompt from this file")
	runCmd.Flags().Int("max-polls", 0, "give up after this many polls (0 = unbounded)")
	runCmd.Flags().Float64("poll-interval", 0, "seconds between pane captures")
	runCmd.Flags().String("transcript-dir", "", "directory for pane transcripts")
	_ = viper.BindPFlag("dispatch.prompt_file", runCmd.Flags().Lookup("prompt-file"))
	_ = viper.BindPFlag("dispatch.max_polls", runCmd.Flags().Lookup("max-polls"))
	_ = viper.BindPFlag("dispatch.poll_interval_seconds", runCmd.Flags().Lookup("poll-interval"))
	_ = viper.BindPFlag("paths.transcript_dir", runCmd.Flags().Lookup("transcript-dir"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	prompt, err := resolvePrompt(args, cfg.Dispatch)
	if err != nil {
		return err
	}

	markers, err := cfg.Markers.Spec().Compile()
	if err != nil {
		return errors.Wrap(err, "invalid markers")
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return errors.Wrap(err, "failed to create logger")
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := tmux.NewSessionName()
	session := tmux.NewSession(name, tmux.Options{
		Socket:         tmux.SessionSocket(cfg.Tmux.Socket, name),
		Width:          cfg.Tmux.Width,
		Height:         cfg.Tmux.Height,
		HistoryLimit:   cfg.Tmux.HistoryLimit,
		FullScrollback: cfg.Capture.FullScrollback,
	}, tmux.ExecRunner{}, logger)

	out := cmd.OutOrStdout()
	d := dispatch.New(dispatch.Config{
		AgentCommand: cfg.Agent.Command,
		AgentBinary:  cfg.Agent.Binary,
		StartupDelay: cfg.Dispatch.StartupDelay(),
		Monitor: monitor.Options{
			Settings: monitorSettings(cfg),
			Detector: cfg.Dispatch.DetectorConfig(),
			Parser:   pane.NewParser(markers),
			MaxPolls: cfg.Dispatch.MaxPolls,
		},
	}, session, transcript.NewWriter(cfg.Paths.TranscriptDir), preview.NewPrinter(out), logger)

	watchConfig(d, logger)

	logger.Info("dispatch starting",
		"session", name,
		"policy", cfg.Dispatch.Policy,
		"stability_threshold", cfg.Dispatch.StabilityThreshold,
		"prompt_lines", strings.Count(prompt, "\n")+1,
	)

	_, err = d.Run(ctx, prompt)
	return reportRunError(cmd.ErrOrStderr(), cfg, err)
}

// resolvePrompt picks the prompt from the arguments, then the configured
// prompt, then the prompt file.
func resolvePrompt(args []string, d config.DispatchConfig) (string, error) {
	if prompt := strings.Join(args, " "); strings.TrimSpace(prompt) != "" {
		return prompt, nil
	}
	if strings.TrimSpace(d.Prompt) != "" {
		return d.Prompt, nil
	}
	if d.PromptFile != "" {
		data, err := os.ReadFile(d.PromptFile)
		if err != nil {
			return "", errors.Wrap(err, "failed to read prompt file")
		}
		if strings.TrimSpace(string(data)) != "" {
			return string(data), nil
		}
	}
	return "", fmt.Errorf("%w: no prompt given; pass it as arguments, set dispatch.prompt, or use --prompt-file", errors.ErrInvalidInput)
}

func monitorSettings(cfg *config.Config) monitor.Settings {
	return monitor.Settings{
		PollInterval:     cfg.Dispatch.PollInterval(),
		TailPreviewLines: cfg.Dispatch.TailPreviewLines,
	}
}

// watchConfig reloads the operator-facing settings of the running session
// when the config file changes. Detection thresholds stay fixed.
func watchConfig(d *dispatch.Dispatcher, logger *logging.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := config.Load()
		if err != nil {
			logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		d.UpdateSettings(monitorSettings(cfg))
	})
	viper.WatchConfig()
}

// reportRunError prints fault details and maps the outcome to the command's
// error. Interruption is a normal way to end a run.
func reportRunError(w io.Writer, cfg *config.Config, err error) error {
	if err == nil || errors.Is(err, errors.ErrInterrupted) {
		return nil
	}

	var depErr *errors.DependencyError
	var obsErr *errors.ObservationError
	switch {
	case errors.As(err, &depErr):
		fmt.Fprintf(w, "Required binary not found: %s. Ensure %s and %s are installed.\n",
			depErr.Binary, tmux.Binary, cfg.Agent.Binary)
	case errors.As(err, &obsErr):
		fmt.Fprintf(w, "tmux command failed: %v\n%s", obsErr, obsErr.Details())
	case errors.Is(err, errors.ErrMaxPollsExceeded):
		fmt.Fprintf(w, "Gave up after %d polls without detecting completion.\n", cfg.Dispatch.MaxPolls)
	}
	return err
}
