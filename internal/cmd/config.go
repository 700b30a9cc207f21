package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/dispatcher/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View dispatcher configuration",
	Long: `View dispatcher configuration.

Without arguments, displays the effective configuration after defaults,
the config file and DISPATCHER_* environment variables are merged.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/dispatcher/config.yaml with the common options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n\n")
	}

	settings := viper.AllSettings()
	// "config" is the --config flag, not a setting
	delete(settings, "config")

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

const defaultConfigContent = `# Dispatcher Configuration

dispatch:
  # Seconds between pane captures
  poll_interval_seconds: 1
  # Consecutive polls with an unchanged timer that end the turn
  stability_threshold: 5
  # Consecutive polls without a timer that end the turn (0 = stability_threshold)
  absence_threshold: 5
  # Trailing pane lines echoed after every poll
  tail_preview_lines: 10
  # Give up after this many polls (0 = never)
  max_polls: 0
  # Milliseconds to wait for the agent UI before typing the prompt
  startup_delay_ms: 1000
  # Completion counting rules
  # Options: split, legacy
  policy: split

# Agent CLI
agent:
  # Typed into the pane to start the agent
  command: codex -s danger-full-access
  # Must be on PATH
  binary: codex

# tmux server and pane
tmux:
  # Socket prefix; each run gets its own server (-L <socket>-<session>).
  # Empty uses your default tmux server
  socket: dispatcher
  width: 200
  height: 50
  history_limit: 50000

capture:
  # Capture the whole scrollback instead of the visible pane
  full_scrollback: false

logging:
  # Options: debug, info, warn, error
  level: info
  # Directory for dispatcher.log; empty logs to stderr
  dir: ""

paths:
  # Final pane snapshots are saved here
  transcript_dir: agents/logs
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_DISPATCH_MAX_POLLS)\n", config.EnvPrefix, config.EnvPrefix)
	return nil
}
