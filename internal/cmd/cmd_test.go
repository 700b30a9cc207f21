package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/dispatcher/internal/config"
	"github.com/Iron-Ham/dispatcher/internal/errors"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "dispatcher" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "dispatcher")
	}

	expectedCmds := []string{"run", "config", "lint-tasks"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestResolvePrompt(t *testing.T) {
	dir := t.TempDir()
	promptFile := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(promptFile, []byte("from file\nsecond line\n"), 0644); err != nil {
		t.Fatal(err)
	}
	blankFile := filepath.Join(dir, "blank.txt")
	if err := os.WriteFile(blankFile, []byte("  \n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		cfg     config.DispatchConfig
		want    string
		wantErr bool
	}{
		{
			name: "arguments are joined",
			args: []string{"fix", "the", "tests"},
			cfg:  config.DispatchConfig{Prompt: "ignored"},
			want: "fix the tests",
		},
		{
			name: "configured prompt",
			cfg:  config.DispatchConfig{Prompt: "configured", PromptFile: promptFile},
			want: "configured",
		},
		{
			name: "prompt file",
			cfg:  config.DispatchConfig{PromptFile: promptFile},
			want: "from file\nsecond line\n",
		},
		{
			name:    "blank arguments and no fallback",
			args:    []string{" "},
			wantErr: true,
		},
		{
			name:    "blank prompt file",
			cfg:     config.DispatchConfig{PromptFile: blankFile},
			wantErr: true,
		},
		{
			name:    "missing prompt file",
			cfg:     config.DispatchConfig{PromptFile: filepath.Join(dir, "nope.txt")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePrompt(tt.args, tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("resolvePrompt() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolvePrompt() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("resolvePrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolvePrompt_EmptyIsInvalidInput(t *testing.T) {
	_, err := resolvePrompt(nil, config.DispatchConfig{})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("resolvePrompt() error = %v, want ErrInvalidInput", err)
	}
}

func TestReportRunError(t *testing.T) {
	cfg := config.Default()

	tests := []struct {
		name       string
		err        error
		wantErr    bool
		wantOutput string
	}{
		{name: "completed", err: nil},
		{name: "interrupted", err: fmt.Errorf("monitor: %w", errors.ErrInterrupted)},
		{
			name:       "missing binary",
			err:        errors.NewDependencyError("codex", os.ErrNotExist),
			wantErr:    true,
			wantOutput: "Required binary not found: codex. Ensure tmux and codex are installed.",
		},
		{
			name: "observation fault",
			err: errors.NewObservationError("capture failed", errors.ErrTargetUnavailable).
				WithCommand("tmux capture-pane -p -t codex_task_1a2b3c4d:0.0").
				WithOutput("", "can't find session"),
			wantErr:    true,
			wantOutput: "tmux command failed:",
		},
		{
			name:       "poll ceiling",
			err:        errors.ErrMaxPollsExceeded,
			wantErr:    true,
			wantOutput: "Gave up after",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := reportRunError(&buf, cfg, tt.err)
			if (err != nil) != tt.wantErr {
				t.Fatalf("reportRunError() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, tt.err) {
				t.Errorf("reportRunError() = %v, want the original error", err)
			}
			if !strings.Contains(buf.String(), tt.wantOutput) {
				t.Errorf("output = %q, want it to contain %q", buf.String(), tt.wantOutput)
			}
			if !tt.wantErr && buf.Len() != 0 {
				t.Errorf("output = %q, want nothing", buf.String())
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLintTasksCommand(t *testing.T) {
	dir := t.TempDir()
	tasksPath := filepath.Join(dir, "tasks.yaml")
	statePath := filepath.Join(dir, "tasks_state.yaml")

	writeFile(t, tasksPath, "schema_version: 2\ncurrent_sprint:\n  - id: T-001\nbacklog: []\n")

	t.Run("consistent", func(t *testing.T) {
		writeFile(t, statePath, "schema_version: 2\nT-001:\n  status: ready\n  pr: null\n  merged: false\n")

		output, err := executeCommand(rootCmd, "lint-tasks", "--tasks", tasksPath, "--state", statePath)
		if err != nil {
			t.Fatalf("lint-tasks error = %v, output = %s", err, output)
		}
		if !strings.Contains(output, "consistent") {
			t.Errorf("output = %q", output)
		}
	})

	t.Run("problems", func(t *testing.T) {
		writeFile(t, statePath, "schema_version: 2\nT-001:\n  status: ready\n  pr: 3\n  merged: false\n")

		output, err := executeCommand(rootCmd, "lint-tasks", "--tasks", tasksPath, "--state", statePath)
		if err == nil {
			t.Fatal("expected an error")
		}
		if errors.ExitCode(err) != 1 {
			t.Errorf("ExitCode() = %d, want 1", errors.ExitCode(err))
		}
		if !strings.Contains(output, "tasks_state.yaml pr for 'T-001' must be null in 'ready'.") {
			t.Errorf("output = %q", output)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := executeCommand(rootCmd, "lint-tasks", "--tasks", filepath.Join(dir, "nope.yaml"), "--state", statePath)
		if err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestConfigCommands(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	t.Run("show", func(t *testing.T) {
		output, err := executeCommand(rootCmd, "config", "show")
		if err != nil {
			t.Fatalf("config show error = %v", err)
		}
		for _, want := range []string{"stability_threshold: 5", "socket: dispatcher"} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("init then init again", func(t *testing.T) {
		output, err := executeCommand(rootCmd, "config", "init")
		if err != nil {
			t.Fatalf("config init error = %v", err)
		}
		if !strings.Contains(output, config.ConfigFile()) {
			t.Errorf("output = %q", output)
		}
		if _, err := os.Stat(config.ConfigFile()); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if _, err := executeCommand(rootCmd, "config", "init"); err == nil {
			t.Error("expected error when the config file exists")
		}
	})

	t.Run("path", func(t *testing.T) {
		output, err := executeCommand(rootCmd, "config", "path")
		if err != nil {
			t.Fatalf("config path error = %v", err)
		}
		if !strings.Contains(output, "DISPATCHER_") {
			t.Errorf("output = %q", output)
		}
	})
}

func TestDefaultConfigContentIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, defaultConfigContent)

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}
	cfg, err := config.LoadFrom(v)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	want := config.Default()
	if cfg.Dispatch != want.Dispatch {
		t.Errorf("dispatch = %+v, want %+v", cfg.Dispatch, want.Dispatch)
	}
	if cfg.Agent != want.Agent || cfg.Tmux != want.Tmux || cfg.Capture != want.Capture {
		t.Errorf("agent/tmux/capture = %+v %+v %+v", cfg.Agent, cfg.Tmux, cfg.Capture)
	}
	if cfg.Logging != want.Logging || cfg.Paths != want.Paths {
		t.Errorf("logging/paths = %+v %+v", cfg.Logging, cfg.Paths)
	}
}

func TestErrorMessage(t *testing.T) {
	const hint = "DISPATCHER_LOGGING_LEVEL=debug"

	tests := []struct {
		name     string
		err      error
		wantHint bool
	}{
		{name: "missing binary", err: errors.NewDependencyError("tmux", os.ErrNotExist)},
		{name: "poll ceiling", err: errors.Wrap(errors.ErrMaxPollsExceeded, "run")},
		{name: "invalid configuration", err: errors.Wrap(config.ValidationErrors{
			{Field: "tmux.width", Value: 3, Message: "must be at least 20"},
		}, "invalid configuration")},
		{name: "internal failure", err: fmt.Errorf("failed to create logger: %w", os.ErrPermission), wantHint: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorMessage(tt.err)
			if !strings.HasPrefix(got, "Error: "+tt.err.Error()) {
				t.Errorf("ErrorMessage() = %q, want it to start with the error", got)
			}
			if strings.Contains(got, hint) != tt.wantHint {
				t.Errorf("ErrorMessage() = %q, hint present = %v, want %v", got, !tt.wantHint, tt.wantHint)
			}
		})
	}
}
