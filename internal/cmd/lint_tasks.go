package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/dispatcher/internal/errors"
	"github.com/Iron-Ham/dispatcher/internal/taskslint"
)

var lintTasksCmd = &cobra.Command{
	Use:   "lint-tasks",
	Short: "Check the task-state file against the task list",
	Long: `Lint-tasks checks that tasks_state.yaml has exactly one well-formed entry
for every task in the current sprint and backlog of tasks.yaml.

Every problem is printed on its own line and the command exits 1.`,
	Args: cobra.NoArgs,
	RunE: runLintTasks,
}

var (
	lintTasksPath string
	lintStatePath string
)

func init() {
	rootCmd.AddCommand(lintTasksCmd)

	lintTasksCmd.Flags().StringVar(&lintTasksPath, "tasks", filepath.Join("agents", "tasks.yaml"), "task list file")
	lintTasksCmd.Flags().StringVar(&lintStatePath, "state", filepath.Join("agents", "tasks_state.yaml"), "task state file")
}

func runLintTasks(cmd *cobra.Command, args []string) error {
	problems, err := taskslint.LintFiles(lintTasksPath, lintStatePath)
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Task files are consistent.")
		return nil
	}

	for _, p := range problems {
		fmt.Fprintln(cmd.ErrOrStderr(), p)
	}
	return fmt.Errorf("%w: %d task lint problem(s)", errors.ErrInvalidInput, len(problems))
}
