package taskslint

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func sprint(ids ...string) []any {
	items := make([]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]any{"id": id})
	}
	return items
}

func entry(status string, pr any, merged any) map[string]any {
	return map[string]any{"status": status, "pr": pr, "merged": merged}
}

func validate(tasks, state map[string]any) []string {
	return Validate(tasks, state, "tasks.yaml", "tasks_state.yaml")
}

func TestValidate_AcceptsValidData(t *testing.T) {
	tasks := map[string]any{
		"schema_version": 2,
		"current_sprint": sprint("T-001"),
		"backlog":        []any{},
	}
	state := map[string]any{
		"schema_version": 2,
		"T-001":          entry("ready", nil, false),
	}

	if errs := validate(tasks, state); len(errs) != 0 {
		t.Errorf("Validate() = %q, want no errors", errs)
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name  string
		tasks map[string]any
		state map[string]any
		want  string
	}{
		{
			name:  "invalid status",
			tasks: map[string]any{"schema_version": 2, "current_sprint": sprint("T-001"), "backlog": []any{}},
			state: map[string]any{"schema_version": 2, "T-001": entry("bogus", nil, false)},
			want:  "tasks_state.yaml status 'bogus' for 'T-001' is invalid.",
		},
		{
			name:  "pr on ready",
			tasks: map[string]any{"schema_version": 2, "current_sprint": sprint("T-001"), "backlog": []any{}},
			state: map[string]any{"schema_version": 2, "T-001": entry("ready", 4, false)},
			want:  "tasks_state.yaml pr for 'T-001' must be null in 'ready'.",
		},
		{
			name:  "missing entry",
			tasks: map[string]any{"schema_version": 2, "current_sprint": sprint("T-001"), "backlog": []any{}},
			state: map[string]any{"schema_version": 2},
			want:  "tasks_state.yaml is missing entry for 'T-001'.",
		},
		{
			name:  "inactive task",
			tasks: map[string]any{"schema_version": 2, "current_sprint": sprint("T-001"), "backlog": []any{}},
			state: map[string]any{
				"schema_version": 2,
				"T-001":          entry("ready", nil, false),
				"T-999":          entry("ready", nil, false),
			},
			want: "tasks_state.yaml includes inactive task 'T-999'; only active tasks in tasks.yaml are allowed.",
		},
		{
			name:  "backlog tasks are active",
			tasks: map[string]any{"schema_version": 2, "current_sprint": []any{}, "backlog": sprint("T-002")},
			state: map[string]any{"schema_version": 2},
			want:  "tasks_state.yaml is missing entry for 'T-002'.",
		},
		{
			name:  "wrong state schema",
			tasks: map[string]any{"schema_version": 2},
			state: map[string]any{"schema_version": 1},
			want:  "tasks_state.yaml schema_version must be 2.",
		},
		{
			name:  "missing tasks schema",
			tasks: map[string]any{},
			state: map[string]any{"schema_version": 2},
			want:  "tasks.yaml schema_version must be 2.",
		},
		{
			name:  "negative pr",
			tasks: map[string]any{"schema_version": 2, "current_sprint": sprint("T-001")},
			state: map[string]any{"schema_version": 2, "T-001": entry("in_review", -3, false)},
			want:  "tasks_state.yaml pr for 'T-001' must be null or a positive integer.",
		},
		{
			name:  "merged not boolean",
			tasks: map[string]any{"schema_version": 2, "current_sprint": sprint("T-001")},
			state: map[string]any{"schema_version": 2, "T-001": entry("done", 7, "yes")},
			want:  "tasks_state.yaml merged for 'T-001' must be true or false.",
		},
		{
			name:  "merged before done",
			tasks: map[string]any{"schema_version": 2, "current_sprint": sprint("T-001")},
			state: map[string]any{"schema_version": 2, "T-001": entry("in_review", 7, true)},
			want:  "tasks_state.yaml merged for 'T-001' can only be true in 'done'.",
		},
		{
			name:  "entry not a mapping",
			tasks: map[string]any{"schema_version": 2, "current_sprint": sprint("T-001")},
			state: map[string]any{"schema_version": 2, "T-001": "ready"},
			want:  "tasks_state.yaml entry for 'T-001' must be a mapping.",
		},
		{
			name:  "duplicate id",
			tasks: map[string]any{"schema_version": 2, "current_sprint": sprint("T-001"), "backlog": sprint("T-001")},
			state: map[string]any{"schema_version": 2, "T-001": entry("ready", nil, false)},
			want:  "tasks.yaml lists task 'T-001' more than once.",
		},
		{
			name:  "task without id",
			tasks: map[string]any{"schema_version": 2, "current_sprint": []any{map[string]any{"title": "x"}}},
			state: map[string]any{"schema_version": 2},
			want:  "tasks.yaml current_sprint entry 1 is missing an id.",
		},
		{
			name:  "section not a list",
			tasks: map[string]any{"schema_version": 2, "backlog": "T-001"},
			state: map[string]any{"schema_version": 2},
			want:  "tasks.yaml backlog must be a list.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validate(tt.tasks, tt.state)
			if !slices.Contains(errs, tt.want) {
				t.Errorf("Validate() = %q, want it to include %q", errs, tt.want)
			}
		})
	}
}

func TestValidate_DoneAndMergedIsValid(t *testing.T) {
	tasks := map[string]any{"schema_version": 2, "current_sprint": sprint("T-001", "T-002")}
	state := map[string]any{
		"schema_version": 2,
		"T-001":          entry("done", 12, true),
		"T-002":          entry("blocked", nil, false),
	}
	if errs := validate(tasks, state); len(errs) != 0 {
		t.Errorf("Validate() = %q", errs)
	}
}

func TestValidate_UsesBaseNames(t *testing.T) {
	tasks := map[string]any{"schema_version": 2, "current_sprint": sprint("T-001")}
	state := map[string]any{"schema_version": 2}
	errs := Validate(tasks, state, "/repo/agents/tasks.yaml", "/repo/agents/tasks_state.yaml")
	if !slices.Equal(errs, []string{"tasks_state.yaml is missing entry for 'T-001'."}) {
		t.Errorf("Validate() = %q", errs)
	}
}

func TestValidate_InactiveOrderIsStable(t *testing.T) {
	tasks := map[string]any{"schema_version": 2}
	state := map[string]any{
		"schema_version": 2,
		"T-3":            entry("ready", nil, false),
		"T-1":            entry("ready", nil, false),
		"T-2":            entry("ready", nil, false),
	}
	errs := validate(tasks, state)
	if len(errs) != 3 {
		t.Fatalf("Validate() = %q", errs)
	}
	for i, id := range []string{"T-1", "T-2", "T-3"} {
		want := "tasks_state.yaml includes inactive task '" + id + "'; only active tasks in tasks.yaml are allowed."
		if errs[i] != want {
			t.Errorf("errs[%d] = %q, want %q", i, errs[i], want)
		}
	}
}

func TestLintFiles(t *testing.T) {
	dir := t.TempDir()
	tasksPath := filepath.Join(dir, "tasks.yaml")
	statePath := filepath.Join(dir, "tasks_state.yaml")

	tasksYAML := `schema_version: 2
current_sprint:
  - id: T-001
    title: Parse pane
backlog:
  - id: T-002
`
	stateYAML := `schema_version: 2
T-001:
  status: in_progress
  pr: 17
  merged: false
T-002:
  status: ready
  pr: null
  merged: false
`
	if err := os.WriteFile(tasksPath, []byte(tasksYAML), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(statePath, []byte(stateYAML), 0644); err != nil {
		t.Fatal(err)
	}

	errs, err := LintFiles(tasksPath, statePath)
	if err != nil {
		t.Fatalf("LintFiles() error = %v", err)
	}
	if len(errs) != 0 {
		t.Errorf("LintFiles() = %q, want no errors", errs)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatal(err)
		}
		doc, err := LoadFile(path)
		if err != nil || doc == nil || len(doc) != 0 {
			t.Errorf("LoadFile() = %v, %v", doc, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(dir, "nope.yaml")); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("not a mapping", func(t *testing.T) {
		path := filepath.Join(dir, "list.yaml")
		if err := os.WriteFile(path, []byte("- a\n- b\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFile(path); err == nil {
			t.Error("expected error for a top-level list")
		}
	})
}

func TestValidStatuses(t *testing.T) {
	want := []string{"ready", "in_progress", "in_review", "blocked", "done"}
	if got := ValidStatuses(); !slices.Equal(got, want) {
		t.Errorf("ValidStatuses() = %v", got)
	}
}
