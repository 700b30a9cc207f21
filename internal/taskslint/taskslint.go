// Package taskslint checks a task-state file against the task list it
// tracks. The task list (tasks.yaml) names the tasks of the current sprint
// and the backlog; the state file (tasks_state.yaml) records, for exactly
// those tasks, a status, an optional pull request number and a merged flag.
package taskslint

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/dispatcher/internal/errors"
)

// SchemaVersion is the only supported schema version of both files.
const SchemaVersion = 2

const schemaKey = "schema_version"

// Task statuses.
const (
	StatusReady      = "ready"
	StatusInProgress = "in_progress"
	StatusInReview   = "in_review"
	StatusBlocked    = "blocked"
	StatusDone       = "done"
)

// ValidStatuses returns the allowed task statuses in workflow order.
func ValidStatuses() []string {
	return []string{StatusReady, StatusInProgress, StatusInReview, StatusBlocked, StatusDone}
}

// activeSections are the task-list sections whose tasks need state entries.
var activeSections = []string{"current_sprint", "backlog"}

// Validate returns every problem found, as human-readable sentences naming
// the offending file by its base name. An empty result means the files agree.
func Validate(tasks, state map[string]any, tasksPath, statePath string) []string {
	tasksName := filepath.Base(tasksPath)
	stateName := filepath.Base(statePath)
	var errs []string

	if !isSchemaVersion(tasks[schemaKey]) {
		errs = append(errs, fmt.Sprintf("%s schema_version must be %d.", tasksName, SchemaVersion))
	}
	if !isSchemaVersion(state[schemaKey]) {
		errs = append(errs, fmt.Sprintf("%s schema_version must be %d.", stateName, SchemaVersion))
	}

	active, listErrs := activeTaskIDs(tasks, tasksName)
	errs = append(errs, listErrs...)

	for _, id := range active {
		entry, ok := state[id]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s is missing entry for '%s'.", stateName, id))
			continue
		}
		errs = append(errs, validateEntry(stateName, id, entry)...)
	}

	var inactive []string
	for id := range state {
		if id == schemaKey || slices.Contains(active, id) {
			continue
		}
		inactive = append(inactive, id)
	}
	sort.Strings(inactive)
	for _, id := range inactive {
		errs = append(errs, fmt.Sprintf(
			"%s includes inactive task '%s'; only active tasks in %s are allowed.", stateName, id, tasksName))
	}

	return errs
}

// activeTaskIDs lists the ids of the current sprint and backlog, in file
// order and without duplicates.
func activeTaskIDs(tasks map[string]any, tasksName string) ([]string, []string) {
	var ids, errs []string
	for _, section := range activeSections {
		raw, ok := tasks[section]
		if !ok || raw == nil {
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s %s must be a list.", tasksName, section))
			continue
		}
		for i, item := range items {
			task, ok := item.(map[string]any)
			if !ok {
				errs = append(errs, fmt.Sprintf("%s %s entry %d must be a mapping.", tasksName, section, i+1))
				continue
			}
			id, ok := task["id"].(string)
			if !ok || id == "" {
				errs = append(errs, fmt.Sprintf("%s %s entry %d is missing an id.", tasksName, section, i+1))
				continue
			}
			if slices.Contains(ids, id) {
				errs = append(errs, fmt.Sprintf("%s lists task '%s' more than once.", tasksName, id))
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids, errs
}

func validateEntry(stateName, id string, raw any) []string {
	entry, ok := raw.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("%s entry for '%s' must be a mapping.", stateName, id)}
	}

	var errs []string

	status, _ := entry["status"].(string)
	if !slices.Contains(ValidStatuses(), status) {
		errs = append(errs, fmt.Sprintf("%s status '%s' for '%s' is invalid.", stateName, display(entry["status"]), id))
	}

	pr := entry["pr"]
	switch {
	case pr == nil:
	case status == StatusReady:
		errs = append(errs, fmt.Sprintf("%s pr for '%s' must be null in '%s'.", stateName, id, status))
	case !isPositiveInt(pr):
		errs = append(errs, fmt.Sprintf("%s pr for '%s' must be null or a positive integer.", stateName, id))
	}

	merged, isBool := entry["merged"].(bool)
	switch {
	case !isBool:
		errs = append(errs, fmt.Sprintf("%s merged for '%s' must be true or false.", stateName, id))
	case merged && status != StatusDone:
		errs = append(errs, fmt.Sprintf("%s merged for '%s' can only be true in '%s'.", stateName, id, StatusDone))
	}

	return errs
}

// LoadFile decodes a YAML mapping. An empty file yields an empty map.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// LintFiles loads both files and validates them.
func LintFiles(tasksPath, statePath string) ([]string, error) {
	tasks, err := LoadFile(tasksPath)
	if err != nil {
		return nil, err
	}
	state, err := LoadFile(statePath)
	if err != nil {
		return nil, err
	}
	return Validate(tasks, state, tasksPath, statePath), nil
}

func isSchemaVersion(v any) bool {
	n, ok := v.(int)
	return ok && n == SchemaVersion
}

func isPositiveInt(v any) bool {
	n, ok := v.(int)
	return ok && n > 0
}

func display(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
