// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &reg, nil
}

// Save writes the registry as indented JSON, creating the directory.
func (r *ActivityRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Touch stamps LastUpdated.
func (r *ActivityRegistry) Touch(now time.Time) {
	r.LastUpdated = now.UTC().Format(time.RFC3339)
}

// Validate checks identifiers, required fields, statuses and timeouts.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}
	ids := make(map[string]bool, len(r.Activities))
	types := make(map[string]bool, len(r.Activities))
	for _, a := range r.Activities {
		if a.ID == "" {
			return fmt.Errorf("activity missing required field: id")
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate activity ID: %s", a.ID)
		}
		ids[a.ID] = true

		if a.DisplayName == "" || a.TaskType == "" || a.Category == "" {
			return fmt.Errorf("activity %s: displayName, taskType and category are required", a.ID)
		}
		if types[a.TaskType] {
			return fmt.Errorf("duplicate task type: %s", a.TaskType)
		}
		types[a.TaskType] = true

		if a.ImplementationStatus != "" && !slices.Contains(Statuses, a.ImplementationStatus) {
			return fmt.Errorf("activity %s: unknown status %q", a.ID, a.ImplementationStatus)
		}
		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				return fmt.Errorf("activity %s: invalid timeout %q", a.ID, a.Timeout)
			}
		}
	}
	return nil
}

// Unregistered returns the task types absent from the registry.
func (r *ActivityRegistry) Unregistered(taskTypes ...string) []string {
	var missing []string
	for _, tt := range taskTypes {
		if _, ok := r.Find(tt); !ok {
			missing = append(missing, tt)
		}
	}
	return missing
}
