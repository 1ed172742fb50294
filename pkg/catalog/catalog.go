// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"crew-onboarding/internal/steps"
)

// Build snapshots a registry.
func Build(reg *steps.Registry, version string, now time.Time) *StepCatalog {
	return &StepCatalog{
		Version:     version,
		LastUpdated: now.UTC().Format(time.RFC3339),
		Steps:       reg.Catalog(),
	}
}

func Load(path string) (*StepCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c StepCatalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

// Save writes the catalog as indented JSON, creating the directory if needed.
func Save(c *StepCatalog, path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

// Diff lists the steps whose published entry no longer matches the registry. Version and
// timestamp are ignored.
func Diff(published, current *StepCatalog) []string {
	byKey := make(map[string]steps.CatalogEntry, len(published.Steps))
	for _, s := range published.Steps {
		byKey[s.Key] = s
	}

	var drift []string
	seen := make(map[string]bool, len(current.Steps))
	for i, s := range current.Steps {
		seen[s.Key] = true
		old, ok := byKey[s.Key]
		switch {
		case !ok:
			drift = append(drift, fmt.Sprintf("%s: added", s.Key))
		case i >= len(published.Steps) || published.Steps[i].Key != s.Key:
			drift = append(drift, fmt.Sprintf("%s: moved", s.Key))
		case !sameEntry(old, s):
			drift = append(drift, fmt.Sprintf("%s: changed", s.Key))
		}
	}
	for _, s := range published.Steps {
		if !seen[s.Key] {
			drift = append(drift, fmt.Sprintf("%s: removed", s.Key))
		}
	}
	return drift
}

// sameEntry compares through JSON so a catalog read from disk matches a freshly built one.
func sameEntry(a, b steps.CatalogEntry) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	var va, vb interface{}
	if json.Unmarshal(ja, &va) != nil || json.Unmarshal(jb, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}
