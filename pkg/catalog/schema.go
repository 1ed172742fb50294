// pkg/catalog/schema.go
package catalog

import "crew-onboarding/internal/steps"

// StepCatalog is the published description of the wizard, consumed by the frontend build.
type StepCatalog struct {
	Version     string               `json:"version"`
	LastUpdated string               `json:"lastUpdated"`
	Steps       []steps.CatalogEntry `json:"steps"`
}
