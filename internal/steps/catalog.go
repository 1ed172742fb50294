package steps

import "crew-onboarding/internal/common/validation"

// CatalogEntry is the exported, serializable view of one step.
type CatalogEntry struct {
	Index          int                   `json:"index"`
	Key            string                `json:"key"`
	Title          string                `json:"title"`
	Conditional    bool                  `json:"conditional"`
	Fields         []string              `json:"fields"`
	RequiredFields []string              `json:"requiredFields"`
	Schema         validation.JSONSchema `json:"schema"`
}

// Catalog lists every step in canonical order with its compiled schema.
func (r *Registry) Catalog() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, CatalogEntry{
			Index:          d.Index,
			Key:            d.Key,
			Title:          d.Title,
			Conditional:    d.required != nil,
			Fields:         append([]string{}, d.Fields...),
			RequiredFields: append([]string{}, d.RequiredFields...),
			Schema:         d.Schema(),
		})
	}
	return out
}
