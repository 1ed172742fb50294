package postgres

import (
	"context"
	"fmt"
	"strings"

	"crew-onboarding/internal/store"

	"github.com/lib/pq"
)

var sqlTypes = map[store.Kind]string{
	store.KindText:  "TEXT",
	store.KindBool:  "BOOLEAN NOT NULL DEFAULT FALSE",
	store.KindInt:   "INTEGER NOT NULL DEFAULT 0",
	store.KindFloat: "NUMERIC(5,2)",
	store.KindTime:  "TIMESTAMPTZ",
	store.KindJSON:  "JSONB",
}

// SchemaStatements renders CREATE TABLE statements for every whitelisted table plus the
// indexes used by credential deduplication and webhook lookups.
func SchemaStatements() []string {
	var stmts []string
	for _, t := range store.Tables() {
		defs := make([]string, 0, len(t.Columns))
		for _, col := range t.ColumnNames() {
			if col == "id" {
				defs = append(defs, "id TEXT PRIMARY KEY")
				continue
			}
			defs = append(defs, fmt.Sprintf("%s %s", pq.QuoteIdentifier(col), sqlTypes[t.Columns[col]]))
		}
		stmts = append(stmts, fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
			pq.QuoteIdentifier(t.Name), strings.Join(defs, ",\n\t"),
		))
	}

	return append(stmts,
		`CREATE UNIQUE INDEX IF NOT EXISTS onboarding_submissions_company_email_key ON onboarding_submissions (company_email) WHERE company_email IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS onboarding_submissions_status_idx ON onboarding_submissions (status)`,
		`CREATE INDEX IF NOT EXISTS task_assignments_submission_idx ON task_assignments (submission_id)`,
	)
}

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx, SchemaStatements()...)
}
