// Package postgres implements store.Store on lib/pq. Table and column names come from the
// store whitelist and are never taken from callers verbatim.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"crew-onboarding/internal/common/database"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/store"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrQueryExecutionFailed = errors.New("QUERY_EXECUTION_FAILED")
	ErrQueryTimeout         = errors.New("QUERY_TIMEOUT")
)

const uniqueViolation = pq.ErrorCode("23505")

type Store struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func New(db *database.PostgresClient, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.ForComponent(log, "postgres-store"),
	}
}

func (s *Store) Create(ctx context.Context, table string, rec store.Record) (string, error) {
	t, err := store.LookupTable(table)
	if err != nil {
		return "", err
	}
	if err := t.Check(rec); err != nil {
		return "", err
	}

	row := rec.Clone()
	if row.String("id") == "" {
		row["id"] = uuid.NewString()
	}

	cols := sortedKeys(row)
	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		v, err := encode(t.Columns[col], row[col])
		if err != nil {
			return "", err
		}
		args[i] = v
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		pq.QuoteIdentifier(t.Name), quoteAll(cols), strings.Join(placeholders, ", "),
	)

	var id string
	if err := s.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", s.wrap(ctx, "create", t.Name, err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, table, id string, fields store.Record) error {
	t, err := store.LookupTable(table)
	if err != nil {
		return err
	}
	if err := t.Check(fields); err != nil {
		return err
	}

	changes := fields.Clone()
	delete(changes, "id")
	if len(changes) == 0 {
		return nil
	}

	cols := sortedKeys(changes)
	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(col), i+1)
		v, err := encode(t.Columns[col], changes[col])
		if err != nil {
			return err
		}
		args = append(args, v)
	}
	args = append(args, id)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $%d",
		pq.QuoteIdentifier(t.Name), strings.Join(sets, ", "), len(args),
	)

	res, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return s.wrap(ctx, "update", t.Name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return s.wrap(ctx, "update", t.Name, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Get(ctx context.Context, table, id string) (store.Record, error) {
	t, err := store.LookupTable(table)
	if err != nil {
		return nil, err
	}

	cols := t.ColumnNames()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", quoteAll(cols), pq.QuoteIdentifier(t.Name))

	rows, err := s.db.Query(ctx, query, id)
	if err != nil {
		return nil, s.wrap(ctx, "get", t.Name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, s.wrap(ctx, "get", t.Name, err)
		}
		return nil, store.ErrNotFound
	}
	rec, err := scan(t, cols, rows)
	if err != nil {
		return nil, s.wrap(ctx, "get", t.Name, err)
	}
	return rec, nil
}

func (s *Store) Query(ctx context.Context, table string, filters []store.Filter, order store.Ordering) ([]store.Record, error) {
	t, err := store.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := t.CheckFilters(filters, order); err != nil {
		return nil, err
	}

	cols := t.ColumnNames()
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", quoteAll(cols), pq.QuoteIdentifier(t.Name))

	args := make([]interface{}, 0, len(filters))
	for i, f := range filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		v, err := encode(t.Columns[f.Field], f.Value)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		fmt.Fprintf(&b, "%s %s $%d", pq.QuoteIdentifier(f.Field), f.Op, len(args))
	}
	if order.Field != "" {
		dir := "ASC"
		if order.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", pq.QuoteIdentifier(order.Field), dir)
	}
	if order.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", order.Limit)
	}

	rows, err := s.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, s.wrap(ctx, "query", t.Name, err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		rec, err := scan(t, cols, rows)
		if err != nil {
			return nil, s.wrap(ctx, "query", t.Name, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(ctx, "query", t.Name, err)
	}
	return out, nil
}

func (s *Store) wrap(ctx context.Context, op, table string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s %s: %v", store.ErrDuplicate, op, table, err)
	}
	s.logger.Error("postgres operation failed", map[string]interface{}{
		"op":    op,
		"table": table,
		"error": err,
	})
	if ctx.Err() == context.DeadlineExceeded || store.IsDeadline(err) {
		return fmt.Errorf("%w: %s %s: %v", ErrQueryTimeout, op, table, err)
	}
	return fmt.Errorf("%w: %s %s: %v", ErrQueryExecutionFailed, op, table, err)
}

func scan(t store.Table, cols []string, rows *sql.Rows) (store.Record, error) {
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	rec := make(store.Record, len(cols))
	for i, col := range cols {
		v, err := decode(t.Columns[col], values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		if v != nil {
			rec[col] = v
		}
	}
	return rec, nil
}

func encode(kind store.Kind, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case store.KindJSON:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode json column: %w", err)
		}
		return string(raw), nil
	case store.KindInt:
		if f, ok := v.(float64); ok {
			return int64(f), nil
		}
	}
	return v, nil
}

func decode(kind store.Kind, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case store.KindJSON:
		var raw []byte
		switch b := v.(type) {
		case []byte:
			raw = b
		case string:
			raw = []byte(b)
		default:
			return v, nil
		}
		var out interface{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	case store.KindTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC(), nil
		}
	case store.KindFloat:
		if b, ok := v.([]byte); ok {
			var f float64
			if _, err := fmt.Sscan(string(b), &f); err != nil {
				return nil, err
			}
			return f, nil
		}
	}
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return v, nil
}

func sortedKeys(rec store.Record) []string {
	t := store.Table{Columns: make(map[string]store.Kind, len(rec))}
	for k := range rec {
		t.Columns[k] = store.KindText
	}
	return t.ColumnNames()
}

func quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}
