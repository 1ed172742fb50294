// Package memory is an in-process store.Store for tests and local development.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"crew-onboarding/internal/store"

	"github.com/google/uuid"
)

type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string]store.Record
	order  map[string][]string
}

func New() *Store {
	return &Store{
		tables: make(map[string]map[string]store.Record),
		order:  make(map[string][]string),
	}
}

func (s *Store) Create(ctx context.Context, table string, rec store.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t, err := store.LookupTable(table)
	if err != nil {
		return "", err
	}
	if err := t.Check(rec); err != nil {
		return "", err
	}

	row := rec.Clone()
	id := row.String("id")
	if id == "" {
		id = uuid.NewString()
		row["id"] = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[table]
	if rows == nil {
		rows = make(map[string]store.Record)
		s.tables[table] = rows
	}
	if _, exists := rows[id]; exists {
		return "", fmt.Errorf("%w: %s.id=%s", store.ErrDuplicate, table, id)
	}
	rows[id] = row
	s.order[table] = append(s.order[table], id)
	return id, nil
}

func (s *Store) Update(ctx context.Context, table, id string, fields store.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := store.LookupTable(table)
	if err != nil {
		return err
	}
	if err := t.Check(fields); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.tables[table][id]
	if !ok {
		return store.ErrNotFound
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		row[k] = v
	}
	return nil
}

func (s *Store) Get(ctx context.Context, table, id string) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := store.LookupTable(table); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.tables[table][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return row.Clone(), nil
}

func (s *Store) Query(ctx context.Context, table string, filters []store.Filter, order store.Ordering) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := store.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := t.CheckFilters(filters, order); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []store.Record
	for _, id := range s.order[table] {
		row := s.tables[table][id]
		if matchesAll(row, filters) {
			out = append(out, row.Clone())
		}
	}
	s.mu.RUnlock()

	if order.Field != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][order.Field], out[j][order.Field])
			if order.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if order.Limit > 0 && len(out) > order.Limit {
		out = out[:order.Limit]
	}
	return out, nil
}

// Len counts the rows of a table.
func (s *Store) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

func matchesAll(row store.Record, filters []store.Filter) bool {
	for _, f := range filters {
		if !matches(row[f.Field], f) {
			return false
		}
	}
	return true
}

func matches(v interface{}, f store.Filter) bool {
	switch f.Op {
	case store.OpEq:
		return compare(v, f.Value) == 0
	case store.OpNe:
		return compare(v, f.Value) != 0
	case store.OpGte:
		return compare(v, f.Value) >= 0
	case store.OpLte:
		return compare(v, f.Value) <= 0
	case store.OpLike:
		return like(fmt.Sprint(v), fmt.Sprint(f.Value))
	}
	return false
}

// like implements SQL LIKE with % and _ wildcards.
func like(value, pattern string) bool {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	ok, _ := regexp.MatchString(b.String(), value)
	return ok
}

func compare(a, b interface{}) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
