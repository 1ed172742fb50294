// Package store defines the data store boundary used by the onboarding pipeline. Records are
// flat column maps keyed by the JSON tags of the models package.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"crew-onboarding/internal/models"
)

// ErrNotFound is returned by Get and Update when no row has the id.
var ErrNotFound = errors.New("RECORD_NOT_FOUND")

// ErrDuplicate is returned by Create when a row with the same id already exists.
var ErrDuplicate = errors.New("DUPLICATE_RECORD")

// ErrUnknownColumn is returned for tables or columns outside the whitelist.
var ErrUnknownColumn = errors.New("UNKNOWN_COLUMN")

// Record is one row as a column map.
type Record map[string]interface{}

// Operator is a filter comparison.
type Operator string

const (
	OpEq   Operator = "="
	OpNe   Operator = "<>"
	OpGte  Operator = ">="
	OpLte  Operator = "<="
	OpLike Operator = "LIKE"
)

type Filter struct {
	Field string
	Op    Operator
	Value interface{}
}

// Eq is shorthand for an equality filter.
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// Ordering sorts and limits Query results. An empty Field keeps store order.
type Ordering struct {
	Field string
	Desc  bool
	Limit int
}

// Store is implemented by postgres.Store and memory.Store. Update merges fields into the
// existing row and leaves every other column untouched.
type Store interface {
	Create(ctx context.Context, table string, rec Record) (string, error)
	Update(ctx context.Context, table, id string, fields Record) error
	Get(ctx context.Context, table, id string) (Record, error)
	Query(ctx context.Context, table string, filters []Filter, order Ordering) ([]Record, error)
}

// Kind is the storage type of a column.
type Kind int

const (
	KindText Kind = iota
	KindBool
	KindInt
	KindFloat
	KindTime
	KindJSON
)

// Table is a whitelisted table and its columns.
type Table struct {
	Name    string
	Columns map[string]Kind
}

// ColumnNames returns the columns sorted by name.
func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for name := range t.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check rejects any column the table does not declare.
func (t Table) Check(fields map[string]interface{}) error {
	for col := range fields {
		if _, ok := t.Columns[col]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, col)
		}
	}
	return nil
}

// CheckFilters validates the columns referenced by a query.
func (t Table) CheckFilters(filters []Filter, order Ordering) error {
	for _, f := range filters {
		if _, ok := t.Columns[f.Field]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, f.Field)
		}
		switch f.Op {
		case OpEq, OpNe, OpGte, OpLte, OpLike:
		default:
			return fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	if order.Field != "" {
		if _, ok := t.Columns[order.Field]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, order.Field)
		}
	}
	return nil
}

var tables = map[string]Table{
	models.TableSubmissions: {
		Name: models.TableSubmissions,
		Columns: map[string]Kind{
			"id": KindText, "status": KindText, "current_step": KindInt,
			"first_name": KindText, "last_name": KindText, "gender": KindText,
			"personal_email": KindText, "cell_phone": KindText,
			"mailing_street": KindText, "mailing_city": KindText, "mailing_state": KindText, "mailing_zip": KindText,
			"same_as_mailing": KindBool,
			"shipping_street": KindText, "shipping_city": KindText, "shipping_state": KindText, "shipping_zip": KindText,
			"shirt_size": KindText, "coat_size": KindText, "pant_size": KindText, "shoe_size": KindFloat, "hat_size": KindText,
			"company_email": KindText, "username": KindText, "password_hash": KindText, "credentials_issued_at": KindTime,
			"bank_routing_number": KindText, "bank_account_number": KindText, "bank_account_type": KindText,
			"drivers_license_url": KindText, "ssn_card_url": KindText, "direct_deposit_form_url": KindText,
			"w9_completed": KindBool, "badge_photo_url": KindText,
			"voice_pitch_url": KindText, "voice_pitch_completed_at": KindTime,
			"tasks_acknowledged": KindBool,
			"team_id":            KindText, "manager_id": KindText, "recruiter_id": KindText,
			"created_at": KindTime, "updated_at": KindTime, "submitted_at": KindTime, "completed_at": KindTime,
		},
	},
	models.TableWebhooks: {
		Name: models.TableWebhooks,
		Columns: map[string]Kind{
			"id": KindText, "name": KindText, "url": KindText, "secret": KindText,
			"events": KindJSON, "active": KindBool, "created_at": KindTime,
		},
	},
	models.TableUsers: {
		Name: models.TableUsers,
		Columns: map[string]Kind{
			"id": KindText, "full_name": KindText, "email": KindText, "phone": KindText,
			"role": KindText, "team_id": KindText,
		},
	},
	models.TableTaskAssignments: {
		Name: models.TableTaskAssignments,
		Columns: map[string]Kind{
			"id": KindText, "submission_id": KindText, "title": KindText, "description": KindText,
			"assigned_by": KindText, "due_date": KindText, "created_at": KindTime,
		},
	},
}

// LookupTable returns the whitelisted definition of a table.
func LookupTable(name string) (Table, error) {
	t, ok := tables[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: table %s", ErrUnknownColumn, name)
	}
	return t, nil
}

// Tables returns every whitelisted table sorted by name.
func Tables() []Table {
	out := make([]Table, 0, len(tables))
	for _, t := range tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns a text column or "".
func (r Record) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Now is the store clock, overridable in tests.
var Now = func() time.Time { return time.Now().UTC() }

// IsDeadline reports whether err came from an expired or cancelled context.
func IsDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		strings.Contains(strings.ToLower(fmt.Sprint(err)), "canceling statement due to user request")
}
