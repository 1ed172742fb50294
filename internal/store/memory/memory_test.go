package memory

import (
	"context"
	"errors"
	"testing"

	"crew-onboarding/internal/models"
	"crew-onboarding/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Create(ctx, models.TableSubmissions, store.Record{
		"status": "draft", "first_name": "Jane", "current_step": 1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.Update(ctx, models.TableSubmissions, id, store.Record{"shirt_size": "L"}))

	rec, err := s.Get(ctx, models.TableSubmissions, id)
	require.NoError(t, err)
	assert.Equal(t, "Jane", rec["first_name"])
	assert.Equal(t, "L", rec["shirt_size"])
	assert.Equal(t, id, rec["id"])

	rec["first_name"] = "mutated"
	again, _ := s.Get(ctx, models.TableSubmissions, id)
	assert.Equal(t, "Jane", again["first_name"])
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	s := New()

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"get missing", func() error { _, err := s.Get(ctx, models.TableSubmissions, "nope"); return err }, store.ErrNotFound},
		{"update missing", func() error { return s.Update(ctx, models.TableSubmissions, "nope", store.Record{"status": "x"}) }, store.ErrNotFound},
		{"unknown table", func() error { _, err := s.Create(ctx, "secrets", store.Record{}); return err }, store.ErrUnknownColumn},
		{"unknown column", func() error {
			_, err := s.Create(ctx, models.TableSubmissions, store.Record{"ssn": "123"})
			return err
		}, store.ErrUnknownColumn},
		{"duplicate id", func() error {
			rec := store.Record{"id": "dup-1", "status": "draft"}
			if _, err := s.Create(ctx, models.TableSubmissions, rec); err != nil {
				return err
			}
			_, err := s.Create(ctx, models.TableSubmissions, rec)
			return err
		}, store.ErrDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.run(), tt.want))
		})
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Create(ctx, models.TableUsers, store.Record{"email": "a@b.c"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, email := range []string{"jane.doe@x.com", "jane.doe2@x.com", "john.roe@x.com"} {
		_, err := s.Create(ctx, models.TableSubmissions, store.Record{"company_email": email, "current_step": 1})
		require.NoError(t, err)
	}

	tests := []struct {
		name    string
		filters []store.Filter
		order   store.Ordering
		want    []string
	}{
		{
			name:    "like prefix",
			filters: []store.Filter{{Field: "company_email", Op: store.OpLike, Value: "jane.doe%@x.com"}},
			order:   store.Ordering{Field: "company_email"},
			want:    []string{"jane.doe2@x.com", "jane.doe@x.com"},
		},
		{
			name:    "equality",
			filters: []store.Filter{store.Eq("company_email", "john.roe@x.com")},
			want:    []string{"john.roe@x.com"},
		},
		{
			name:  "desc with limit",
			order: store.Ordering{Field: "company_email", Desc: true, Limit: 1},
			want:  []string{"john.roe@x.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := s.Query(ctx, models.TableSubmissions, tt.filters, tt.order)
			require.NoError(t, err)
			got := make([]string, len(rows))
			for i, r := range rows {
				got[i] = r.String("company_email")
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := s.Query(ctx, models.TableSubmissions, []store.Filter{store.Eq("nope", 1)}, store.Ordering{})
	assert.ErrorIs(t, err, store.ErrUnknownColumn)
}

func TestLike(t *testing.T) {
	assert.True(t, like("jane.doe@x.com", "jane.doe%"))
	assert.False(t, like("janexdoe@x.com", "jane.doe%"))
	assert.True(t, like("ab", "a_"))
}
