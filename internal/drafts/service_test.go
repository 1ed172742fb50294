package drafts

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/models"
	"crew-onboarding/internal/steps"
	"crew-onboarding/internal/store"
	"crew-onboarding/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type failingStore struct {
	store.Store
	UpdateFunc func(ctx context.Context, table, id string, fields store.Record) error
	CreateFunc func(ctx context.Context, table string, rec store.Record) (string, error)
}

func (f *failingStore) Update(ctx context.Context, table, id string, fields store.Record) error {
	if f.UpdateFunc != nil {
		return f.UpdateFunc(ctx, table, id, fields)
	}
	return f.Store.Update(ctx, table, id, fields)
}

func (f *failingStore) Create(ctx context.Context, table string, rec store.Record) (string, error) {
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, table, rec)
	}
	return f.Store.Create(ctx, table, rec)
}

// ==========================
// Test Helper Functions
// ==========================

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService(t *testing.T, st store.Store) (*Service, *clock) {
	t.Helper()
	svc := NewService(&Config{Timeout: time.Second}, st, steps.Default(), logger.NewTestLogger(t))
	c := &clock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	svc.now = c.now
	return svc, c
}

func basicInfo() models.StepData {
	return models.StepData{
		"first_name":     "Jane",
		"last_name":      "Doe",
		"personal_email": "jane.doe@gmail.com",
		"cell_phone":     "2145550199",
	}
}

func sizing() models.StepData {
	return models.StepData{"shirt_size": "L", "coat_size": "XL", "pant_size": "32x30", "shoe_size": 10.5}
}

// ==========================
// Tests
// ==========================

func TestSaveDraft_CreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc, _ := newTestService(t, mem)

	id, err := svc.SaveDraft(ctx, nil, steps.KeyBasicInfo, basicInfo(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sub, err := svc.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, sub.Status)
	assert.Equal(t, 1, sub.CurrentStep)
	assert.Equal(t, "Jane", sub.FirstName)
	created := sub.CreatedAt

	again, err := svc.SaveDraft(ctx, &id, steps.KeyAddress, models.StepData{
		"mailing_street": "1 Elm", "mailing_city": "Dallas", "mailing_state": "TX",
		"mailing_zip": "75001", "same_as_mailing": true,
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	sub, err = svc.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, sub.Status)
	assert.Equal(t, 2, sub.CurrentStep)
	assert.True(t, sub.CreatedAt.Equal(created))
	assert.True(t, sub.UpdatedAt.After(created))
	assert.Equal(t, 1, mem.Len(models.TableSubmissions))
}

func TestSaveDraft_IdenticalSaveOnlyTouchesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc, _ := newTestService(t, mem)

	id, err := svc.SaveDraft(ctx, nil, steps.KeySizing, sizing(), 3)
	require.NoError(t, err)
	before, err := mem.Get(ctx, models.TableSubmissions, id)
	require.NoError(t, err)

	_, err = svc.SaveDraft(ctx, &id, steps.KeySizing, sizing(), 3)
	require.NoError(t, err)
	after, err := mem.Get(ctx, models.TableSubmissions, id)
	require.NoError(t, err)

	assert.NotEqual(t, before["updated_at"], after["updated_at"])
	delete(before, "updated_at")
	delete(after, "updated_at")
	assert.Equal(t, before, after)
}

func TestSaveDraft_AddressNeverTouchesSizing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.New())

	id, err := svc.SaveDraft(ctx, nil, steps.KeySizing, sizing(), 3)
	require.NoError(t, err)

	_, err = svc.SaveDraft(ctx, &id, steps.KeyAddress, models.StepData{
		"mailing_street": "1 Elm", "mailing_city": "Dallas", "mailing_state": "TX",
		"mailing_zip": "75001", "same_as_mailing": false,
		"shirt_size": "XS",
	}, 2)
	require.NoError(t, err)

	sub, err := svc.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "L", sub.ShirtSize)
	assert.Equal(t, 10.5, sub.ShoeSize)
	assert.Equal(t, 3, sub.CurrentStep, "current_step never moves backwards")
}

func TestSaveDraft_SameAsMailingClearsShipping(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.New())

	id, err := svc.SaveDraft(ctx, nil, steps.KeyShippingAddress, models.StepData{
		"shipping_street": "9 Dock Rd", "shipping_city": "Plano", "shipping_state": "TX", "shipping_zip": "75023",
	}, 3)
	require.NoError(t, err)

	_, err = svc.SaveDraft(ctx, &id, steps.KeyAddress, models.StepData{
		"mailing_street": "1 Elm", "mailing_city": "Dallas", "mailing_state": "TX",
		"mailing_zip": "75001", "same_as_mailing": true,
	}, 2)
	require.NoError(t, err)

	sub, err := svc.Load(ctx, id)
	require.NoError(t, err)
	assert.True(t, sub.SameAsMailing)
	assert.Empty(t, sub.ShippingStreet)
	assert.Empty(t, sub.ShippingZip)
}

func TestSaveDraft_Failures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		updateErr error
		wantCode  apperrors.ErrorCode
	}{
		{"write failure", errors.New("connection refused"), apperrors.ErrCodeDraftSaveFailed},
		{"deadline", context.DeadlineExceeded, apperrors.ErrCodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := memory.New()
			fs := &failingStore{Store: mem}
			svc, _ := newTestService(t, fs)

			id, err := svc.SaveDraft(ctx, nil, steps.KeyBasicInfo, basicInfo(), 1)
			require.NoError(t, err)

			fs.UpdateFunc = func(context.Context, string, string, store.Record) error { return tt.updateErr }

			_, err = svc.SaveDraft(ctx, &id, steps.KeySizing, sizing(), 2)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.wantCode))
			assert.True(t, apperrors.IsRetryable(err))

			sub, err := svc.Load(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, 1, sub.CurrentStep)
			assert.Empty(t, sub.ShirtSize)
		})
	}
}

func TestSaveDraft_ClosedAndMissing(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc, _ := newTestService(t, mem)

	id, err := mem.Create(ctx, models.TableSubmissions, store.Record{"status": "submitted", "current_step": 9})
	require.NoError(t, err)

	_, err = svc.SaveDraft(ctx, &id, steps.KeySizing, sizing(), 3)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeWizardClosed))

	missing := "does-not-exist"
	_, err = svc.SaveDraft(ctx, &missing, steps.KeySizing, sizing(), 3)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))

	_, err = svc.Load(ctx, missing)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))
}

func TestSaveFirstDraft(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		prepare  func(t *testing.T, svc *Service, fs *failingStore)
		wantStep int
	}{
		{
			name:     "creates under the reserved id",
			prepare:  func(*testing.T, *Service, *failingStore) {},
			wantStep: 1,
		},
		{
			name: "merges into a row a concurrent request created",
			prepare: func(t *testing.T, svc *Service, _ *failingStore) {
				_, err := svc.SaveFirstDraft(ctx, "sub-reserved", steps.KeyBasicInfo, basicInfo(), 2)
				require.NoError(t, err)
			},
			wantStep: 2,
		},
		{
			name: "retry after an insert whose reply was lost",
			prepare: func(t *testing.T, svc *Service, fs *failingStore) {
				fs.CreateFunc = func(ctx context.Context, table string, rec store.Record) (string, error) {
					if _, err := fs.Store.Create(ctx, table, rec); err != nil {
						return "", err
					}
					return "", context.DeadlineExceeded
				}
				_, err := svc.SaveFirstDraft(ctx, "sub-reserved", steps.KeyBasicInfo, basicInfo(), 1)
				require.True(t, apperrors.HasCode(err, apperrors.ErrCodeTimeout))
				fs.CreateFunc = nil
			},
			wantStep: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := memory.New()
			fs := &failingStore{Store: mem}
			svc, _ := newTestService(t, fs)
			tt.prepare(t, svc, fs)

			id, err := svc.SaveFirstDraft(ctx, "sub-reserved", steps.KeyBasicInfo, basicInfo(), 1)
			require.NoError(t, err)
			assert.Equal(t, "sub-reserved", id)
			assert.Equal(t, 1, mem.Len(models.TableSubmissions))

			sub, err := svc.Load(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "Jane", sub.FirstName)
			assert.Equal(t, tt.wantStep, sub.CurrentStep)
		})
	}
}

func TestSaveFirstDraft_RejectsEmptyID(t *testing.T) {
	svc, _ := newTestService(t, memory.New())

	_, err := svc.SaveFirstDraft(context.Background(), "", steps.KeyBasicInfo, basicInfo(), 1)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDraftSaveFailed))
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 5*time.Second, LoadConfig(nil).Timeout)
}
