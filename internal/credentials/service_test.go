package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/models"
	"crew-onboarding/internal/store"
	"crew-onboarding/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{ store.Store }

func (brokenStore) Query(context.Context, string, []store.Filter, store.Ordering) ([]store.Record, error) {
	return nil, errors.New("connection refused")
}

func testConfig() *Config {
	cfg := LoadConfig(nil)
	cfg.BcryptCost = 10
	return cfg
}

func newTestService(t *testing.T, st store.Store) *Service {
	t.Helper()
	svc, err := NewService(testConfig(), st, logger.NewTestLogger(t))
	require.NoError(t, err)
	return svc
}

func TestBaseUsername(t *testing.T) {
	tests := []struct {
		first, last string
		want        string
	}{
		{"Jane", "Doe", "jane.doe"},
		{"  Mary Ann ", "O'Neil-Smith", "maryann.oneilsmith"},
		{"José", "Núñez", "jose.nunez"},
		{"", "Doe", "doe"},
		{"", "", "crew"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseUsername(tt.first, tt.last))
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	svc := newTestService(t, memory.New())

	pw, err := svc.GeneratePassword()
	require.NoError(t, err)
	assert.Len(t, pw, 16)

	digits := 0
	for _, r := range pw {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	assert.Equal(t, 4, digits)

	other, err := svc.GeneratePassword()
	require.NoError(t, err)
	assert.NotEqual(t, pw, other)
}

func TestHashAndVerify(t *testing.T) {
	svc := newTestService(t, memory.New())

	hash, err := svc.HashPassword("Correct-Horse-9")
	require.NoError(t, err)

	assert.NotContains(t, hash, "Correct-Horse-9")
	assert.True(t, strings.HasPrefix(hash, "$2a$10$"))
	assert.True(t, VerifyPassword(hash, "Correct-Horse-9"))
	assert.False(t, VerifyPassword(hash, "wrong"))
}

func TestIssue_DeduplicatesWithNumericSuffix(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc := newTestService(t, mem)

	for _, u := range []string{"jane.doe", "jane.doe2"} {
		_, err := mem.Create(ctx, models.TableSubmissions, store.Record{"username": u, "company_email": u + "@example-roofing.com"})
		require.NoError(t, err)
	}

	issued, err := svc.Issue(ctx, &models.OnboardingSubmission{ID: "sub-3", FirstName: "Jane", LastName: "Doe"})
	require.NoError(t, err)

	assert.Equal(t, "jane.doe3", issued.Username)
	assert.Equal(t, "jane.doe3@example-roofing.com", issued.CompanyEmail)
	assert.True(t, VerifyPassword(issued.PasswordHash, issued.Password))
}

func TestIssue_IgnoresOwnRow(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc := newTestService(t, mem)

	id, err := mem.Create(ctx, models.TableSubmissions, store.Record{"username": "jane.doe"})
	require.NoError(t, err)

	issued, err := svc.Issue(ctx, &models.OnboardingSubmission{ID: id, FirstName: "Jane", LastName: "Doe"})
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", issued.Username)
}

func TestIssue_StoreFailure(t *testing.T) {
	svc := newTestService(t, brokenStore{memory.New()})

	_, err := svc.Issue(context.Background(), &models.OnboardingSubmission{ID: "s", FirstName: "Jane", LastName: "Doe"})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCredentialIssuanceFailed))
}

func TestNewService_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"cost too low", func(c *Config) { c.BcryptCost = 4 }},
		{"cost too high", func(c *Config) { c.BcryptCost = 15 }},
		{"short password", func(c *Config) { c.PasswordLength = 8 }},
		{"no domain", func(c *Config) { c.CompanyDomain = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := NewService(cfg, memory.New(), logger.NewNoOpLogger())
			assert.Error(t, err)
		})
	}
}
