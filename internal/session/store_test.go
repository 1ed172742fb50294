package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"crew-onboarding/internal/common/database"
	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

const testSecret = "test-secret-that-is-long-enough-0123456789"

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	st, err := NewStore(&Config{Secret: testSecret, Issuer: "crew-onboarding", TTL: time.Hour, KeyPrefix: "onboarding"}, rc, logger.NewTestLogger(t))
	require.NoError(t, err)
	return st, mr
}

// ==========================
// Session Store Tests
// ==========================

func TestStore_StartResolveSave(t *testing.T) {
	st, mr := setupStore(t)
	ctx := context.Background()

	sess, token, err := st.Start(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists("onboarding:session:"+sess.ID))
	assert.Equal(t, time.Hour, mr.TTL("onboarding:session:"+sess.ID))

	sess.SubmissionID = "sub-1"
	sess.CurrentIndex = 3
	sess.Stage("sizing", models.StepData{"shirt_size": "L"})
	require.NoError(t, st.Save(ctx, sess))

	got, err := st.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", got.SubmissionID)
	assert.Equal(t, 3, got.CurrentIndex)
	assert.Equal(t, "L", got.BufferFor("sizing")["shirt_size"])

	require.NoError(t, st.Delete(ctx, sess.ID))
	_, err = st.Resolve(ctx, token)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))
}

func TestStore_SaveDropsAccountNumber(t *testing.T) {
	st, mr := setupStore(t)
	ctx := context.Background()

	sess, _, err := st.Start(ctx)
	require.NoError(t, err)
	sess.Stage("w9", models.StepData{
		"w9_completed": true, "bank_routing_number": "111000025", "bank_account_number": "000123456789",
	})
	require.NoError(t, st.Save(ctx, sess))

	raw, err := mr.Get("onboarding:session:" + sess.ID)
	require.NoError(t, err)
	assert.NotContains(t, raw, "000123456789")
	assert.NotContains(t, raw, "bank_account_number")

	got, err := st.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, true, got.BufferFor("w9")["w9_completed"])
	assert.Equal(t, "111000025", got.BufferFor("w9")["bank_routing_number"])
	assert.Equal(t, "000123456789", sess.BufferFor("w9")["bank_account_number"], "caller's copy keeps the value")
}

func TestStore_ExpiredSessionKey(t *testing.T) {
	st, mr := setupStore(t)
	ctx := context.Background()

	sess, _, err := st.Start(ctx)
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	_, err = st.Load(ctx, sess.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))
}

func TestStore_ParseToken(t *testing.T) {
	st, _ := setupStore(t)
	sess := models.NewWizardSession("sess-1")
	valid, err := st.IssueToken(sess)
	require.NoError(t, err)

	other, err := NewStore(&Config{Secret: "another-secret-0123456789abcdef", Issuer: "crew-onboarding", TTL: time.Hour}, nil, nil)
	require.NoError(t, err)
	foreign, err := other.IssueToken(sess)
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		SessionID:        "sess-1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	expiredStore, err := NewStore(&Config{Secret: testSecret, Issuer: "crew-onboarding", TTL: time.Minute}, nil, nil)
	require.NoError(t, err)
	expiredStore.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredStore.IssueToken(sess)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantID  string
		wantErr bool
	}{
		{"valid", valid, "sess-1", false},
		{"empty", "", "", true},
		{"garbage", "not.a.jwt", "", true},
		{"foreign signature", foreign, "", true},
		{"wrong issuer", wrongIssuer, "", true},
		{"expired", expired, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := st.ParseToken(tt.token)
			if tt.wantErr {
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestStore_RedisFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	st, err := NewStore(&Config{Secret: testSecret, Issuer: "crew-onboarding", TTL: time.Hour, KeyPrefix: "onboarding"},
		database.NewRedisFromClient(db), logger.NewTestLogger(t))
	require.NoError(t, err)

	mock.ExpectGet("onboarding:session:s1").SetErr(errors.New("i/o timeout"))
	_, err = st.Load(context.Background(), "s1")

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseConnectionFailed))
	assert.True(t, apperrors.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStore_RequiresSecret(t *testing.T) {
	_, err := NewStore(&Config{}, nil, nil)
	assert.Error(t, err)
}
