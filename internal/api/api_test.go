package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"crew-onboarding/internal/badge"
	"crew-onboarding/internal/common/config"
	"crew-onboarding/internal/common/database"
	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/credentials"
	"crew-onboarding/internal/drafts"
	"crew-onboarding/internal/models"
	"crew-onboarding/internal/notify"
	"crew-onboarding/internal/session"
	"crew-onboarding/internal/steps"
	"crew-onboarding/internal/storage"
	"crew-onboarding/internal/store"
	"crew-onboarding/internal/store/memory"
	"crew-onboarding/internal/submission"
	"crew-onboarding/internal/tasks"
	"crew-onboarding/internal/wizard"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type mockNotifier struct {
	mu        sync.Mutex
	err       error
	events    []string
	passwords []string
}

func (m *mockNotifier) Notify(ctx context.Context, eventType string, payload notify.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
	if payload.OneTimePassword != "" {
		m.passwords = append(m.passwords, payload.OneTimePassword)
	}
	return m.err
}

func (m *mockNotifier) count(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type failingDrafts struct{}

func (failingDrafts) SaveDraft(ctx context.Context, id *string, key string, data models.StepData, step int) (string, error) {
	return "", apperrors.NewDraftSaveFailedError(key, errors.New("connection reset by peer"))
}

func (f failingDrafts) SaveFirstDraft(ctx context.Context, id string, key string, data models.StepData, step int) (string, error) {
	return f.SaveDraft(ctx, nil, key, data, step)
}

func (failingDrafts) Load(ctx context.Context, id string) (*models.OnboardingSubmission, error) {
	return nil, apperrors.NewSessionNotFoundError("submission " + id)
}

// ==========================
// Test Helper Functions
// ==========================

type testServer struct {
	*httptest.Server
	redis    *miniredis.Miniredis
	api      *Server
	store    store.Store
	files    *storage.Memory
	notifier *mockNotifier
}

func newTestServer(t *testing.T, mutate ...func(*Dependencies)) *testServer {
	t.Helper()
	log := logger.NewTestLogger(t)
	st := memory.New()
	n := &mockNotifier{}
	reg := steps.Default()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rc := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	sessions, err := session.NewStore(&session.Config{
		Secret: "test-secret-test-secret-test-secret", Issuer: "crew-onboarding", TTL: time.Hour, KeyPrefix: "onboarding",
	}, rc, log)
	require.NoError(t, err)

	creds, err := credentials.NewService(&credentials.Config{
		CompanyDomain: "example-roofing.com", BcryptCost: 10, PasswordLength: 16, PasswordDigits: 4, PasswordSymbol: 2,
	}, st, log)
	require.NoError(t, err)

	finalizer := submission.NewFinalizer(&submission.Config{Timeout: 5 * time.Second}, st, reg, creds, n, log)
	files := storage.NewMemory("badge-photos")
	storageCfg := config.StorageConfig{
		BadgeBucket: "badge-photos", DocumentsBucket: "onboarding-documents", VoiceBucket: "voice-pitches", SignedURLTTLSecs: 600,
	}

	deps := Dependencies{
		Sessions: sessions,
		Wizard: wizard.Dependencies{
			Registry:  reg,
			Drafts:    drafts.NewService(&drafts.Config{Timeout: time.Second}, st, reg, log),
			Submitter: finalizer,
			Notifier:  n,
			Locker:    rc,
			LockTTL:   5 * time.Second,
			Logger:    log,
		},
		Completer:      finalizer,
		Tasks:          tasks.NewService(st, n, log),
		Documents:      storage.NewDocuments(files, storageCfg, 1<<20, log),
		Editor:         badge.NewEditor(badge.DefaultConfig(), log),
		Logger:         log,
		AllowedOrigins: []string{"http://localhost:5173"},
		MaxUploadBytes: 2 << 20,
		Version:        "test",
	}
	for _, fn := range mutate {
		fn(&deps)
	}

	srv := NewServer(deps)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, redis: mr, api: srv, store: st, files: files, notifier: n}
}

func (ts *testServer) call(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return ts.send(t, req, out)
}

func (ts *testServer) upload(t *testing.T, path, field string, content []byte, form map[string]string, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range form {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(field, "upload.bin")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.send(t, req, out)
}

func (ts *testServer) send(t *testing.T, req *http.Request, out interface{}) int {
	t.Helper()
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (ts *testServer) start(t *testing.T) string {
	t.Helper()
	var out sessionResponse
	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost, "/v1/onboarding/sessions", nil, &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

// walk saves fixture steps until the current step is stopAt and returns the last view.
func (ts *testServer) walk(t *testing.T, token, stopAt string) *wizard.View {
	t.Helper()
	data := janeDoeSteps()
	var view wizard.View
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/v1/onboarding/sessions/"+token, nil, &view))
	for i := 0; i < 12; i++ {
		key := view.Current.Key
		if key == stopAt {
			return &view
		}
		status := ts.call(t, http.MethodPut, "/v1/onboarding/sessions/"+token+"/steps/"+key, data[key], &view)
		require.Equal(t, http.StatusOK, status, "step %s", key)
	}
	t.Fatalf("never reached %s", stopAt)
	return nil
}

func janeDoeSteps() map[string]models.StepData {
	return map[string]models.StepData{
		steps.KeyBasicInfo: {
			"first_name": "Jane", "last_name": "Doe",
			"personal_email": "jane@example.com", "cell_phone": "(214) 555-0199",
		},
		steps.KeyAddress: {
			"mailing_street": "100 Elm St", "mailing_city": "Dallas", "mailing_state": "TX",
			"mailing_zip": "75001", "same_as_mailing": true,
		},
		steps.KeySizing: {
			"shirt_size": "L", "coat_size": "XL", "pant_size": "32x30", "shoe_size": 10.5,
		},
		steps.KeyBadgePhoto: {
			"badge_photo_url": "https://cdn.example-roofing.com/badges/jane.jpg",
		},
		steps.KeyTeam: {
			"team_id": "team-north", "manager_id": "mgr-7",
		},
		steps.KeyW9: {
			"w9_completed": true, "bank_routing_number": "111000025", "bank_account_number": "000123456789",
			"bank_account_type": "checking", "drivers_license_url": "jane/drivers_license.png",
			"ssn_card_url": "jane/ssn_card.png",
		},
		steps.KeyVoicePitch: {
			"voice_pitch_url": "jane/voice_pitch.webm", "voice_pitch_completed_at": "2026-02-01T09:30:00Z",
		},
		steps.KeyTasks: {
			"tasks_acknowledged": true,
		},
	}
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 150, G: 140, B: 130, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// ==========================
// Wizard Flow Tests
// ==========================

func TestAPI_JaneDoeWalkAndSubmit(t *testing.T) {
	ts := newTestServer(t)
	token := ts.start(t)

	view := ts.walk(t, token, steps.KeySubmit)
	assert.Equal(t, 9, view.Total)
	assert.Equal(t, 9, view.CurrentIndex)
	id := view.SubmissionID
	require.NotEmpty(t, id)

	var raw json.RawMessage
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/v1/onboarding/sessions/"+token+"/submit", nil, &raw))
	var out submitResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	require.NotNil(t, out.Account)
	assert.Equal(t, "jane.doe@example-roofing.com", out.Account.CompanyEmail)
	assert.Equal(t, "jane.doe", out.Account.Username)
	assert.Equal(t, models.StatusSubmitted, out.Result.Status)
	assert.True(t, out.View.Submitted)
	assert.Nil(t, out.Notice)
	assert.Equal(t, 1, ts.notifier.count(models.EventOnboardingCompleted))

	require.Len(t, ts.notifier.passwords, 1, "the one-time password goes to the operator notification")
	assert.NotContains(t, string(raw), ts.notifier.passwords[0])
	assert.NotContains(t, string(raw), `"password"`)

	var env errorEnvelope
	require.Equal(t, http.StatusNotFound, ts.call(t, http.MethodPost, "/v1/onboarding/sessions/"+token+"/submit", nil, &env))
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, env.Error.Code)

	var resumed sessionResponse
	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost, "/v1/onboarding/sessions", map[string]string{"submissionId": id}, &resumed))
	var again submitResponse
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/v1/onboarding/sessions/"+resumed.Token+"/submit", nil, &again))
	assert.True(t, again.Result.AlreadySubmitted)
	assert.Nil(t, again.Account)
	assert.Equal(t, 1, ts.notifier.count(models.EventOnboardingCompleted))

	var read submissionResponse
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/v1/onboarding/submissions/"+id, nil, &read))
	assert.Equal(t, "********6789", read.Submission.BankAccountNumber)
	assert.Empty(t, read.Submission.PasswordHash)
	assert.Equal(t, 100, read.Progress)
	assert.Empty(t, read.Documents, "keys without a stored object are not signed")
}

func TestAPI_SubmitDelayedNotice(t *testing.T) {
	ts := newTestServer(t)
	ts.notifier.err = errors.New("ses throttled")
	token := ts.start(t)
	ts.walk(t, token, steps.KeySubmit)

	var out submitResponse
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/v1/onboarding/sessions/"+token+"/submit", nil, &out))
	require.NotNil(t, out.Notice)
	assert.Equal(t, NoticeDelayed, out.Notice.Type)
	assert.Equal(t, models.StatusSubmitted, out.Result.Status)
}

func TestAPI_SessionDeletedAfterSubmit(t *testing.T) {
	ts := newTestServer(t)
	token := ts.start(t)
	view := ts.walk(t, token, steps.KeySubmit)
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/v1/onboarding/sessions/"+token+"/submit", nil, nil))
	assert.Empty(t, ts.redis.Keys(), "session and lock keys are gone")

	var env errorEnvelope
	status := ts.call(t, http.MethodGet, "/v1/onboarding/sessions/"+token, nil, &env)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, env.Error.Code)

	var resumed sessionResponse
	require.Equal(t, http.StatusCreated, ts.call(t, http.MethodPost, "/v1/onboarding/sessions", map[string]string{"submissionId": view.SubmissionID}, &resumed))
	assert.True(t, resumed.View.Submitted)

	status = ts.call(t, http.MethodPost, "/v1/onboarding/sessions/"+resumed.Token+"/back", nil, &env)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, apperrors.ErrCodeWizardClosed, env.Error.Code)

	status = ts.upload(t, "/v1/onboarding/sessions/"+resumed.Token+"/documents/drivers_license", "file", pngOf(t, 4, 4), nil, &env)
	assert.Equal(t, http.StatusConflict, status)
}

func TestAPI_FailedSubmitKeepsSession(t *testing.T) {
	ts := newTestServer(t)
	token := ts.start(t)
	ts.walk(t, token, steps.KeyTasks)

	var env errorEnvelope
	require.Equal(t, http.StatusConflict, ts.call(t, http.MethodPost, "/v1/onboarding/sessions/"+token+"/submit", nil, &env))

	var view wizard.View
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/v1/onboarding/sessions/"+token, nil, &view))
	assert.Equal(t, steps.KeyTasks, view.Current.Key)
}

func TestAPI_ResumeAfterSizing(t *testing.T) {
	ts := newTestServer(t)
	token := ts.start(t)
	view := ts.walk(t, token, steps.KeyBadgePhoto)

	var out sessionResponse
	status := ts.call(t, http.MethodPost, "/v1/onboarding/sessions", map[string]string{"submissionId": view.SubmissionID}, &out)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEqual(t, token, out.Token)
	assert.Equal(t, steps.KeyBadgePhoto, out.View.Current.Key)
	assert.Equal(t, 4, out.View.CurrentIndex)
	assert.Equal(t, 44, out.View.Progress)
}

func TestAPI_StepErrors(t *testing.T) {
	ts := newTestServer(t)
	token := ts.start(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   apperrors.ErrorCode
	}{
		{"invalid email", http.MethodPut, "/steps/basic_info", map[string]interface{}{
			"first_name": "Jane", "last_name": "Doe", "personal_email": "not-an-email", "cell_phone": "(214) 555-0199",
		}, http.StatusUnprocessableEntity, apperrors.ErrCodeValidationFailed},
		{"unknown step", http.MethodPut, "/steps/selfie", map[string]interface{}{}, http.StatusNotFound, apperrors.ErrCodeUnknownStep},
		{"step ahead of progress", http.MethodPut, "/steps/sizing", map[string]interface{}{}, http.StatusConflict, apperrors.ErrCodeStepNotReachable},
		{"jump out of range", http.MethodPost, "/jump", map[string]int{"step": 42}, http.StatusConflict, apperrors.ErrCodeStepNotReachable},
		{"jump without step", http.MethodPost, "/jump", map[string]int{}, http.StatusUnprocessableEntity, apperrors.ErrCodeValidationFailed},
		{"submit too early", http.MethodPost, "/submit", nil, http.StatusConflict, apperrors.ErrCodeStepNotReachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env errorEnvelope
			status := ts.call(t, tt.method, "/v1/onboarding/sessions/"+token+tt.path, tt.body, &env)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.Nil(t, env.Error.Notice)
		})
	}
}

func TestAPI_ValidationFieldsAndStagedData(t *testing.T) {
	ts := newTestServer(t)
	token := ts.start(t)

	var env errorEnvelope
	status := ts.call(t, http.MethodPut, "/v1/onboarding/sessions/"+token+"/steps/basic_info",
		map[string]interface{}{"first_name": "Jane"}, &env)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, []interface{}{"basic_info"}, env.Error.Metadata["steps"])

	fields := map[string]bool{}
	for _, f := range env.Error.Fields {
		fields[f.Field] = true
		assert.Equal(t, "basic_info", f.Step)
	}
	assert.True(t, fields["last_name"])
	assert.True(t, fields["personal_email"])

	var view wizard.View
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/v1/onboarding/sessions/"+token, nil, &view))
	assert.Equal(t, "Jane", view.Data["first_name"], "rejected edits stay staged")
}

func TestAPI_UnknownToken(t *testing.T) {
	ts := newTestServer(t)

	var env errorEnvelope
	status := ts.call(t, http.MethodGet, "/v1/onboarding/sessions/not-a-token", nil, &env)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, env.Error.Code)
}

func TestAPI_RetryNoticeOnFailedSave(t *testing.T) {
	ts := newTestServer(t, func(d *Dependencies) { d.Wizard.Drafts = failingDrafts{} })
	token := ts.start(t)

	var env errorEnvelope
	status := ts.call(t, http.MethodPut, "/v1/onboarding/sessions/"+token+"/steps/basic_info", janeDoeSteps()[steps.KeyBasicInfo], &env)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, apperrors.ErrCodeDraftSaveFailed, env.Error.Code)
	assert.True(t, env.Error.Retryable)
	require.NotNil(t, env.Error.Notice)
	assert.Equal(t, NoticeRetry, env.Error.Notice.Type)

	var view wizard.View
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/v1/onboarding/sessions/"+token, nil, &view))
	assert.Equal(t, 1, view.CurrentIndex)
	assert.Equal(t, "Jane", view.Data["first_name"])
}

func TestAPI_BackAndJump(t *testing.T) {
	ts := newTestServer(t)
	token := ts.start(t)
	ts.walk(t, token, steps.KeySizing)

	var view wizard.View
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/v1/onboarding/sessions/"+token+"/back", nil, &view))
	assert.Equal(t, steps.KeyAddress, view.Current.Key)

	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/v1/onboarding/sessions/"+token+"/jump", map[string]int{"step": 1}, &view))
	assert.Equal(t, steps.KeyBasicInfo, view.Current.Key)

	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/v1/onboarding/sessions/"+token+"/jump", map[string]int{"step": 3}, &view))
	assert.Equal(t, steps.KeySizing, view.Current.Key)
}

// ==========================
// Upload Tests
// ==========================

func TestAPI_DocumentUpload(t *testing.T) {
	ts := newTestServer(t)
	token := ts.start(t)
	view := ts.walk(t, token, steps.KeyW9)
	id := view.SubmissionID

	var out uploadResponse
	status := ts.upload(t, "/v1/onboarding/sessions/"+token+"/documents/drivers_license", "file", pngOf(t, 4, 4), nil, &out)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "drivers_license_url", out.Field)
	assert.Equal(t, "image/png", out.MIME)
	assert.Equal(t, steps.KeyW9, out.View.Current.Key)

	rec, err := ts.store.Get(context.Background(), models.TableSubmissions, id)
	require.NoError(t, err)
	key := rec.String("drivers_license_url")
	assert.True(t, strings.HasPrefix(key, id+"/drivers_license-"))
	_, ok := ts.files.Get("onboarding-documents", key)
	assert.True(t, ok)

	var read submissionResponse
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/v1/onboarding/submissions/"+id, nil, &read))
	assert.Contains(t, read.Documents["drivers_license_url"], "memory://onboarding-documents/"+key+"?expires=")
}

func TestAPI_DocumentUploadErrors(t *testing.T) {
	ts := newTestServer(t)
	token := ts.start(t)

	tests := []struct {
		name    string
		kind    string
		field   string
		content []byte
		status  int
		code    apperrors.ErrorCode
	}{
		{"text as license", "drivers_license", "file", []byte("plain text, not a scan"), http.StatusUnsupportedMediaType, apperrors.ErrCodeUnsupportedFileType},
		{"unknown kind", "passport", "file", pngOf(t, 4, 4), http.StatusUnprocessableEntity, apperrors.ErrCodeValidationFailed},
		{"badge through documents", "badge_photo", "file", pngOf(t, 4, 4), http.StatusUnprocessableEntity, apperrors.ErrCodeValidationFailed},
		{"wrong form field", "ssn_card", "upload", pngOf(t, 4, 4), http.StatusUnprocessableEntity, apperrors.ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env errorEnvelope
			status := ts.upload(t, "/v1/onboarding/sessions/"+token+"/documents/"+tt.kind, tt.field, tt.content, nil, &env)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestAPI_UploadTooLarge(t *testing.T) {
	ts := newTestServer(t, func(d *Dependencies) { d.MaxUploadBytes = 512 })
	token := ts.start(t)

	var env errorEnvelope
	status := ts.upload(t, "/v1/onboarding/sessions/"+token+"/documents/ssn_card", "file", bytes.Repeat([]byte{0xff}, 4096), nil, &env)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, apperrors.ErrCodeFileTooLarge, env.Error.Code)
}

func TestAPI_BadgePhoto(t *testing.T) {
	ts := newTestServer(t)
	token := ts.start(t)

	var out badgeResponse
	status := ts.upload(t, "/v1/onboarding/sessions/"+token+"/badge-photo", "photo", pngOf(t, 40, 20),
		map[string]string{"brightness": "10", "rotation": "90"}, &out)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, 20, out.Width)
	assert.Equal(t, 40, out.Height)
	assert.True(t, strings.HasPrefix(out.Preview, badge.DataURLPrefix))
	assert.True(t, strings.HasPrefix(out.URL, storage.MemoryBaseURL+"/badge-photos/"))

	types := map[string]bool{}
	for _, issue := range out.Issues {
		types[issue.Type] = true
	}
	assert.True(t, types[badge.IssueLowResolution])

	var view wizard.View
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodGet, "/v1/onboarding/sessions/"+token, nil, &view))
	assert.Equal(t, steps.KeyBasicInfo, view.Current.Key, "upload never moves the wizard")
}

func TestAPI_BadgePhotoErrors(t *testing.T) {
	ts := newTestServer(t)
	token := ts.start(t)

	tests := []struct {
		name    string
		content []byte
		form    map[string]string
		status  int
		code    apperrors.ErrorCode
	}{
		{"pdf", []byte("%PDF-1.4\n%%EOF"), nil, http.StatusUnsupportedMediaType, apperrors.ErrCodeUnsupportedFileType},
		{"brightness out of range", pngOf(t, 4, 4), map[string]string{"brightness": "150"}, http.StatusUnprocessableEntity, apperrors.ErrCodeValidationFailed},
		{"contrast not a number", pngOf(t, 4, 4), map[string]string{"contrast": "lots"}, http.StatusUnprocessableEntity, apperrors.ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env errorEnvelope
			status := ts.upload(t, "/v1/onboarding/sessions/"+token+"/badge-photo", "photo", tt.content, tt.form, &env)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

// ==========================
// Submission Admin Tests
// ==========================

func TestAPI_CompleteSubmission(t *testing.T) {
	ts := newTestServer(t)
	token := ts.start(t)
	view := ts.walk(t, token, steps.KeySubmit)

	var env errorEnvelope
	status := ts.call(t, http.MethodPost, "/v1/onboarding/submissions/"+view.SubmissionID+"/complete", nil, &env)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, apperrors.ErrCodeInvalidStatus, env.Error.Code)

	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/v1/onboarding/sessions/"+token+"/submit", nil, nil))

	var out submissionResponse
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, "/v1/onboarding/submissions/"+view.SubmissionID+"/complete", nil, &out))
	assert.Equal(t, models.StatusCompleted, out.Submission.Status)
	assert.NotNil(t, out.Submission.CompletedAt)
}

func TestAPI_AssignTask(t *testing.T) {
	ts := newTestServer(t)
	token := ts.start(t)
	view := ts.walk(t, token, steps.KeyAddress)
	path := "/v1/onboarding/submissions/" + view.SubmissionID + "/tasks"

	var res tasks.Result
	status := ts.call(t, http.MethodPost, path, map[string]string{
		"title": "Safety video", "assignedBy": "mgr-7", "dueDate": "2026-02-09",
	}, &res)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, res.Notified)
	assert.Equal(t, "Safety video", res.Task.Title)
	assert.Equal(t, 1, ts.notifier.count(models.EventTaskAssigned))

	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{"missing title", map[string]string{"assignedBy": "mgr-7"}, "title"},
		{"bad due date", map[string]string{"title": "x", "assignedBy": "mgr-7", "dueDate": "next week"}, "dueDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env errorEnvelope
			status := ts.call(t, http.MethodPost, path, tt.body, &env)
			assert.Equal(t, http.StatusUnprocessableEntity, status)
			require.Len(t, env.Error.Fields, 1)
			assert.Equal(t, tt.field, env.Error.Fields[0].Field)
		})
	}

	var env errorEnvelope
	status = ts.call(t, http.MethodPost, "/v1/onboarding/submissions/nope/tasks", map[string]string{"title": "x", "assignedBy": "mgr-7"}, &env)
	assert.Equal(t, http.StatusNotFound, status)
}

// ==========================
// Ops and Middleware Tests
// ==========================

func TestOps_HealthAndReady(t *testing.T) {
	ts := newTestServer(t, func(d *Dependencies) {
		d.Checks = []Check{
			{Name: "redis", Ping: func(ctx context.Context) error { return nil }},
			{Name: "postgres", Ping: func(ctx context.Context) error { return errors.New("connection refused") }},
		}
	})
	ops := httptest.NewServer(ts.api.OpsRouter())
	defer ops.Close()

	res, err := http.Get(ops.URL + "/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(ops.URL + "/ready")
	require.NoError(t, err)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "ok", body.Checks["redis"])
	assert.Equal(t, "connection refused", body.Checks["postgres"])

	res, err = http.Get(ops.URL + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestMiddleware_CORS(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"allowed origin", "http://localhost:5173", "http://localhost:5173"},
		{"foreign origin", "https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodOptions, ts.URL+"/v1/onboarding/sessions", nil)
			require.NoError(t, err)
			req.Header.Set("Origin", tt.origin)
			res, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			res.Body.Close()
			assert.Equal(t, http.StatusNoContent, res.StatusCode)
			assert.Equal(t, tt.want, res.Header.Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestMiddleware_Recovery(t *testing.T) {
	srv := NewServer(Dependencies{Logger: logger.NewTestLogger(t)})
	h := srv.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/onboarding/sessions/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, apperrors.ErrorCode("INTERNAL_ERROR"), env.Error.Code)
	assert.Empty(t, env.Error.Details)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code apperrors.ErrorCode
		want int
	}{
		{apperrors.ErrCodeValidationFailed, http.StatusUnprocessableEntity},
		{apperrors.ErrCodeSessionNotFound, http.StatusNotFound},
		{apperrors.ErrCodeTransitionInProgress, http.StatusConflict},
		{apperrors.ErrCodeSubmissionWriteFailed, http.StatusServiceUnavailable},
		{apperrors.ErrCodeDatabaseConnectionFailed, http.StatusServiceUnavailable},
		{apperrors.ErrCodeTimeout, http.StatusGatewayTimeout},
		{apperrors.ErrCodeNotificationSendFailed, http.StatusBadGateway},
		{apperrors.ErrCodeFileTooLarge, http.StatusRequestEntityTooLarge},
		{"INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.code))
		})
	}
}
