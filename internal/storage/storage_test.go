package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"crew-onboarding/internal/common/config"
	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/models"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type mockS3 struct {
	PutObjectFunc        func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	PresignGetObjectFunc func(ctx context.Context, params *s3.GetObjectInput, opts *s3.PresignOptions) (*v4.PresignedHTTPRequest, error)

	puts []*s3.PutObjectInput
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.puts = append(m.puts, params)
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, params)
	}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := &s3.PresignOptions{}
	for _, fn := range optFns {
		fn(opts)
	}
	return m.PresignGetObjectFunc(ctx, params, opts)
}

// ==========================
// Test Helper Functions
// ==========================

func storageConfig() config.StorageConfig {
	return config.StorageConfig{
		Region:           "us-east-1",
		BadgeBucket:      "badge-photos",
		DocumentsBucket:  "onboarding-documents",
		VoiceBucket:      "voice-pitches",
		SignedURLTTLSecs: 600,
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func wavBytes() []byte {
	header := []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00")
	return append(header, make([]byte, 64)...)
}

// ==========================
// S3 Storage Tests
// ==========================

func TestS3Storage_Upload(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		bucket  string
		want    string
	}{
		{"private bucket returns the key", "", "onboarding-documents", "sub-1/ssn_card-1.png"},
		{"public bucket on s3", "", "badge-photos", "https://badge-photos.s3.us-east-1.amazonaws.com/sub-1/ssn_card-1.png"},
		{"public bucket behind a cdn", "https://cdn.example-roofing.com/", "badge-photos", "https://cdn.example-roofing.com/badge-photos/sub-1/ssn_card-1.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockS3{}
			st := NewS3Storage(client, "us-east-1", tt.baseURL, []string{"badge-photos"}, logger.NewTestLogger(t))

			got, err := st.Upload(context.Background(), tt.bucket, "sub-1/ssn_card-1.png", "image/png", strings.NewReader("x"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			require.Len(t, client.puts, 1)
			assert.Equal(t, tt.bucket, *client.puts[0].Bucket)
			assert.Equal(t, "image/png", *client.puts[0].ContentType)
		})
	}
}

func TestS3Storage_UploadErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apperrors.ErrorCode
	}{
		{"access denied", errors.New("AccessDenied"), apperrors.ErrCodeStorageUploadFailed},
		{"deadline", context.DeadlineExceeded, apperrors.ErrCodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockS3{PutObjectFunc: func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
				return nil, tt.err
			}}
			st := NewS3Storage(client, "us-east-1", "", nil, logger.NewTestLogger(t))

			_, err := st.Upload(context.Background(), "onboarding-documents", "k", "image/png", strings.NewReader("x"))
			assert.True(t, apperrors.HasCode(err, tt.code))
			assert.True(t, apperrors.IsRetryable(err))
		})
	}
}

func TestS3Storage_SignedURL(t *testing.T) {
	client := &mockS3{PresignGetObjectFunc: func(ctx context.Context, params *s3.GetObjectInput, opts *s3.PresignOptions) (*v4.PresignedHTTPRequest, error) {
		assert.Equal(t, "onboarding-documents", *params.Bucket)
		assert.Equal(t, "sub-1/ssn.png", *params.Key)
		assert.Equal(t, 10*time.Minute, opts.Expires)
		return &v4.PresignedHTTPRequest{URL: "https://signed.example/ssn.png?X-Amz-Signature=abc", Method: "GET"}, nil
	}}
	st := NewS3Storage(client, "us-east-1", "", nil, logger.NewTestLogger(t))

	u, err := st.SignedURL(context.Background(), "onboarding-documents", "sub-1/ssn.png", 10*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "X-Amz-Signature")
}

// ==========================
// Documents Tests
// ==========================

func TestDocuments_Store(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		body     func(t *testing.T) []byte
		wantCode apperrors.ErrorCode
		bucket   string
		mime     string
	}{
		{"license png", KindDriversLicense, pngBytes, "", "onboarding-documents", "image/png"},
		{"ssn card pdf", KindSSNCard, func(*testing.T) []byte { return []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF") }, "", "onboarding-documents", "application/pdf"},
		{"voice pitch wav", KindVoicePitch, func(*testing.T) []byte { return wavBytes() }, "", "voice-pitches", "audio/wav"},
		{"badge photo png", KindBadgePhoto, pngBytes, "", "badge-photos", "image/png"},
		{"text as license", KindDriversLicense, func(*testing.T) []byte { return []byte("just some text") }, apperrors.ErrCodeUnsupportedFileType, "", ""},
		{"png as voice pitch", KindVoicePitch, pngBytes, apperrors.ErrCodeUnsupportedFileType, "", ""},
		{"unknown kind", "passport", pngBytes, apperrors.ErrCodeValidationFailed, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := NewMemory("badge-photos")
			docs := NewDocuments(mem, storageConfig(), 1<<20, logger.NewTestLogger(t))

			stored, err := docs.Store(context.Background(), "sub-1", tt.kind, bytes.NewReader(tt.body(t)))
			if tt.wantCode != "" {
				assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mime, stored.MIME)
			assert.True(t, strings.HasPrefix(stored.Location, "sub-1/"+tt.kind+"-") || strings.HasPrefix(stored.Location, MemoryBaseURL))

			key := strings.TrimPrefix(stored.Location, MemoryBaseURL+"/"+tt.bucket+"/")
			obj, ok := mem.Get(tt.bucket, key)
			require.True(t, ok)
			assert.Equal(t, tt.mime, obj.ContentType)
		})
	}
}

func TestDocuments_TooLarge(t *testing.T) {
	docs := NewDocuments(NewMemory(), storageConfig(), 16, logger.NewTestLogger(t))
	_, err := docs.Store(context.Background(), "sub-1", KindDriversLicense, bytes.NewReader(pngBytes(t)))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeFileTooLarge))
}

func TestStored_Fields(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

	license := &Stored{Kind: Kind{Name: KindDriversLicense, Field: "drivers_license_url"}, Location: "sub-1/dl.png"}
	assert.Equal(t, models.StepData{"drivers_license_url": "sub-1/dl.png"}, license.Fields(now))

	voice := &Stored{Kind: Kind{Name: KindVoicePitch, Field: "voice_pitch_url"}, Location: "sub-1/vp.wav"}
	assert.Equal(t, models.StepData{
		"voice_pitch_url":          "sub-1/vp.wav",
		"voice_pitch_completed_at": "2026-02-01T09:30:00Z",
	}, voice.Fields(now))
}

func TestDocuments_SignedURLs(t *testing.T) {
	mem := NewMemory("badge-photos")
	docs := NewDocuments(mem, storageConfig(), 1<<20, logger.NewTestLogger(t))
	ctx := context.Background()

	license, err := docs.Store(ctx, "sub-1", KindDriversLicense, bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)

	sub := &models.OnboardingSubmission{
		ID:                "sub-1",
		DriversLicenseURL: license.Location,
		SSNCardURL:        "https://legacy.example.com/ssn.png",
		BadgePhotoURL:     MemoryBaseURL + "/badge-photos/sub-1/badge.jpg",
	}
	urls, err := docs.SignedURLs(ctx, sub)
	require.NoError(t, err)

	require.Len(t, urls, 1)
	assert.Contains(t, urls["drivers_license_url"], "memory://onboarding-documents/"+license.Location+"?expires=")
}

func TestMemory_SignedURLRequiresObject(t *testing.T) {
	mem := NewMemory()
	_, err := mem.SignedURL(context.Background(), "onboarding-documents", "missing", time.Minute)
	assert.Error(t, err)

	_, err = mem.Upload(context.Background(), "onboarding-documents", "k", "text/plain", io.LimitReader(strings.NewReader("abc"), 3))
	require.NoError(t, err)
	u, err := mem.SignedURL(context.Background(), "onboarding-documents", "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "memory://onboarding-documents/k?expires="))
}
