package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"crew-onboarding/internal/common/config"
	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/common/metrics"
	"crew-onboarding/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Upload kinds accepted by the wizard.
const (
	KindBadgePhoto        = "badge_photo"
	KindDriversLicense    = "drivers_license"
	KindSSNCard           = "ssn_card"
	KindDirectDepositForm = "direct_deposit_form"
	KindVoicePitch        = "voice_pitch"
)

var (
	documentTypes = []string{"image/jpeg", "image/png", "application/pdf"}
	audioTypes    = []string{"audio/webm", "video/webm", "audio/mpeg", "audio/mp4", "audio/x-m4a", "audio/wav", "audio/ogg", "application/ogg"}
)

// Kind binds an upload to its bucket and to the submission field that records it.
type Kind struct {
	Name    string
	StepKey string
	Field   string
	Bucket  string
	Allowed []string
	Public  bool
}

// Stored describes one accepted upload.
type Stored struct {
	Kind     Kind
	Location string
	MIME     string
	Size     int
}

// Fields is the partial step data recording the upload. A voice pitch also stamps its
// completion time.
func (s *Stored) Fields(now time.Time) models.StepData {
	data := models.StepData{s.Kind.Field: s.Location}
	if s.Kind.Name == KindVoicePitch {
		data["voice_pitch_completed_at"] = now.UTC().Format(time.RFC3339)
	}
	return data
}

// Documents validates uploads and routes them to their bucket.
type Documents struct {
	storage  Storage
	kinds    map[string]Kind
	maxBytes int64
	ttl      time.Duration
	logger   logger.Logger
}

func NewDocuments(st Storage, cfg config.StorageConfig, maxBytes int64, log logger.Logger) *Documents {
	kinds := map[string]Kind{
		KindBadgePhoto: {
			Name: KindBadgePhoto, StepKey: "badge_photo", Field: "badge_photo_url",
			Bucket: cfg.BadgeBucket, Allowed: []string{"image/jpeg", "image/png"}, Public: true,
		},
		KindDriversLicense: {
			Name: KindDriversLicense, StepKey: "w9", Field: "drivers_license_url",
			Bucket: cfg.DocumentsBucket, Allowed: documentTypes,
		},
		KindSSNCard: {
			Name: KindSSNCard, StepKey: "w9", Field: "ssn_card_url",
			Bucket: cfg.DocumentsBucket, Allowed: documentTypes,
		},
		KindDirectDepositForm: {
			Name: KindDirectDepositForm, StepKey: "w9", Field: "direct_deposit_form_url",
			Bucket: cfg.DocumentsBucket, Allowed: documentTypes,
		},
		KindVoicePitch: {
			Name: KindVoicePitch, StepKey: "voice_pitch", Field: "voice_pitch_url",
			Bucket: cfg.VoiceBucket, Allowed: audioTypes,
		},
	}
	ttl := cfg.SignedURLTTL()
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Documents{
		storage:  st,
		kinds:    kinds,
		maxBytes: maxBytes,
		ttl:      ttl,
		logger:   logger.ForComponent(log, "documents"),
	}
}

func (d *Documents) Kind(name string) (Kind, bool) {
	k, ok := d.kinds[name]
	return k, ok
}

// Store sniffs and uploads r under owner, which is the submission id or, before the first
// save, the session id.
func (d *Documents) Store(ctx context.Context, owner, kindName string, r io.Reader) (*Stored, error) {
	kind, ok := d.kinds[kindName]
	if !ok {
		return nil, apperrors.NewValidationFailedError(nil, []apperrors.FieldError{{
			Field: "kind", Message: fmt.Sprintf("unknown upload kind %q", kindName), Code: "INVALID_ENUM_VALUE",
		}})
	}

	data, err := io.ReadAll(io.LimitReader(r, d.maxBytes+1))
	if err != nil {
		return nil, apperrors.NewStorageUploadFailedError(kind.Bucket, err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, apperrors.NewFileTooLargeError(d.maxBytes)
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), kind.Allowed...) {
		metrics.Uploads.WithLabelValues(kind.Name, metrics.OutcomeRejected).Inc()
		return nil, apperrors.NewUnsupportedFileTypeError(mt.String(), kind.Allowed)
	}

	key := ObjectKey(owner, kind.Name, mt.Extension())
	location, err := d.storage.Upload(ctx, kind.Bucket, key, mt.String(), bytes.NewReader(data))
	if err != nil {
		metrics.Uploads.WithLabelValues(kind.Name, metrics.OutcomeFailure).Inc()
		return nil, err
	}

	metrics.Uploads.WithLabelValues(kind.Name, metrics.OutcomeSuccess).Inc()
	d.logger.Info("upload stored", map[string]interface{}{"kind": kind.Name, "owner": owner, "bytes": len(data)})
	return &Stored{Kind: kind, Location: location, MIME: mt.String(), Size: len(data)}, nil
}

// SignedURLs presigns every private document recorded on sub, keyed by field.
func (d *Documents) SignedURLs(ctx context.Context, sub *models.OnboardingSubmission) (map[string]string, error) {
	out := make(map[string]string)
	for _, kind := range d.kinds {
		if kind.Public {
			continue
		}
		data, err := sub.Project([]string{kind.Field})
		if err != nil {
			return nil, err
		}
		key, _ := data[kind.Field].(string)
		if key == "" || strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
			continue
		}
		u, err := d.storage.SignedURL(ctx, kind.Bucket, key, d.ttl)
		if err != nil {
			d.logger.Warn("could not sign document url", map[string]interface{}{"field": kind.Field, "error": err})
			continue
		}
		out[kind.Field] = u
	}
	return out, nil
}

// ObjectKey is <owner>/<kind>-<uuid><ext>.
func ObjectKey(owner, kind, ext string) string {
	return fmt.Sprintf("%s/%s-%s%s", owner, kind, uuid.NewString(), ext)
}
