package api

import (
	"bytes"
	"context"
	"errors"
	"image"
	"mime/multipart"
	"net/http"
	"strconv"

	"crew-onboarding/internal/badge"
	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/validation"
	"crew-onboarding/internal/steps"
	"crew-onboarding/internal/storage"
	"crew-onboarding/internal/wizard"

	"github.com/gorilla/mux"
)

const multipartMemory = 8 << 20

// formFile parses a multipart body capped at the configured upload limit.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, missingField(field, err)
	}
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, missingField(field, err)
	}
	return file, nil
}

func missingField(field string, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return apperrors.NewValidationFailedError(nil, []apperrors.FieldError{{
		Field: field, Message: "a multipart file is required", Code: validation.CodeRequired,
	}})
}

func closed(m *wizard.Machine) error {
	if sess := m.Session(); sess.Submitted {
		return apperrors.NewWizardClosedError(sess.SubmissionID)
	}
	return nil
}

func owner(m *wizard.Machine) string {
	sess := m.Session()
	if sess.SubmissionID != "" {
		return sess.SubmissionID
	}
	return sess.ID
}

// uploadBadgePhoto edits the photo, stores the JPEG in the public badge bucket and records
// its URL on the badge step. Quality issues are advisory.
func (s *Server) uploadBadgePhoto(w http.ResponseWriter, r *http.Request) {
	file, err := s.formFile(w, r, "photo")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()

	req, err := s.badgeForm(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.withMachine(w, r, func(ctx context.Context, m *wizard.Machine) (interface{}, error) {
		if err := closed(m); err != nil {
			return nil, err
		}
		editor := s.deps.Editor
		canvas, err := editor.Load(file)
		if err != nil {
			return nil, err
		}
		if req.CropWidth > 0 && req.CropHeight > 0 {
			rect := image.Rect(req.CropX, req.CropY, req.CropX+req.CropWidth, req.CropY+req.CropHeight)
			if canvas, err = editor.Crop(canvas, rect); err != nil {
				return nil, err
			}
		}
		canvas, err = editor.Adjust(canvas, badge.Adjustment{
			Brightness:      req.Brightness,
			Contrast:        req.Contrast,
			RotationDegrees: req.Rotation,
		})
		if err != nil {
			return nil, err
		}

		issues := editor.AnalyzeQuality(canvas.Current)
		preview, err := editor.Export(canvas)
		if err != nil {
			return nil, apperrors.NewImageDecodeFailedError(err)
		}
		raw, err := editor.ExportBytes(canvas)
		if err != nil {
			return nil, apperrors.NewImageDecodeFailedError(err)
		}

		stored, err := s.deps.Documents.Store(ctx, owner(m), storage.KindBadgePhoto, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		if err := m.Attach(ctx, steps.KeyBadgePhoto, stored.Fields(s.now())); err != nil {
			return nil, err
		}

		view, err := m.View()
		if err != nil {
			return nil, err
		}
		if issues == nil {
			issues = []badge.QualityIssue{}
		}
		b := canvas.Bounds()
		return badgeResponse{
			URL:     stored.Location,
			Preview: preview,
			Width:   b.Dx(),
			Height:  b.Dy(),
			Issues:  issues,
			View:    view,
		}, nil
	})
}

func (s *Server) badgeForm(r *http.Request) (*badgeRequest, error) {
	req := &badgeRequest{}
	floats := map[string]*float64{"brightness": &req.Brightness, "contrast": &req.Contrast, "rotation": &req.Rotation}
	ints := map[string]*int{"cropX": &req.CropX, "cropY": &req.CropY, "cropWidth": &req.CropWidth, "cropHeight": &req.CropHeight}

	var bad []apperrors.FieldError
	for name, dst := range floats {
		if v := r.FormValue(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				bad = append(bad, apperrors.FieldError{Field: name, Message: "must be a number", Code: validation.CodeType})
				continue
			}
			*dst = f
		}
	}
	for name, dst := range ints {
		if v := r.FormValue(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				bad = append(bad, apperrors.FieldError{Field: name, Message: "must be an integer", Code: validation.CodeType})
				continue
			}
			*dst = n
		}
	}
	if len(bad) > 0 {
		return nil, apperrors.NewValidationFailedError(nil, bad)
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	return req, nil
}

// uploadDocument stores a W-9 document or the voice pitch and records its key on the owning
// step.
func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if _, ok := s.deps.Documents.Kind(kind); !ok || kind == storage.KindBadgePhoto {
		s.writeError(w, r, apperrors.NewValidationFailedError(nil, []apperrors.FieldError{{
			Field: "kind", Message: "unknown document kind " + strconv.Quote(kind), Code: validation.CodeEnum,
		}}))
		return
	}

	file, err := s.formFile(w, r, "file")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()

	s.withMachine(w, r, func(ctx context.Context, m *wizard.Machine) (interface{}, error) {
		if err := closed(m); err != nil {
			return nil, err
		}
		stored, err := s.deps.Documents.Store(ctx, owner(m), kind, file)
		if err != nil {
			return nil, err
		}
		if err := m.Attach(ctx, stored.Kind.StepKey, stored.Fields(s.now())); err != nil {
			return nil, err
		}
		view, err := m.View()
		if err != nil {
			return nil, err
		}
		return uploadResponse{
			Kind:  kind,
			Field: stored.Kind.Field,
			MIME:  stored.MIME,
			Size:  stored.Size,
			View:  view,
		}, nil
	})
}
