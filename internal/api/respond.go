package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/validation"

	"github.com/go-playground/validator/v10"
)

// Notice types shown next to an error or a successful submission.
const (
	NoticeRetry   = "retry"
	NoticeDelayed = "delayed"
)

const (
	retryMessage   = "Your data is safe. Please try again."
	delayedMessage = "Your submission succeeded. Some notifications may be delayed."
)

type Notice struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorPayload struct {
	Code      apperrors.ErrorCode    `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Notice    *Notice                `json:"notice,omitempty"`
	Fields    []apperrors.FieldError `json:"fields,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		err = apperrors.NewFileTooLargeError(tooLarge.Limit)
	}

	std := apperrors.Normalize(err)
	status := statusFor(std.Code)

	payload := errorPayload{
		Code:      std.Code,
		Message:   std.Message,
		Details:   std.Details,
		Retryable: std.Retryable,
		Fields:    std.Fields,
		Metadata:  std.Metadata,
	}
	if _, ok := apperrors.AsStandard(err); !ok {
		payload.Details = ""
		s.logger.Error("unhandled error", map[string]interface{}{"path": r.URL.Path, "error": err})
	}
	if std.Retryable && apperrors.GetErrorCategory(std.Code) == apperrors.CategoryPersistence {
		payload.Notice = &Notice{Type: NoticeRetry, Message: retryMessage}
	}

	writeJSON(w, status, errorEnvelope{Error: payload})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidationFailed, apperrors.ErrCodeImageDecodeFailed:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeUnknownStep, apperrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeStepNotReachable, apperrors.ErrCodeWizardClosed,
		apperrors.ErrCodeTransitionInProgress, apperrors.ErrCodeInvalidStatus:
		return http.StatusConflict
	case apperrors.ErrCodeUnsupportedFileType:
		return http.StatusUnsupportedMediaType
	case apperrors.ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	}

	switch apperrors.GetErrorCategory(code) {
	case apperrors.CategoryPersistence:
		return http.StatusServiceUnavailable
	case apperrors.CategoryNotification:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. An empty body is allowed when
// optional is set.
func (s *Server) decode(r *http.Request, dst interface{}, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case errors.Is(err, io.EOF) && optional:
	case err != nil:
		return apperrors.NewValidationFailedError(nil, []apperrors.FieldError{{
			Field: "body", Message: "request body must be a JSON object", Code: validation.CodeInvalidData,
		}})
	}
	if reflect.ValueOf(dst).Elem().Kind() != reflect.Struct {
		return nil
	}
	return s.check(dst)
}

// check runs struct validation and converts failures into field errors.
func (s *Server) check(dst interface{}) error {
	err := s.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationFailedError(nil, []apperrors.FieldError{{
			Field: "body", Message: err.Error(), Code: validation.CodeInvalidData,
		}})
	}
	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Code:    fieldCode(fe.Tag()),
		})
	}
	return apperrors.NewValidationFailedError(nil, fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("must be a valid %s", fe.Tag())
	}
}

func fieldCode(tag string) string {
	switch tag {
	case "required":
		return validation.CodeRequired
	case "min", "gte":
		return validation.CodeMinimum
	case "max", "lte":
		return validation.CodeMaximum
	default:
		return validation.CodeFormat
	}
}
