// Package badge edits badge photos in memory: load with content sniffing, brightness,
// contrast, rotation and crop, advisory quality checks and JPEG export as a data URL.
// Nothing here writes to the data store.
package badge

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/common/metrics"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// AllowedTypes are the sniffed MIME types Load accepts.
var AllowedTypes = []string{"image/jpeg", "image/png", "image/gif"}

// DataURLPrefix starts every exported image.
const DataURLPrefix = "data:image/jpeg;base64,"

// Adjustment is always applied to the original image. Brightness and Contrast are
// percentages in -100..100; RotationDegrees is clockwise and may be any value.
type Adjustment struct {
	Brightness      float64 `json:"brightness"`
	Contrast        float64 `json:"contrast"`
	RotationDegrees float64 `json:"rotationDegrees"`
}

// Canvas is one photo being edited.
type Canvas struct {
	MIME       string
	Original   image.Image
	Current    image.Image
	Adjustment Adjustment
	crop       *image.Rectangle
}

// Bounds of the edited image.
func (c *Canvas) Bounds() image.Rectangle {
	return c.Current.Bounds()
}

type Editor interface {
	Load(r io.Reader) (*Canvas, error)
	Adjust(c *Canvas, adj Adjustment) (*Canvas, error)
	Crop(c *Canvas, rect image.Rectangle) (*Canvas, error)
	Export(c *Canvas) (string, error)
	ExportBytes(c *Canvas) ([]byte, error)
	AnalyzeQuality(img image.Image) []QualityIssue
}

type ImagingEditor struct {
	config *Config
	logger logger.Logger
}

func NewEditor(cfg *Config, log logger.Logger) *ImagingEditor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &ImagingEditor{config: cfg, logger: logger.ForComponent(log, "badge")}
}

// Load sniffs the content before decoding. Unsupported types and oversized uploads are
// rejected without decoding.
func (e *ImagingEditor) Load(r io.Reader) (*Canvas, error) {
	data, err := io.ReadAll(io.LimitReader(r, e.config.MaxUploadBytes+1))
	if err != nil {
		metrics.BadgeUploads.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, apperrors.NewImageDecodeFailedError(err)
	}
	if int64(len(data)) > e.config.MaxUploadBytes {
		metrics.BadgeUploads.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, apperrors.NewFileTooLargeError(e.config.MaxUploadBytes)
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), AllowedTypes...) {
		metrics.BadgeUploads.WithLabelValues(metrics.OutcomeRejected).Inc()
		e.logger.Info("rejected badge upload", map[string]interface{}{"mimeType": mt.String(), "size": len(data)})
		return nil, apperrors.NewUnsupportedFileTypeError(mt.String(), AllowedTypes)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		metrics.BadgeUploads.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, apperrors.NewImageDecodeFailedError(err)
	}

	metrics.BadgeUploads.WithLabelValues(metrics.OutcomeSuccess).Inc()
	b := img.Bounds()
	e.logger.Debug("badge photo loaded", map[string]interface{}{"mimeType": mt.String(), "width": b.Dx(), "height": b.Dy()})
	return &Canvas{MIME: mt.String(), Original: img, Current: img}, nil
}

// Adjust replaces the canvas's adjustment and re-renders from the original.
func (e *ImagingEditor) Adjust(c *Canvas, adj Adjustment) (*Canvas, error) {
	if err := checkPercent("brightness", adj.Brightness); err != nil {
		return nil, err
	}
	if err := checkPercent("contrast", adj.Contrast); err != nil {
		return nil, err
	}
	out := *c
	out.Adjustment = adj
	out.Current = render(&out)
	return &out, nil
}

// Crop keeps rect, in original image coordinates, and re-applies the current adjustment.
func (e *ImagingEditor) Crop(c *Canvas, rect image.Rectangle) (*Canvas, error) {
	clipped := rect.Intersect(c.Original.Bounds())
	if clipped.Empty() {
		return nil, apperrors.NewValidationFailedError([]string{"badge_photo"}, []apperrors.FieldError{{
			Step:    "badge_photo",
			Field:   "crop",
			Message: "crop area is outside the image",
			Code:    "INVALID_CROP",
		}})
	}
	out := *c
	out.crop = &clipped
	out.Current = render(&out)
	return &out, nil
}

// Export encodes the current image as a JPEG data URL. Quality issues never block it.
func (e *ImagingEditor) Export(c *Canvas) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, c.Current, imaging.JPEG, imaging.JPEGQuality(e.config.JPEGQuality)); err != nil {
		return "", fmt.Errorf("encode badge photo: %w", err)
	}
	return DataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ExportBytes returns the raw JPEG for uploading to storage.
func (e *ImagingEditor) ExportBytes(c *Canvas) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, c.Current, imaging.JPEG, imaging.JPEGQuality(e.config.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode badge photo: %w", err)
	}
	return buf.Bytes(), nil
}

func render(c *Canvas) image.Image {
	var img image.Image = c.Original
	if c.crop != nil {
		img = imaging.Crop(img, *c.crop)
	}
	if c.Adjustment.Brightness != 0 {
		img = imaging.AdjustBrightness(img, c.Adjustment.Brightness)
	}
	if c.Adjustment.Contrast != 0 {
		img = imaging.AdjustContrast(img, c.Adjustment.Contrast)
	}
	if deg := NormalizeRotation(c.Adjustment.RotationDegrees); deg != 0 {
		// imaging rotates counter-clockwise
		img = imaging.Rotate(img, 360-deg, color.White)
	}
	return img
}

// NormalizeRotation maps any angle into [0, 360).
func NormalizeRotation(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func checkPercent(field string, v float64) error {
	if v < -100 || v > 100 || math.IsNaN(v) {
		return apperrors.NewValidationFailedError([]string{"badge_photo"}, []apperrors.FieldError{{
			Step:    "badge_photo",
			Field:   field,
			Message: "must be between -100 and 100",
			Code:    "OUT_OF_RANGE",
		}})
	}
	return nil
}
