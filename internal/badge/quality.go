package badge

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Quality issue types.
const (
	IssueTooDark             = "too_dark"
	IssueTooBright           = "too_bright"
	IssueUnderexposedRegions = "underexposed_regions"
	IssueLowResolution       = "low_resolution"
)

const (
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// QualityIssue is advisory only.
type QualityIssue struct {
	Type       string `json:"type"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// sampleSize bounds the luminance scan; the resolution check uses the real size.
const sampleSize = 256

// AnalyzeQuality reports lighting and resolution problems.
func (e *ImagingEditor) AnalyzeQuality(img image.Image) []QualityIssue {
	var issues []QualityIssue
	cfg := e.config

	bounds := img.Bounds()
	if bounds.Dx() < cfg.MinWidth || bounds.Dy() < cfg.MinHeight {
		issues = append(issues, QualityIssue{
			Type:       IssueLowResolution,
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("Photo is %dx%d; at least %dx%d is recommended", bounds.Dx(), bounds.Dy(), cfg.MinWidth, cfg.MinHeight),
			Suggestion: "Move closer or use a higher resolution camera",
		})
	}

	avg, darkRatio := luminance(img, cfg.DarkPixelLuma)
	switch {
	case avg < cfg.DarkAverage:
		issues = append(issues, QualityIssue{
			Type:       IssueTooDark,
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("Average brightness %.0f is below %.0f", avg, cfg.DarkAverage),
			Suggestion: "Increase brightness or retake the photo in better light",
		})
	case avg > cfg.BrightAverage:
		issues = append(issues, QualityIssue{
			Type:       IssueTooBright,
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("Average brightness %.0f is above %.0f", avg, cfg.BrightAverage),
			Suggestion: "Lower brightness or avoid direct light on the face",
		})
	}

	if darkRatio > cfg.DarkPixelMaxRatio {
		issues = append(issues, QualityIssue{
			Type:       IssueUnderexposedRegions,
			Severity:   SeverityInfo,
			Message:    fmt.Sprintf("%.0f%% of the photo is in deep shadow", darkRatio*100),
			Suggestion: "Face a window or light source to remove shadows",
		})
	}
	return issues
}

// luminance returns the mean Rec. 601 luma (0-255) and the share of pixels darker than
// darkLuma.
func luminance(img image.Image, darkLuma float64) (float64, float64) {
	b := img.Bounds()
	if b.Dx() > sampleSize || b.Dy() > sampleSize {
		img = imaging.Fit(img, sampleSize, sampleSize, imaging.Box)
	}
	nrgba := imaging.Clone(img)

	var sum float64
	var dark, total int
	pix := nrgba.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		y := 0.299*float64(pix[i]) + 0.587*float64(pix[i+1]) + 0.114*float64(pix[i+2])
		sum += y
		if y < darkLuma {
			dark++
		}
		total++
	}
	if total == 0 {
		return 0, 0
	}
	return sum / float64(total), float64(dark) / float64(total)
}
