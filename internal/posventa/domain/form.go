// Package domain holds the posventa review rules.
package domain

import (
	"path"
	"strings"

	"techo_backend/platform/apperr"
)

// FormStatus is the review state of a posventa form.
type FormStatus string

const (
	FormDraft     FormStatus = "borrador"
	FormSubmitted FormStatus = "enviada"
	FormReviewed  FormStatus = "revisada"
)

// ParseFormStatus converts s to a FormStatus.
func ParseFormStatus(s string) (FormStatus, bool) {
	switch st := FormStatus(s); st {
	case FormDraft, FormSubmitted, FormReviewed:
		return st, true
	default:
		return "", false
	}
}

// AcceptsPlans reports whether plan documents may still be attached.
func (s FormStatus) AcceptsPlans() bool {
	return s == FormDraft || s == FormSubmitted
}

// ValidateSubmit allows borrador -> enviada only.
func ValidateSubmit(from FormStatus) error {
	if from != FormDraft {
		return apperr.InvalidTransition(string(from), string(FormSubmitted))
	}
	return nil
}

// ValidateReview allows enviada -> revisada only. A draft must be submitted first.
func ValidateReview(from FormStatus) error {
	if from != FormSubmitted {
		return apperr.InvalidTransition(string(from), string(FormReviewed))
	}
	return nil
}

// Verdict is the optional outcome recorded with a review.
type Verdict string

const (
	VerdictApproved    Verdict = "aprobada"
	VerdictWithRemarks Verdict = "con_observaciones"
	VerdictRejected    Verdict = "rechazada"
)

// ParseVerdict returns nil for an empty verdict and Validation for unknown ones.
func ParseVerdict(s string) (*Verdict, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	switch v := Verdict(s); v {
	case VerdictApproved, VerdictWithRemarks, VerdictRejected:
		return &v, nil
	default:
		return nil, apperr.Validation("unknown verdict")
	}
}

// SourceFormat classifies a plan document.
type SourceFormat string

const (
	SourcePDF    SourceFormat = "pdf"
	SourceDWG    SourceFormat = "dwg"
	SourceDXF    SourceFormat = "dxf"
	SourceImage  SourceFormat = "image"
	SourceOffice SourceFormat = "office"
)

// DetectSourceFormat classifies a plan by content type, falling back to the extension.
func DetectSourceFormat(fileName, contentType string) SourceFormat {
	switch contentType {
	case "application/pdf":
		return SourcePDF
	case "image/vnd.dwg":
		return SourceDWG
	case "image/vnd.dxf":
		return SourceDXF
	}
	switch strings.ToLower(path.Ext(fileName)) {
	case ".dwg":
		return SourceDWG
	case ".dxf":
		return SourceDXF
	case ".pdf":
		return SourcePDF
	}
	if strings.HasPrefix(contentType, "image/") {
		return SourceImage
	}
	return SourceOffice
}

// NeedsConversion reports whether the plan is rendered to PDF before viewing.
// LibreOffice imports DXF but has no DWG filter, so DWG plans are served raw.
func (f SourceFormat) NeedsConversion() bool {
	return f == SourceDXF
}
