package domain

import (
	"testing"

	"techo_backend/platform/apperr"
)

func TestDraftCannotBeReviewedDirectly(t *testing.T) {
	err := ValidateReview(FormDraft)
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
	if err := ValidateReview(FormSubmitted); err != nil {
		t.Fatalf("enviada -> revisada rejected: %v", err)
	}
	if err := ValidateReview(FormReviewed); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected reviewed form to reject a second review, got %v", err)
	}
}

func TestSubmitOnlyFromDraft(t *testing.T) {
	if err := ValidateSubmit(FormDraft); err != nil {
		t.Fatalf("borrador -> enviada rejected: %v", err)
	}
	for _, from := range []FormStatus{FormSubmitted, FormReviewed} {
		if err := ValidateSubmit(from); !apperr.Is(err, apperr.KindInvalidTransition) {
			t.Fatalf("submit from %s: expected InvalidTransition, got %v", from, err)
		}
	}
}

func TestParseVerdict(t *testing.T) {
	if v, err := ParseVerdict(""); v != nil || err != nil {
		t.Fatalf("empty verdict: got %v, %v", v, err)
	}
	if v, err := ParseVerdict("con_observaciones"); err != nil || *v != VerdictWithRemarks {
		t.Fatalf("unexpected verdict %v, %v", v, err)
	}
	if _, err := ParseVerdict("quizas"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected Validation, got %v", err)
	}
}

func TestDetectSourceFormat(t *testing.T) {
	cases := []struct {
		name, contentType string
		want              SourceFormat
	}{
		{"planta.dwg", "image/vnd.dwg", SourceDWG},
		{"corte.DXF", "application/octet-stream", SourceDXF},
		{"memoria.pdf", "application/pdf", SourcePDF},
		{"fachada.jpg", "image/jpeg", SourceImage},
		{"presupuesto.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", SourceOffice},
	}
	for _, tc := range cases {
		got := DetectSourceFormat(tc.name, tc.contentType)
		if got != tc.want {
			t.Errorf("DetectSourceFormat(%q, %q) = %s, want %s", tc.name, tc.contentType, got, tc.want)
		}
		if got.NeedsConversion() != (tc.want == SourceDXF) {
			t.Errorf("NeedsConversion mismatch for %s", tc.name)
		}
	}
}
