package validator

import (
	"errors"
	"testing"
)

type commentInput struct {
	Body string `json:"body" validate:"required,notblank,max=20"`
}

type rankingQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}

func TestNotBlankRejectsWhitespace(t *testing.T) {
	v := New()
	if err := v.Struct(commentInput{Body: "   "}); err == nil {
		t.Fatal("expected whitespace-only body to fail validation")
	}
	if err := v.Struct(commentInput{Body: "filtración"}); err != nil {
		t.Fatalf("expected valid body, got %v", err)
	}
}

func TestFieldsUsesWireNames(t *testing.T) {
	v := New()

	fields := Fields(v.Struct(commentInput{Body: "una descripción demasiado larga"}))
	if fields["body"] != "max=20" {
		t.Fatalf("unexpected fields %v", fields)
	}

	fields = Fields(v.Struct(rankingQuery{Limit: 500}))
	if fields["limit"] != "max=100" {
		t.Fatalf("unexpected fields %v", fields)
	}

	if Fields(errors.New("boom")) != nil {
		t.Fatal("plain errors have no fields")
	}
}
