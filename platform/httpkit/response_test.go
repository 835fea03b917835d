package httpkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"techo_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

func TestHandleErrorMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", apperr.NotFound("missing"), http.StatusNotFound},
		{"conflict", apperr.Conflict("taken"), http.StatusConflict},
		{"invalid transition", apperr.InvalidTransition("abierta", "cerrada"), http.StatusConflict},
		{"forbidden", apperr.Forbidden("no"), http.StatusForbidden},
		{"validation", apperr.Validation("bad"), http.StatusBadRequest},
		{"upstream", apperr.Upstream("store down", errors.New("dial")), http.StatusBadGateway},
		{"wrapped", fmt.Errorf("ctx: %w", apperr.NotFound("missing")), http.StatusNotFound},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			if !HandleError(c, tc.err) {
				t.Fatal("expected error to be handled")
			}
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestHandleErrorBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	HandleError(c, apperr.InvalidTransition("resuelta", "abierta"))

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition code, got %q", body.Code)
	}
	details, _ := body.Details.(map[string]any)
	if details["from"] != "resuelta" || details["to"] != "abierta" {
		t.Fatalf("unexpected details %v", body.Details)
	}

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	HandleError(c, errors.New("pq: connection reset"))
	if strings.Contains(rec.Body.String(), "pq:") {
		t.Fatal("untyped error message leaked to the client")
	}
}
