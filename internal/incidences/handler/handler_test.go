package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"techo_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

func commentContext(t *testing.T, contentType string, body *bytes.Buffer) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/incidences/x/comments", body)
	c.Request.Header.Set("Content-Type", contentType)
	return c, rec
}

func TestReadCommentAcceptsJSON(t *testing.T) {
	h := &Handler{val: validator.New()}
	c, rec := commentContext(t, "application/json; charset=utf-8", bytes.NewBufferString(`{"body":"Se revisó la llave de paso"}`))

	text, files, closeFiles, ok := h.readComment(c)
	if !ok {
		t.Fatalf("readComment rejected JSON: %d %s", rec.Code, rec.Body.String())
	}
	defer closeFiles()
	if text != "Se revisó la llave de paso" || len(files) != 0 {
		t.Fatalf("unexpected comment %q with %d files", text, len(files))
	}
}

func TestReadCommentRejectsBlankJSON(t *testing.T) {
	h := &Handler{val: validator.New()}
	c, rec := commentContext(t, "application/json", bytes.NewBufferString(`{"body":"   "}`))

	if _, _, _, ok := h.readComment(c); ok {
		t.Fatal("expected blank body to be rejected")
	}
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "body") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestReadCommentAcceptsMultipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("body", "Adjunto foto")
	fw, err := mw.CreateFormFile("files", "muro.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write([]byte{0xff, 0xd8, 0xff})
	_ = mw.Close()

	h := &Handler{val: validator.New()}
	c, rec := commentContext(t, mw.FormDataContentType(), &buf)

	text, files, closeFiles, ok := h.readComment(c)
	if !ok {
		t.Fatalf("readComment rejected multipart: %d %s", rec.Code, rec.Body.String())
	}
	defer closeFiles()
	if text != "Adjunto foto" || len(files) != 1 || files[0].Name != "muro.jpg" {
		t.Fatalf("unexpected comment %q with files %+v", text, files)
	}
}
