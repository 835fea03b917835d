package conversion

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGotenbergConvertPostsToLibreOffice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forms/libreoffice/convert" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "svc" || pass != "pw" {
			t.Errorf("missing basic auth")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		files := r.MultipartForm.File["files"]
		if len(files) != 1 || files[0].Filename != "plano.dxf" {
			t.Errorf("unexpected files %+v", files)
			return
		}
		f, _ := files[0].Open()
		body, _ := io.ReadAll(f)
		if string(body) != "0\nSECTION" {
			t.Errorf("unexpected body %q", body)
		}
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	client := NewGotenbergClient(srv.URL, "svc", "pw")
	pdf, err := client.Convert(context.Background(), "plano.dxf", "image/vnd.dxf", []byte("0\nSECTION"))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.HasPrefix(string(pdf), "%PDF") {
		t.Fatalf("unexpected result %q", pdf)
	}
}

func TestGotenbergConvertReportsUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported format", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewGotenbergClient(srv.URL, "", "").Convert(context.Background(), "x.dwg", "", []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestGotenbergStatusErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("landscape") != "true" {
			t.Errorf("expected landscape rendering")
		}
		http.Error(w, "LibreOffice failed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewGotenbergClient(srv.URL+"/", "", "").Convert(context.Background(), "plano.dxf", "image/vnd.dxf", []byte("0\nSECTION"))
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected StatusError 503, got %v", err)
	}
	if statusErr.Body != "LibreOffice failed" {
		t.Fatalf("unexpected body %q", statusErr.Body)
	}
}
