package conversion

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	libreOfficeRoute = "/forms/libreoffice/convert"
	maxErrorBody     = 4 << 10
)

// StatusError is a non-200 answer from Gotenberg.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gotenberg returned %d: %s", e.Status, e.Body)
}

// GotenbergClient posts documents to Gotenberg's LibreOffice route. Drawings
// are rendered in landscape.
type GotenbergClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewGotenbergClient uses basic auth when both username and password are set.
func NewGotenbergClient(baseURL, username, password string) *GotenbergClient {
	return &GotenbergClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 90 * time.Second},
	}
}

// Convert streams content as a multipart upload and returns the PDF bytes.
func (g *GotenbergClient) Convert(ctx context.Context, fileName, contentType string, content []byte) ([]byte, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, fileName, contentType, content))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+libreOfficeRoute, pr)
	if err != nil {
		_ = pr.Close()
		return nil, fmt.Errorf("build gotenberg request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if g.username != "" && g.password != "" {
		req.SetBasicAuth(g.username, g.password)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gotenberg request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gotenberg response: %w", err)
	}
	return pdf, nil
}

func writeForm(form *multipart.Writer, fileName, contentType string, content []byte) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, fileName))
	h.Set("Content-Type", contentType)

	part, err := form.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := form.WriteField("landscape", "true"); err != nil {
		return err
	}
	return form.Close()
}
