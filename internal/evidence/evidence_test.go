package evidence

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"strings"
	"testing"

	"techo_backend/platform/apperr"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

func TestObjectKeyLayout(t *testing.T) {
	id := uuid.MustParse("7d5a1c9e-8f1b-4a8e-9a51-0c6b2f4e1d22")
	key := ObjectKey(Owner{Kind: OwnerComment, ID: id}, "foto grieta.jpg")

	pattern := regexp.MustCompile(`^comment/7d5a1c9e-8f1b-4a8e-9a51-0c6b2f4e1d22/foto_grieta_[0-9a-f]{8}\.jpg$`)
	if !pattern.MatchString(key) {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestObjectKeyStripsDirectories(t *testing.T) {
	key := ObjectKey(Owner{Kind: OwnerIncidence, ID: uuid.New()}, "../../etc/passwd")
	if strings.Contains(key, "..") {
		t.Fatalf("key escapes owner prefix: %q", key)
	}
}

func TestThumbnailKey(t *testing.T) {
	got := thumbnailKey("comment/abc/photo_1234abcd.png")
	if got != "comment/abc/thumbs/photo_1234abcd.jpg" {
		t.Fatalf("thumbnailKey = %q", got)
	}
}

func TestPolicyValidate(t *testing.T) {
	p := EvidencePolicy(1024)

	tests := []struct {
		name string
		file File
		ok   bool
	}{
		{"valid jpeg", File{Name: "a.jpg", ContentType: "image/jpeg", Size: 10}, true},
		{"empty", File{Name: "a.jpg", ContentType: "image/jpeg", Size: 0}, false},
		{"too large", File{Name: "a.jpg", ContentType: "image/jpeg", Size: 2048}, false},
		{"disallowed type", File{Name: "a.exe", ContentType: "application/x-msdownload", Size: 10}, false},
		{"missing name", File{Name: " ", ContentType: "image/jpeg", Size: 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.file)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNormalizeContentTypeUsesExtensionForDrawings(t *testing.T) {
	if got := NormalizeContentType("plano.DWG", "application/octet-stream"); got != "image/vnd.dwg" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeContentType("plano.dxf", ""); got != "image/vnd.dxf" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeContentType("x.pdf", "application/pdf; charset=binary"); got != "application/pdf" {
		t.Fatalf("got %q", got)
	}
}

func TestThumbnailFitsBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1280, 640))
	for x := 0; x < 1280; x++ {
		src.Set(x, x%640, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	thumb, err := Thumbnail(buf.Bytes())
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if b := img.Bounds(); b.Dx() != ThumbnailSize || b.Dy() != ThumbnailSize/2 {
		t.Fatalf("thumbnail bounds = %v", b)
	}
}

func TestCaptureTimeWithoutExif(t *testing.T) {
	if got := CaptureTime([]byte("not an image")); got != nil {
		t.Fatalf("expected nil capture time, got %v", got)
	}
}
