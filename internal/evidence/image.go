package evidence

import (
	"bytes"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// ThumbnailSize bounds the longest side of generated thumbnails.
const ThumbnailSize = 320

// CaptureTime returns the EXIF DateTimeOriginal of a JPEG, or nil.
func CaptureTime(data []byte) *time.Time {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	t, err := x.DateTime()
	if err != nil || t.IsZero() {
		return nil
	}
	return &t
}

// Thumbnail renders a JPEG thumbnail that fits in ThumbnailSize x ThumbnailSize.
// EXIF orientation is honoured so phone photos are not sideways.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	var thumb image.Image = img
	b := img.Bounds()
	if b.Dx() > ThumbnailSize || b.Dy() > ThumbnailSize {
		thumb = imaging.Fit(img, ThumbnailSize, ThumbnailSize, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
