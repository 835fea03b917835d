// Package evidence stores binary evidence (photos, videos, plans) in an
// S3-compatible bucket. Objects are grouped by owner so a comment, an
// incidence or a posventa form can list everything attached to it.
package evidence

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SignedURLTTL is how long a signed download URL stays valid.
const SignedURLTTL = 15 * time.Minute

// Owner kinds used across the application.
const (
	OwnerComment      = "comment"
	OwnerIncidence    = "incidence"
	OwnerPosventaForm = "posventa_form"
	OwnerConversion   = "conversion"
)

// Owner identifies the entity a blob belongs to.
type Owner struct {
	Kind string
	ID   uuid.UUID
}

func (o Owner) prefix() string {
	return o.Kind + "/" + o.ID.String() + "/"
}

// File is an upload in flight. Size must be the exact byte count of Reader.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Reference points at a stored blob.
type Reference struct {
	Bucket       string
	Key          string
	Name         string
	ContentType  string
	Size         int64
	ETag         string
	CapturedAt   *time.Time
	ThumbnailKey *string
}

// SignedURL is a time-limited download link.
type SignedURL struct {
	URL       string
	ExpiresAt time.Time
}

// Store is the blob store contract used by the domain modules.
type Store interface {
	Put(ctx context.Context, owner Owner, file File) (Reference, error)
	Get(ctx context.Context, ref Reference) (SignedURL, error)
	List(ctx context.Context, owner Owner) ([]Reference, error)
	Open(ctx context.Context, ref Reference) (io.ReadCloser, error)
	Stat(ctx context.Context, ref Reference) (Reference, error)
	Bucket() string
}

// ObjectKey builds the storage key for a file owned by owner:
// <kind>/<id>/<name>_<8 hex><ext>.
func ObjectKey(owner Owner, fileName string) string {
	name := sanitizeName(fileName)
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s%s_%s%s", owner.prefix(), base, uuid.New().String()[:8], ext)
}

func thumbnailKey(key string) string {
	dir, file := path.Split(key)
	ext := path.Ext(file)
	return dir + "thumbs/" + strings.TrimSuffix(file, ext) + ".jpg"
}

func sanitizeName(fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20, r == '/', r == '?', r == '#', r == '%':
			return -1
		default:
			return r
		}
	}, name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}
