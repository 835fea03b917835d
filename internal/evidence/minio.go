package evidence

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"techo_backend/platform/apperr"
	"techo_backend/platform/config"
	"techo_backend/platform/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewMinIOClient creates a MinIO client from configuration.
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return client, nil
}

// MinIOStore implements Store on one MinIO bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
	policy Policy
	log    *logger.Logger
}

// NewMinIOStore binds a store to bucket.
func NewMinIOStore(client *minio.Client, bucket string, policy Policy, log *logger.Logger) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket, policy: policy, log: log}
}

// Bucket returns the bucket this store writes to.
func (s *MinIOStore) Bucket() string { return s.bucket }

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Put validates and uploads file. Images are buffered so the capture time
// and a thumbnail can be derived; neither can fail the upload.
func (s *MinIOStore) Put(ctx context.Context, owner Owner, file File) (Reference, error) {
	file.ContentType = NormalizeContentType(file.Name, file.ContentType)
	if err := s.policy.Validate(file); err != nil {
		return Reference{}, err
	}

	key := ObjectKey(owner, file.Name)
	ref := Reference{
		Bucket:      s.bucket,
		Key:         key,
		Name:        sanitizeName(file.Name),
		ContentType: file.ContentType,
		Size:        file.Size,
	}

	body := file.Reader
	if file.ContentType == "image/jpeg" || file.ContentType == "image/png" {
		data, err := io.ReadAll(io.LimitReader(file.Reader, file.Size+1))
		if err != nil {
			return Reference{}, apperr.Upstream("failed to read upload", err)
		}
		if int64(len(data)) != file.Size {
			return Reference{}, apperr.Validation("file size does not match content")
		}
		if file.ContentType == "image/jpeg" {
			ref.CapturedAt = CaptureTime(data)
		}
		ref.ThumbnailKey = s.putThumbnail(ctx, key, data)
		body = bytes.NewReader(data)
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, body, file.Size, minio.PutObjectOptions{
		ContentType: file.ContentType,
	})
	if err != nil {
		s.log.UpstreamFailure("minio", "put_object", err)
		return Reference{}, apperr.Upstream("failed to store file", err)
	}
	ref.ETag = info.ETag
	return ref, nil
}

func (s *MinIOStore) putThumbnail(ctx context.Context, key string, data []byte) *string {
	thumb, err := Thumbnail(data)
	if err != nil {
		s.log.Debug("thumbnail skipped", "key", key, "error", err)
		return nil
	}
	tkey := thumbnailKey(key)
	_, err = s.client.PutObject(ctx, s.bucket, tkey, bytes.NewReader(thumb), int64(len(thumb)), minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		s.log.UpstreamFailure("minio", "put_thumbnail", err)
		return nil
	}
	return &tkey
}

// Get returns a signed download URL for ref.
func (s *MinIOStore) Get(ctx context.Context, ref Reference) (SignedURL, error) {
	expiresAt := time.Now().Add(SignedURLTTL)
	params := make(url.Values)
	if ref.Name != "" {
		params.Set("response-content-disposition", fmt.Sprintf("inline; filename=%q", ref.Name))
	}
	u, err := s.client.PresignedGetObject(ctx, bucketOf(ref, s.bucket), ref.Key, SignedURLTTL, params)
	if err != nil {
		return SignedURL{}, apperr.Upstream("failed to sign download URL", err)
	}
	return SignedURL{URL: u.String(), ExpiresAt: expiresAt}, nil
}

// List returns every object stored for owner, thumbnails excluded.
func (s *MinIOStore) List(ctx context.Context, owner Owner) ([]Reference, error) {
	refs := make([]Reference, 0)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: owner.prefix(), Recursive: true}) {
		if obj.Err != nil {
			return nil, apperr.Upstream("failed to list files", obj.Err)
		}
		if strings.Contains(obj.Key, "/thumbs/") {
			continue
		}
		refs = append(refs, Reference{
			Bucket:      s.bucket,
			Key:         obj.Key,
			Name:        obj.Key[strings.LastIndex(obj.Key, "/")+1:],
			ContentType: obj.ContentType,
			Size:        obj.Size,
			ETag:        obj.ETag,
		})
	}
	return refs, nil
}

// Open streams the object. The caller closes the reader.
func (s *MinIOStore) Open(ctx context.Context, ref Reference) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucketOf(ref, s.bucket), ref.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperr.Upstream("failed to open file", err)
	}
	return obj, nil
}

// Stat returns ref refreshed with the object's current metadata.
func (s *MinIOStore) Stat(ctx context.Context, ref Reference) (Reference, error) {
	info, err := s.client.StatObject(ctx, bucketOf(ref, s.bucket), ref.Key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return Reference{}, apperr.NotFound("file not found")
		}
		return Reference{}, apperr.Upstream("failed to stat file", err)
	}
	ref.Bucket = bucketOf(ref, s.bucket)
	ref.ETag = info.ETag
	ref.Size = info.Size
	if info.ContentType != "" {
		ref.ContentType = info.ContentType
	}
	return ref, nil
}

func bucketOf(ref Reference, fallback string) string {
	if ref.Bucket != "" {
		return ref.Bucket
	}
	return fallback
}
