// Package evidencetest provides an in-memory evidence.Store for tests.
package evidencetest

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"techo_backend/internal/evidence"
	"techo_backend/platform/apperr"
)

// ErrInjected is returned for uploads whose name is in FailNames.
var ErrInjected = errors.New("injected storage failure")

// Store keeps blobs in memory and mirrors the MinIO store's validation.
type Store struct {
	mu        sync.Mutex
	bucket    string
	policy    evidence.Policy
	objects   map[string]object
	FailNames map[string]bool
	Puts      int
}

type object struct {
	ref  evidence.Reference
	data []byte
}

// New returns an empty store for bucket.
func New(bucket string, policy evidence.Policy) *Store {
	return &Store{bucket: bucket, policy: policy, objects: make(map[string]object), FailNames: make(map[string]bool)}
}

func (s *Store) Bucket() string { return s.bucket }

func (s *Store) Put(_ context.Context, owner evidence.Owner, file evidence.File) (evidence.Reference, error) {
	file.ContentType = evidence.NormalizeContentType(file.Name, file.ContentType)
	if err := s.policy.Validate(file); err != nil {
		return evidence.Reference{}, err
	}

	s.mu.Lock()
	fail := s.FailNames[file.Name]
	s.mu.Unlock()
	if fail {
		return evidence.Reference{}, apperr.Upstream("failed to store file", ErrInjected)
	}

	data, err := io.ReadAll(file.Reader)
	if err != nil {
		return evidence.Reference{}, err
	}
	ref := evidence.Reference{
		Bucket:      s.bucket,
		Key:         evidence.ObjectKey(owner, file.Name),
		Name:        file.Name,
		ContentType: file.ContentType,
		Size:        int64(len(data)),
		ETag:        etag(data),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[ref.Key] = object{ref: ref, data: data}
	s.Puts++
	return ref, nil
}

// Replace overwrites an existing object, changing its ETag.
func (s *Store) Replace(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.objects[key]
	obj.data = data
	obj.ref.Size = int64(len(data))
	obj.ref.ETag = etag(data)
	s.objects[key] = obj
}

func (s *Store) Get(_ context.Context, ref evidence.Reference) (evidence.SignedURL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[ref.Key]; !ok {
		return evidence.SignedURL{}, apperr.NotFound("file not found")
	}
	return evidence.SignedURL{
		URL:       "https://blobs.test/" + s.bucket + "/" + ref.Key,
		ExpiresAt: time.Now().Add(evidence.SignedURLTTL),
	}, nil
}

func (s *Store) List(_ context.Context, owner evidence.Owner) ([]evidence.Reference, error) {
	prefix := owner.Kind + "/" + owner.ID.String() + "/"
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := make([]evidence.Reference, 0)
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			refs = append(refs, obj.ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Key < refs[j].Key })
	return refs, nil
}

func (s *Store) Open(_ context.Context, ref evidence.Reference) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[ref.Key]
	if !ok {
		return nil, apperr.NotFound("file not found")
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *Store) Stat(_ context.Context, ref evidence.Reference) (evidence.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[ref.Key]
	if !ok {
		return evidence.Reference{}, apperr.NotFound("file not found")
	}
	return obj.ref, nil
}

// Count returns the number of stored objects.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
