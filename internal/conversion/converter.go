// Package conversion turns drawings and office documents into PDFs that a
// browser can display. Results are stored next to the source and cached per
// converter version; a changed source ETag invalidates the cached result.
package conversion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"techo_backend/internal/evidence"
	"techo_backend/platform/apperr"
	"techo_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const lockTTL = 2 * time.Minute

// DocumentConverter is the stateless upstream converter.
type DocumentConverter interface {
	Convert(ctx context.Context, fileName, contentType string, content []byte) ([]byte, error)
}

// BlobStore is the subset of evidence.Store the converter reads and writes.
type BlobStore interface {
	Put(ctx context.Context, owner evidence.Owner, file evidence.File) (evidence.Reference, error)
	Open(ctx context.Context, ref evidence.Reference) (io.ReadCloser, error)
	Stat(ctx context.Context, ref evidence.Reference) (evidence.Reference, error)
}

// Converter converts sources at most once per (version, source ETag).
type Converter struct {
	client  DocumentConverter
	store   BlobStore
	cache   Cache
	locker  Locker
	version string
	ttl     time.Duration
	log     *logger.Logger
	group   singleflight.Group
}

// Options configures a Converter.
type Options struct {
	Version string
	TTL     time.Duration
}

// NewConverter wires a converter. A nil locker falls back to LocalLocker.
func NewConverter(client DocumentConverter, store BlobStore, cache Cache, locker Locker, opts Options, log *logger.Logger) *Converter {
	if locker == nil {
		locker = LocalLocker{}
	}
	if opts.Version == "" {
		opts.Version = "v1"
	}
	return &Converter{
		client:  client,
		store:   store,
		cache:   cache,
		locker:  locker,
		version: opts.Version,
		ttl:     opts.TTL,
		log:     log,
	}
}

// Convert returns the PDF rendition of src, converting on first access.
func (c *Converter) Convert(ctx context.Context, src evidence.Reference) (evidence.Reference, error) {
	current, err := c.store.Stat(ctx, src)
	if err != nil {
		return evidence.Reference{}, err
	}
	if current.Name == "" {
		current.Name = src.Name
	}
	key := CacheKey(c.version, current)

	if ref, ok := c.lookup(ctx, key, current.ETag); ok {
		return ref, nil
	}

	// The shared conversion outlives any single caller; each caller stops
	// waiting when its own context ends.
	flight := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key+"@"+current.ETag, func() (any, error) {
		return c.convertLocked(flight, key, current)
	})
	select {
	case <-ctx.Done():
		return evidence.Reference{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return evidence.Reference{}, res.Err
		}
		return res.Val.(evidence.Reference), nil
	}
}

func (c *Converter) convertLocked(ctx context.Context, key string, src evidence.Reference) (evidence.Reference, error) {
	release, err := c.locker.Obtain(ctx, "lock:"+key, lockTTL)
	if err != nil {
		c.log.UpstreamFailure("redis", "conversion_lock", err)
		return evidence.Reference{}, apperr.Upstream("document conversion is busy, try again", err)
	}
	defer release()

	// Another instance may have finished while we waited for the lock.
	if ref, ok := c.lookup(ctx, key, src.ETag); ok {
		return ref, nil
	}

	rc, err := c.store.Open(ctx, src)
	if err != nil {
		return evidence.Reference{}, err
	}
	content, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return evidence.Reference{}, apperr.Upstream("failed to read source document", err)
	}

	started := time.Now()
	pdf, err := c.client.Convert(ctx, src.Name, src.ContentType, content)
	if err != nil {
		c.log.UpstreamFailure("gotenberg", "convert", err)
		return evidence.Reference{}, apperr.Upstream("document conversion failed", err)
	}

	result, err := c.store.Put(ctx, ownerFor(src), evidence.File{
		Name:        pdfName(src.Name),
		ContentType: "application/pdf",
		Size:        int64(len(pdf)),
		Reader:      bytes.NewReader(pdf),
	})
	if err != nil {
		return evidence.Reference{}, err
	}

	entry := Entry{Result: result, SourceETag: src.ETag, ConvertedAt: time.Now().UTC()}
	if err := c.cache.Set(ctx, key, entry, c.ttl); err != nil {
		c.log.UpstreamFailure("redis", "conversion_cache_set", err)
	}

	c.log.Info("document converted",
		"source", src.Bucket+"/"+src.Key,
		"result", result.Key,
		"version", c.version,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return result, nil
}

// lookup returns a cached result when it was produced from sourceETag.
// Stale entries are dropped; cache errors count as misses.
func (c *Converter) lookup(ctx context.Context, key, sourceETag string) (evidence.Reference, bool) {
	entry, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.UpstreamFailure("redis", "conversion_cache_get", err)
		return evidence.Reference{}, false
	}
	if !ok {
		return evidence.Reference{}, false
	}
	if entry.SourceETag != sourceETag {
		if err := c.cache.Delete(ctx, key); err != nil {
			c.log.UpstreamFailure("redis", "conversion_cache_delete", err)
		}
		return evidence.Reference{}, false
	}
	return entry.Result, true
}

// Version returns the converter version baked into cache keys.
func (c *Converter) Version() string { return c.version }

// ownerFor derives a stable owner so every rendition of a source shares a prefix.
func ownerFor(src evidence.Reference) evidence.Owner {
	return evidence.Owner{
		Kind: evidence.OwnerConversion,
		ID:   uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("s3://%s/%s", src.Bucket, src.Key))),
	}
}

func pdfName(name string) string {
	if name == "" {
		return "document.pdf"
	}
	return strings.TrimSuffix(name, path.Ext(name)) + ".pdf"
}

// MemoryCache is a process-local Cache used when Redis is not configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, entry Entry, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
