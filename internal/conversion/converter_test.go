package conversion

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"techo_backend/internal/evidence"
	"techo_backend/internal/evidence/evidencetest"
	"techo_backend/platform/apperr"
	"techo_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeDocumentConverter struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (f *fakeDocumentConverter) Convert(_ context.Context, fileName, _ string, content []byte) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("%PDF "+fileName+" "), content...), nil
}

func seedDrawing(t *testing.T, store *evidencetest.Store, content string) evidence.Reference {
	t.Helper()
	ref, err := store.Put(context.Background(), evidence.Owner{Kind: evidence.OwnerPosventaForm, ID: uuid.New()}, evidence.File{
		Name:        "plano.dxf",
		ContentType: "application/octet-stream",
		Size:        int64(len(content)),
		Reader:      bytes.NewReader([]byte(content)),
	})
	if err != nil {
		t.Fatalf("seed drawing: %v", err)
	}
	return ref
}

func newTestConverter(client DocumentConverter, store *evidencetest.Store, cache Cache, version string) *Converter {
	return NewConverter(client, store, cache, nil, Options{Version: version, TTL: time.Hour}, logger.Discard())
}

func TestConvertCachesResult(t *testing.T) {
	store := evidencetest.New("plans", evidence.PlanPolicy(1<<20))
	client := &fakeDocumentConverter{}
	conv := newTestConverter(client, store, NewMemoryCache(), "v1")
	src := seedDrawing(t, store, "drawing-v1")

	first, err := conv.Convert(context.Background(), src)
	if err != nil {
		t.Fatalf("first Convert: %v", err)
	}
	if first.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type %q", first.ContentType)
	}
	second, err := conv.Convert(context.Background(), src)
	if err != nil {
		t.Fatalf("second Convert: %v", err)
	}
	if second.Key != first.Key {
		t.Fatalf("expected cached reference, got %q vs %q", second.Key, first.Key)
	}
	if n := client.calls.Load(); n != 1 {
		t.Fatalf("expected one upstream conversion, got %d", n)
	}
}

func TestConvertInvalidatesOnSourceChange(t *testing.T) {
	store := evidencetest.New("plans", evidence.PlanPolicy(1<<20))
	client := &fakeDocumentConverter{}
	conv := newTestConverter(client, store, NewMemoryCache(), "v1")
	src := seedDrawing(t, store, "drawing-v1")

	if _, err := conv.Convert(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	store.Replace(src.Key, []byte("drawing-v2"))
	if _, err := conv.Convert(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if n := client.calls.Load(); n != 2 {
		t.Fatalf("expected reconversion after ETag change, got %d calls", n)
	}
}

func TestConvertVersionBumpReconverts(t *testing.T) {
	store := evidencetest.New("plans", evidence.PlanPolicy(1<<20))
	cache := NewMemoryCache()
	client := &fakeDocumentConverter{}
	src := seedDrawing(t, store, "drawing")

	if _, err := newTestConverter(client, store, cache, "v1").Convert(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if _, err := newTestConverter(client, store, cache, "v2").Convert(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if n := client.calls.Load(); n != 2 {
		t.Fatalf("expected a new conversion for v2, got %d calls", n)
	}
}

func TestConcurrentConvertCollapses(t *testing.T) {
	store := evidencetest.New("plans", evidence.PlanPolicy(1<<20))
	client := &fakeDocumentConverter{delay: 50 * time.Millisecond}
	conv := newTestConverter(client, store, NewMemoryCache(), "v1")
	src := seedDrawing(t, store, "drawing")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := conv.Convert(context.Background(), src); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Convert: %v", err)
	}
	if n := client.calls.Load(); n != 1 {
		t.Fatalf("expected one upstream conversion, got %d", n)
	}
}

func TestConvertUpstreamFailure(t *testing.T) {
	store := evidencetest.New("plans", evidence.PlanPolicy(1<<20))
	client := &fakeDocumentConverter{err: errors.New("libreoffice crashed")}
	cache := NewMemoryCache()
	conv := newTestConverter(client, store, cache, "v1")
	src := seedDrawing(t, store, "drawing")

	_, err := conv.Convert(context.Background(), src)
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if _, ok, _ := cache.Get(context.Background(), CacheKey("v1", src)); ok {
		t.Fatal("failed conversion must not be cached")
	}
}

func TestConvertMissingSource(t *testing.T) {
	store := evidencetest.New("plans", evidence.PlanPolicy(1<<20))
	conv := newTestConverter(&fakeDocumentConverter{}, store, NewMemoryCache(), "v1")

	_, err := conv.Convert(context.Background(), evidence.Reference{Bucket: "plans", Key: "posventa_form/x/missing.dxf"})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type gatedConverter struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	seen    chan error
}

func (g *gatedConverter) Convert(ctx context.Context, fileName, _ string, content []byte) ([]byte, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
	}
	<-g.release
	g.seen <- ctx.Err()
	return append([]byte("%PDF "+fileName+" "), content...), nil
}

func TestConvertSurvivesFirstCallerCancel(t *testing.T) {
	store := evidencetest.New("plans", evidence.PlanPolicy(1<<20))
	client := &gatedConverter{started: make(chan struct{}), release: make(chan struct{}), seen: make(chan error, 1)}
	conv := newTestConverter(client, store, NewMemoryCache(), "v1")
	src := seedDrawing(t, store, "drawing")

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := conv.Convert(ctx, src)
		firstErr <- err
	}()

	<-client.started
	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled caller to get context.Canceled, got %v", err)
	}
	close(client.release)

	ref, err := conv.Convert(context.Background(), src)
	if err != nil {
		t.Fatalf("second Convert: %v", err)
	}
	if ref.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type %q", ref.ContentType)
	}
	if err := <-client.seen; err != nil {
		t.Fatalf("upstream call saw a cancelled context: %v", err)
	}
	if n := client.calls.Load(); n != 1 {
		t.Fatalf("expected one upstream conversion, got %d", n)
	}
}
