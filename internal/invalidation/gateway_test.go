package invalidation

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeCache struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	err     error
	panics  bool
}

func (f *fakeCache) EvictAll() error {
	f.calls.Add(1)
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		<-f.release
	}
	if f.panics {
		panic("store exploded")
	}
	return f.err
}

func quietGateway(c Evicter) *Gateway {
	return New(c, log.New(io.Discard, "", 0))
}

func TestNotifySuccess(t *testing.T) {
	fc := &fakeCache{}
	g := quietGateway(fc)
	fixed := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	out, err := g.Notify(context.Background(), []byte(`{"post_id":1}`))
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if out.Status != StatusSuccess || !out.UpdatedAt.Equal(fixed) {
		t.Errorf("got %+v", out)
	}
	if g.State() != Idle {
		t.Errorf("state = %s, want idle", g.State())
	}
	if !g.LastClearedAt().Equal(fixed) {
		t.Errorf("LastClearedAt = %v", g.LastClearedAt())
	}
	if fc.calls.Load() != 1 {
		t.Errorf("EvictAll called %d times", fc.calls.Load())
	}
}

func TestConcurrentNotificationsClearOnce(t *testing.T) {
	fc := &fakeCache{entered: make(chan struct{}), release: make(chan struct{})}
	g := quietGateway(fc)

	var wg sync.WaitGroup
	var first Outcome
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = g.Notify(context.Background(), nil)
	}()

	<-fc.entered
	if g.State() != Updating {
		t.Fatalf("state = %s during clear, want updating", g.State())
	}
	second, err := g.Notify(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Notify: %v", err)
	}
	close(fc.release)
	wg.Wait()

	if firstErr != nil {
		t.Fatalf("first Notify: %v", firstErr)
	}
	if first.Status != StatusSuccess {
		t.Errorf("first status = %q, want success", first.Status)
	}
	if second.Status != StatusAlreadyUpdating {
		t.Errorf("second status = %q, want already_updating", second.Status)
	}
	if got := fc.calls.Load(); got != 1 {
		t.Errorf("EvictAll called %d times, want 1", got)
	}
	if g.State() != Idle {
		t.Errorf("final state = %s, want idle", g.State())
	}
}

func TestFailedClearReturnsToIdle(t *testing.T) {
	cases := []struct {
		name string
		fc   *fakeCache
	}{
		{"error", &fakeCache{err: errors.New("disk full")}},
		{"panic", &fakeCache{panics: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := quietGateway(tc.fc)
			if _, err := g.Notify(context.Background(), nil); err == nil {
				t.Fatal("expected error")
			}
			if g.State() != Idle {
				t.Fatalf("state = %s after failure, want idle", g.State())
			}
			if !g.LastClearedAt().IsZero() {
				t.Errorf("LastClearedAt set after failure")
			}

			tc.fc.err, tc.fc.panics = nil, false
			out, err := g.Notify(context.Background(), nil)
			if err != nil || out.Status != StatusSuccess {
				t.Errorf("retry after failure: %+v, %v", out, err)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate([]byte("abcdef"), 3); got != "abc..." {
		t.Errorf("got %q", got)
	}
	if got := truncate([]byte("ab"), 3); got != "ab" {
		t.Errorf("got %q", got)
	}
}
