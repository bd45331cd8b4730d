// Package invalidation turns CMS change notifications into cache clears.
package invalidation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type State int

const (
	Idle State = iota
	Updating
)

func (s State) String() string {
	if s == Updating {
		return "updating"
	}
	return "idle"
}

const (
	StatusSuccess         = "success"
	StatusAlreadyUpdating = "already_updating"
)

type Outcome struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Evicter is the part of the fetch cache the gateway drives.
type Evicter interface {
	EvictAll() error
}

// Gateway runs at most one clear at a time. A notification that arrives
// during a clear is acknowledged without doing anything.
type Gateway struct {
	cache Evicter
	log   *log.Logger
	now   func() time.Time

	mu            sync.Mutex
	state         State
	lastClearedAt time.Time
}

func New(cache Evicter, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{cache: cache, log: logger, now: time.Now}
}

const maxLoggedBody = 512

// Notify clears the cache unless a clear is already running. body is only
// logged.
func (g *Gateway) Notify(ctx context.Context, body []byte) (Outcome, error) {
	id := uuid.NewString()

	if !g.acquire() {
		g.log.Printf("notify id=%s: already updating, skipped", id)
		return Outcome{Status: StatusAlreadyUpdating, UpdatedAt: g.now()}, nil
	}
	defer g.release()

	g.log.Printf("notify id=%s: clearing content cache, change=%q", id, truncate(body, maxLoggedBody))
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if err := g.evict(); err != nil {
		g.log.Printf("notify id=%s: clear failed: %v", id, err)
		return Outcome{}, err
	}

	at := g.now()
	g.mu.Lock()
	g.lastClearedAt = at
	g.mu.Unlock()
	g.log.Printf("notify id=%s: cache cleared", id)
	return Outcome{Status: StatusSuccess, UpdatedAt: at}, nil
}

func (g *Gateway) evict() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evict panicked: %v", r)
		}
	}()
	return g.cache.EvictAll()
}

func (g *Gateway) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Updating {
		return false
	}
	g.state = Updating
	return true
}

func (g *Gateway) release() {
	g.mu.Lock()
	g.state = Idle
	g.mu.Unlock()
}

func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// LastClearedAt is zero until the first successful clear.
func (g *Gateway) LastClearedAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastClearedAt
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
