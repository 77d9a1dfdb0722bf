// Package ids provides unique-identifier generation behind a small
// interface so tests can substitute deterministic sources.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator produces unique string identifiers.
type Generator interface {
	NewID() string
}

// UUID generates random v4 identifiers. Used for sessions, scenes and
// observer connections.
type UUID struct{}

func (UUID) NewID() string { return uuid.NewString() }

// ULID generates lexicographically sortable, time-ordered identifiers.
// Used for stream ids, where creation order matters for operators
// scanning logs.
type ULID struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULID() *ULID {
	return &ULID{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULID) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}
