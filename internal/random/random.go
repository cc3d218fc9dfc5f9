// Package random provides the injectable random source used to pick nodes,
// events and accept/reject outcomes, and to generate unique ids.
package random

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"golang.org/x/exp/rand"
)

// Source is a source of uniform randomness and unique ids.
type Source interface {
	// Float64 returns a number in [0.0,1.0).
	Float64() float64
	// Intn returns a number in [0,n). It panics if n <= 0.
	Intn(n int) int
	// Int63n returns a number in [0,n). It panics if n <= 0.
	Int63n(n int64) int64
	// NewID returns a unique identifier.
	NewID() string
}

// Seeded is a deterministic Source: two Seeded sources with the same seed
// return the same sequence of numbers and ids.
type Seeded struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSeeded returns a Source replaying the sequence of the given seed.
func NewSeeded(seed uint64) *Seeded {
	return &Seeded{
		mu:  sync.Mutex{},
		rnd: rand.New(rand.NewSource(seed)),
	}
}

// Float64 implements Source
func (s *Seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rnd.Float64()
}

// Intn implements Source
func (s *Seeded) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rnd.Intn(n)
}

// Int63n implements Source
func (s *Seeded) Int63n(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rnd.Int63n(n)
}

// NewID implements Source. Ids are version 4 UUIDs drawn from the seeded
// sequence.
func (s *Seeded) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := uuid.NewRandomFromReader(s.rnd)
	if err != nil {
		// the seeded reader never fails
		panic(err)
	}
	return id.String()
}

// Live is a Source seeded from the clock with xid identifiers. It is not
// replayable.
type Live struct {
	*Seeded
}

// NewLive returns a Source for non-reproducible runs.
func NewLive() *Live {
	return &Live{Seeded: NewSeeded(uint64(time.Now().UnixNano()))}
}

// NewID implements Source
func (l *Live) NewID() string {
	return xid.New().String()
}

// XID generates globally unique, sortable ids.
type XID struct{}

// NewID returns a new xid.
func (XID) NewID() string {
	return xid.New().String()
}
