// Package places wraps external geocoding. Lookups never fail hard: a
// transport or parse problem degrades to an empty result set or a
// synthesized label, so callers always have something displayable.
package places

import (
	"context"
	"sync"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
)

// Provider is the geocoding contract. An empty Search result is
// indistinguishable from a true zero-result query by design.
type Provider interface {
	Search(ctx context.Context, query string) []models.PlaceResult
	Reverse(ctx context.Context, loc models.Coord) string
}

// Sequencer tags lookups with a monotonically increasing token per logical
// field so that only the most recent request's result wins. A slow early
// response whose token has been superseded must be discarded.
type Sequencer struct {
	mu     sync.Mutex
	latest map[string]uint64
}

func NewSequencer() *Sequencer {
	return &Sequencer{latest: make(map[string]uint64)}
}

// Next issues the token for a new outgoing lookup on the field.
func (s *Sequencer) Next(field string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[field]++
	return s.latest[field]
}

// Current reports whether token is still the latest issued for the field.
func (s *Sequencer) Current(field string, token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[field] == token
}
