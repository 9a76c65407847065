package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// Sequencer hands out increasing sequence numbers so that only the reply to
// the most recent message of a session is delivered. Numbers come from one
// process-wide counter and never repeat, so a request issued before its
// session expired cannot collide with one issued after. The cache only
// keeps the latest number per session.
type Sequencer struct {
	mu      sync.Mutex
	counter atomic.Uint64
	cache   *cache.Cache
}

func NewSequencer(ttl time.Duration) *Sequencer {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Sequencer{cache: cache.New(ttl, 2*ttl)}
}

// Next starts a new request for session and returns its sequence number.
func (s *Sequencer) Next(session string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.counter.Add(1)
	s.cache.SetDefault(session, seq)
	return seq
}

// IsLatest reports whether seq is still the newest request of session.
// A session that expired meanwhile counts as latest.
func (s *Sequencer) IsLatest(session string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(session)
	if !ok {
		return true
	}
	return v.(uint64) == seq
}
