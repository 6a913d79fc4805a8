package quote

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/model"
)

// DefaultTTL bounds how long a stored quote stays executable. Provider quotes
// embed pricing and a transaction payload that go stale; ten minutes is
// already generous for most venues.
const DefaultTTL = 10 * time.Minute

const defaultSweepInterval = time.Minute

type entry struct {
	quote     model.Quote
	expiresAt time.Time
}

// Store holds quotes between the quoting call and the execution call. Expiry
// is enforced both passively on Get and by a background sweep, so an
// abandoned quote never outlives its TTL by more than the sweep interval.
type Store struct {
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	log           *logrus.Entry

	mu      sync.Mutex
	entries map[string]entry

	stopOnce sync.Once
	stop     chan struct{}
}

type StoreOption func(*Store)

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithSweepInterval(interval time.Duration) StoreOption {
	return func(s *Store) {
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

func NewStore(log *logrus.Entry, opts ...StoreOption) *Store {
	s := &Store{
		ttl:           DefaultTTL,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		log:           log,
		entries:       make(map[string]entry),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the background sweep. Safe to skip in tests; Get enforces
// expiry on its own.
func (s *Store) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Put assigns the quote a fresh id, records it, and returns the stored copy.
func (s *Store) Put(quote model.Quote) model.Quote {
	quote.QuoteID = uuid.NewString()
	s.mu.Lock()
	s.entries[quote.QuoteID] = entry{
		quote:     quote,
		expiresAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()
	return quote
}

// Get returns the stored quote. A quote past its TTL is removed and reported
// as expired; an unknown id is reported as such. Both are TOOL_EXECUTION
// failures because the caller supplied an unusable quote id.
func (s *Store) Get(quoteID string) (model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[quoteID]
	if !ok {
		return model.Quote{}, apperr.New(apperr.StepToolExecution, "quote not found").
			WithDetail("quote_id", quoteID)
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, quoteID)
		return model.Quote{}, apperr.New(apperr.StepToolExecution, "quote has expired, request a new quote").
			WithDetail("quote_id", quoteID)
	}
	return e.quote, nil
}

// Remove drops a quote once it has been executed.
func (s *Store) Remove(quoteID string) {
	s.mu.Lock()
	delete(s.entries, quoteID)
	s.mu.Unlock()
}

// Len reports the live entry count, counting entries the sweep has not yet
// collected.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) sweep() {
	now := s.now()
	s.mu.Lock()
	removed := 0
	for quoteID, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, quoteID)
			removed++
		}
	}
	remaining := len(s.entries)
	s.mu.Unlock()
	if removed > 0 && s.log != nil {
		s.log.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": remaining,
		}).Debug("swept expired quotes")
	}
}
