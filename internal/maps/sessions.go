package maps

import (
	"context"
	"errors"
	"sync"
	"time"

	"lightchurch_backend/internal/events"
	"lightchurch_backend/internal/maps/resolver"
	"lightchurch_backend/internal/metrics"
	"lightchurch_backend/platform/logger"
	"lightchurch_backend/platform/sse"
	"lightchurch_backend/platform/validator"

	"github.com/google/uuid"
)

const (
	// DefaultSessionTTL is how long an untouched session survives.
	DefaultSessionTTL = 30 * time.Minute

	EventState    = "state"
	EventResolved = "resolved"
)

var (
	ErrSessionNotFound = errors.New("address session not found")
	ErrNothingResolved = errors.New("address session has no resolved address")
)

// Resolved is a confirmed address waiting in a session's hand-off slot.
type Resolved struct {
	Address resolver.ResolvedAddress
	Source  string
}

// Session is one address field backed by its own resolver.
type Session struct {
	ID       uuid.UUID
	resolver *resolver.Resolver

	// op serializes the operations that can emit an address so the
	// hand-off slot records the right source.
	op            sync.Mutex
	pendingSource string

	mu       sync.Mutex
	lastSeen time.Time
	resolved *Resolved
}

func (s *Session) Snapshot() resolver.Snapshot { return s.resolver.Snapshot() }

func (s *Session) SetQuery(query string) error { return s.resolver.SetQuery(query) }

func (s *Session) EnterManual() error { return s.resolver.EnterManual() }

func (s *Session) ExitManual() error { return s.resolver.ExitManual() }

func (s *Session) SetCallerError(message string) { s.resolver.SetCallerError(message) }

func (s *Session) Select(index int) (resolver.ResolvedAddress, error) {
	s.op.Lock()
	defer s.op.Unlock()
	s.pendingSource = events.AddressSourceProvider
	return s.resolver.Select(index)
}

func (s *Session) SubmitManual(input resolver.ManualAddress) (resolver.ResolvedAddress, error) {
	s.op.Lock()
	defer s.op.Unlock()
	s.pendingSource = events.AddressSourceManual
	return s.resolver.SubmitManual(input)
}

// onResolved runs inside Select or SubmitManual, with s.op held.
func (s *Session) onResolved(address resolver.ResolvedAddress) Resolved {
	r := Resolved{Address: address, Source: s.pendingSource}
	s.mu.Lock()
	s.resolved = &r
	s.mu.Unlock()
	return r
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) take() (Resolved, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved == nil {
		return Resolved{}, false
	}
	r := *s.resolved
	s.resolved = nil
	return r, true
}

// SessionOptions configures a Sessions registry.
type SessionOptions struct {
	Debounce  time.Duration
	TTL       time.Duration
	Logger    *logger.Logger
	Validator *validator.Validator
}

// Sessions keeps the live address sessions and expires idle ones.
type Sessions struct {
	chain    resolver.Lookuper
	stream   *sse.Service
	debounce time.Duration
	ttl      time.Duration
	log      *logger.Logger
	val      *validator.Validator
	now      func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewSessions(chain resolver.Lookuper, stream *sse.Service, opts SessionOptions) *Sessions {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Validator == nil {
		opts.Validator = validator.New()
	}
	return &Sessions{
		chain:    chain,
		stream:   stream,
		debounce: opts.Debounce,
		ttl:      opts.TTL,
		log:      opts.Logger,
		val:      opts.Validator,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create opens a session with an optional pre-filled query.
func (r *Sessions) Create(initialQuery string) *Session {
	s := &Session{ID: uuid.New(), lastSeen: r.now()}
	s.resolver = resolver.New(r.chain, resolver.Options{
		Debounce:     r.debounce,
		InitialQuery: initialQuery,
		Logger:       r.log.WithSessionID(s.ID.String()),
		Validator:    r.val,
		OnChange: func(snap resolver.Snapshot) {
			r.publish(s.ID, sse.Event{Type: EventState, Data: snap})
		},
		OnResolved: func(address resolver.ResolvedAddress) {
			resolved := s.onResolved(address)
			metrics.AddressResolvedTotal.WithLabelValues(resolved.Source).Inc()
			r.publish(s.ID, sse.Event{Type: EventResolved, Data: ResolvedResponse{Source: resolved.Source, Address: address}})
		},
	})

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	metrics.AddressSessionsActive.Inc()

	r.log.Debug("address session created", "session_id", s.ID)
	return s
}

// Get returns a live session and marks it as used.
func (r *Sessions) Get(id uuid.UUID) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(r.now())
	return s, nil
}

// Delete tears a session down and disconnects its stream.
func (r *Sessions) Delete(id uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	r.teardown(s)
	return nil
}

// TakeResolved hands the session's last confirmed address to the caller
// exactly once. The registry keeps nothing afterwards.
func (r *Sessions) TakeResolved(id uuid.UUID) (Resolved, error) {
	s, err := r.Get(id)
	if err != nil {
		return Resolved{}, err
	}
	resolved, ok := s.take()
	if !ok {
		return Resolved{}, ErrNothingResolved
	}
	return resolved, nil
}

// SetCallerError pushes a caller validation message into a session.
func (r *Sessions) SetCallerError(id uuid.UUID, message string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	s.SetCallerError(message)
	return nil
}

// Len returns the number of live sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than the TTL.
func (r *Sessions) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		r.teardown(s)
	}
	if len(expired) > 0 {
		r.log.Info("expired address sessions", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps expired sessions until ctx is done, then closes the rest.
func (r *Sessions) Run(ctx context.Context) error {
	interval := r.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Sessions) closeAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		r.teardown(s)
	}
}

func (r *Sessions) teardown(s *Session) {
	s.resolver.Close()
	if r.stream != nil {
		r.stream.CloseTopic(s.ID)
	}
	metrics.AddressSessionsActive.Dec()
}

func (r *Sessions) publish(id uuid.UUID, event sse.Event) {
	if r.stream != nil {
		r.stream.Publish(id, event)
	}
}
