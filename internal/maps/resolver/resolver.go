package resolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"lightchurch_backend/internal/geocoding"
	"lightchurch_backend/platform/apperr"
	"lightchurch_backend/platform/logger"
	"lightchurch_backend/platform/validator"
)

// DefaultDebounce is the quiet period after the last query change before a
// lookup starts.
const DefaultDebounce = 300 * time.Millisecond

// Lookuper runs one provider chain for a query.
type Lookuper interface {
	Lookup(ctx context.Context, query string) (geocoding.Outcome, error)
}

// Options configures a Resolver.
type Options struct {
	Debounce time.Duration
	// OnResolved receives each confirmed address, exactly once per
	// selection or successful manual submit.
	OnResolved func(ResolvedAddress)
	// OnChange receives a snapshot after every visible change.
	OnChange func(Snapshot)
	// InitialQuery pre-fills the query without starting a lookup.
	InitialQuery string
	Logger       *logger.Logger
	Validator    *validator.Validator
}

// Resolver is one address field's state machine. It is safe for concurrent
// use. Callbacks run outside the state lock, one at a time and in the order
// of the changes they report; they must not call back into the
// same Resolver synchronously.
type Resolver struct {
	chain      Lookuper
	debounce   time.Duration
	onResolved func(ResolvedAddress)
	onChange   func(Snapshot)
	log        *logger.Logger
	validate   *validator.Validator

	// lookups run under ctx; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	emitMu sync.Mutex

	mu          sync.Mutex
	closed      bool
	state       State
	query       string
	suggestions []geocoding.Candidate
	noResults   bool
	warning     string
	callerError string
	manual      *ManualAddress
	fieldErrors map[string]string
	// generation identifies the current request; results carrying an
	// older generation are discarded.
	generation uint64
	revision   uint64
	timer      *time.Timer
}

func New(chain Lookuper, opts Options) *Resolver {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Validator == nil {
		opts.Validator = validator.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		chain:      chain,
		debounce:   opts.Debounce,
		onResolved: opts.OnResolved,
		onChange:   opts.OnChange,
		log:        opts.Logger,
		validate:   opts.Validator,
		ctx:        ctx,
		cancel:     cancel,
		state:      StateIdle,
		query:      opts.InitialQuery,
	}
}

// SetQuery records a query change. It supersedes any pending debounce and
// any outstanding lookup, then either settles in Idle (short query) or arms
// the debounce timer.
func (r *Resolver) SetQuery(query string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.state == StateManualEntry {
		r.mu.Unlock()
		return ErrManualEntryActive
	}

	gen := r.supersede()
	r.query = query
	r.warning = ""

	normalized := geocoding.NormalizeQuery(query)
	if !geocoding.IsSearchable(normalized) {
		r.state = StateIdle
	} else {
		r.state = StateSearching
		r.timer = time.AfterFunc(r.debounce, func() { r.fire(gen, normalized) })
	}
	r.emit(nil)
	return nil
}

// Select confirms the suggestion at index.
func (r *Resolver) Select(index int) (ResolvedAddress, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ResolvedAddress{}, ErrClosed
	}
	if r.state != StateSuggestionsShown || len(r.suggestions) == 0 {
		r.mu.Unlock()
		return ResolvedAddress{}, ErrNoSuggestions
	}
	if index < 0 || index >= len(r.suggestions) {
		r.mu.Unlock()
		return ResolvedAddress{}, ErrInvalidSelection
	}

	chosen := r.suggestions[index]
	resolved := FromCandidate(chosen)
	r.supersede()
	r.query = chosen.DisplayLabel
	r.state = StateIdle
	r.emit(&resolved)
	return resolved, nil
}

// EnterManual switches to manual entry from any automatic state.
func (r *Resolver) EnterManual() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.state == StateManualEntry {
		r.mu.Unlock()
		return nil
	}

	r.supersede()
	r.warning = ""
	r.manual = &ManualAddress{}
	r.fieldErrors = nil
	r.state = StateManualEntry
	r.emit(nil)
	return nil
}

// ExitManual discards the manual values and returns to automatic mode.
func (r *Resolver) ExitManual() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.state != StateManualEntry {
		r.mu.Unlock()
		return ErrNotManualEntry
	}

	r.supersede()
	r.manual = nil
	r.fieldErrors = nil
	r.state = StateIdle
	r.emit(nil)
	return nil
}

// SubmitManual validates every field. Any failure blocks the submission and
// is returned as a validation error detailing each field; the resolver stays
// in manual entry either way.
func (r *Resolver) SubmitManual(input ManualAddress) (ResolvedAddress, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ResolvedAddress{}, ErrClosed
	}
	if r.state != StateManualEntry {
		r.mu.Unlock()
		return ResolvedAddress{}, ErrNotManualEntry
	}

	input = input.Normalize()
	r.manual = &input
	r.fieldErrors = input.Validate(r.validate)
	if len(r.fieldErrors) > 0 {
		details := copyFields(r.fieldErrors)
		r.emit(nil)
		return ResolvedAddress{}, apperr.Validation("invalid address").WithDetails(details)
	}

	resolved := input.Resolved()
	r.emit(&resolved)
	return resolved, nil
}

// SetCallerError shows a message from the caller verbatim next to the
// field. An empty message clears it. The state does not change.
func (r *Resolver) SetCallerError(message string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.callerError = message
	r.emit(nil)
}

// Snapshot returns a copy of the visible state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Close stops the debounce timer and invalidates outstanding lookups.
// Later calls are no-ops or return ErrClosed.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.supersede()
	r.mu.Unlock()
	r.cancel()
}

// supersede stops the timer, bumps the generation and drops suggestions.
// Caller holds r.mu.
func (r *Resolver) supersede() uint64 {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.generation++
	r.suggestions = nil
	r.noResults = false
	return r.generation
}

func (r *Resolver) fire(gen uint64, query string) {
	r.mu.Lock()
	if r.closed || gen != r.generation {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.mu.Unlock()

	outcome, err := r.chain.Lookup(r.ctx, query)
	r.apply(gen, outcome, err)
}

func (r *Resolver) apply(gen uint64, outcome geocoding.Outcome, err error) {
	r.mu.Lock()
	if r.closed || gen != r.generation {
		r.mu.Unlock()
		r.log.Debug("discarding stale lookup", "generation", gen)
		return
	}

	switch {
	case err == nil:
		r.suggestions = outcome.Candidates
		r.noResults = len(outcome.Candidates) == 0
		r.state = StateSuggestionsShown
	case errors.Is(err, context.Canceled):
		r.mu.Unlock()
		return
	default:
		if !errors.Is(err, geocoding.ErrAllProvidersUnavailable) {
			r.log.Warn("address lookup failed", "error", err)
		}
		r.warning = degradedWarning
		r.state = StateDegraded
	}
	r.emit(nil)
}

// emit snapshots the state, releases r.mu and runs the callbacks in order.
// Caller holds r.mu.
func (r *Resolver) emit(resolved *ResolvedAddress) {
	r.revision++
	snap := r.snapshotLocked()
	r.emitMu.Lock()
	r.mu.Unlock()
	defer r.emitMu.Unlock()

	if resolved != nil && r.onResolved != nil {
		r.onResolved(*resolved)
	}
	if r.onChange != nil {
		r.onChange(snap)
	}
}

func (r *Resolver) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:       r.state,
		Query:       r.query,
		Suggestions: append(make([]geocoding.Candidate, 0, len(r.suggestions)), r.suggestions...),
		NoResults:   r.noResults,
		Warning:     r.warning,
		CallerError: r.callerError,
		FieldErrors: copyFields(r.fieldErrors),
		Generation:  r.generation,
		Revision:    r.revision,
	}
	if r.manual != nil {
		manual := *r.manual
		snap.Manual = &manual
	}
	return snap
}

func copyFields(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
