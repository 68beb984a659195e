package geocoding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lightchurch_backend/internal/metrics"
	"lightchurch_backend/platform/logger"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 5 * time.Second

const outcomeDegraded = "degraded"

// Chain queries the primary provider and falls back to the secondary one.
// The primary must return at least one candidate to answer; the secondary
// answers with whatever it returns, including nothing.
type Chain struct {
	primary   Provider
	secondary Provider
	timeout   time.Duration
	log       *logger.Logger
}

func NewChain(primary, secondary Provider, timeout time.Duration, log *logger.Logger) *Chain {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Chain{primary: primary, secondary: secondary, timeout: timeout, log: log}
}

// Lookup runs one chain for query. There are no retries: each provider is
// called at most once.
func (c *Chain) Lookup(ctx context.Context, query string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	candidates, err := c.call(ctx, c.primary, query)
	if err == nil && len(candidates) > 0 {
		metrics.ChainOutcomesTotal.WithLabelValues(c.primary.Name()).Inc()
		return Outcome{Provider: c.primary.Name(), Candidates: candidates}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, ctxErr
	}
	primaryErr := err

	candidates, err = c.call(ctx, c.secondary, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		metrics.ChainOutcomesTotal.WithLabelValues(outcomeDegraded).Inc()
		return Outcome{}, fmt.Errorf("%w: %w", ErrAllProvidersUnavailable, errors.Join(primaryErr, err))
	}

	metrics.ChainOutcomesTotal.WithLabelValues(c.secondary.Name()).Inc()
	return Outcome{Provider: c.secondary.Name(), Candidates: candidates}, nil
}

type searchResult struct {
	candidates []Candidate
	err        error
}

// call bounds one provider call by the chain timeout. A provider that does
// not honor its context is abandoned when the deadline passes.
func (c *Chain) call(ctx context.Context, p Provider, query string) ([]Candidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan searchResult, 1)
	go func() {
		candidates, err := p.Search(callCtx, query)
		done <- searchResult{candidates: candidates, err: err}
	}()

	var res searchResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		res.err = callCtx.Err()
	}

	if res.err != nil {
		res.err = asProviderError(p.Name(), res.err)
	}
	c.log.ProviderCall(p.Name(), len(res.candidates), time.Since(start), res.err)
	return res.candidates, res.err
}

func asProviderError(provider string, err error) error {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return err
	}
	reason := ReasonTransport
	if errors.Is(err, context.DeadlineExceeded) {
		reason = ReasonTimeout
	}
	return &ProviderError{Provider: provider, Reason: reason, Err: err}
}
