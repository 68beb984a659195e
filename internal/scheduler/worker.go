package scheduler

import (
	"context"
	"fmt"

	"lightchurch_backend/internal/churches/geocheck"
	"lightchurch_backend/platform/apperr"
	"lightchurch_backend/platform/config"
	"lightchurch_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// GeocodeVerifier runs one coordinate check.
type GeocodeVerifier interface {
	Verify(ctx context.Context, churchID uuid.UUID) (geocheck.Result, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	verifier GeocodeVerifier
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, verifier GeocodeVerifier, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 4
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	return newWorker(server, verifier, log), nil
}

func newWorker(server *asynq.Server, verifier GeocodeVerifier, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		verifier: verifier,
		log:      log,
	}
	mux.HandleFunc(TaskGeocodeVerify, w.handleGeocodeVerify)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleGeocodeVerify(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseGeocodeVerifyPayload(task)
	if err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	churchID, err := uuid.Parse(payload.ChurchID)
	if err != nil {
		return fmt.Errorf("church id %q: %v: %w", payload.ChurchID, err, asynq.SkipRetry)
	}

	result, err := w.verifier.Verify(ctx, churchID)
	if apperr.Is(err, apperr.KindNotFound) {
		w.log.Info("church removed before geocode check", "church_id", churchID)
		return nil
	}
	if err != nil {
		return err
	}

	if result.DriftMeters != nil {
		w.log.Info("geocode check recorded", "church_id", churchID, "drift_m", *result.DriftMeters)
	}
	return nil
}
