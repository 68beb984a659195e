package scheduler

import (
	"context"
	"errors"
	"time"

	"lightchurch_backend/platform/config"
	"lightchurch_backend/platform/redisx"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	geocodeVerifyMaxRetry = 5
	geocodeVerifyTimeout  = 30 * time.Second
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueGeocodeVerify schedules a coordinate check for a church. A check
// already pending for the same church is left in place.
func (c *Client) EnqueueGeocodeVerify(ctx context.Context, churchID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewGeocodeVerifyTask(GeocodeVerifyPayload{ChurchID: churchID.String()})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(geocodeVerifyTaskID(churchID)),
		asynq.MaxRetry(geocodeVerifyMaxRetry),
		asynq.Timeout(geocodeVerifyTimeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(cfg config.RedisConfig) (asynq.RedisClientOpt, error) {
	opt, err := redisx.Options(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
