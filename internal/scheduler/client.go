package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"techo_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	dateLayout        = "2006-01-02"
	conversionRetries = 5
	digestRetention   = 36 * time.Hour
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
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

// EnqueuePlanConversion schedules the PDF rendition of a drawing. A plan
// already waiting in the queue is not enqueued twice.
func (c *Client) EnqueuePlanConversion(ctx context.Context, planID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	task, err := NewPlanConversionTask(PlanConversionPayload{PlanID: planID.String()})
	if err != nil {
		return err
	}
	return c.enqueueOnce(ctx, task, "plan-convert:"+planID.String(), asynq.MaxRetry(conversionRetries))
}

// EnqueueVisitDigest schedules one digest per technician and day, even when
// several workers sweep at the same time.
func (c *Client) EnqueueVisitDigest(ctx context.Context, technicianID uuid.UUID, day time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}
	date := day.UTC().Format(dateLayout)
	task, err := NewVisitDigestTask(VisitDigestPayload{TechnicianID: technicianID.String(), Date: date})
	if err != nil {
		return err
	}
	return c.enqueueOnce(ctx, task, "visit-digest:"+technicianID.String()+":"+date, asynq.Retention(digestRetention))
}

// enqueueOnce treats a task already known under id as enqueued.
func (c *Client) enqueueOnce(ctx context.Context, task *asynq.Task, id string, opts ...asynq.Option) error {
	opts = append([]asynq.Option{asynq.Queue(c.queue), asynq.TaskID(id)}, opts...)
	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
