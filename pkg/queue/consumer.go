// Package queue provides the Redis-backed intake queue for bulk and import
// transitions. The CSV-import and bulk-action collaborators push one JSON
// request per transition onto a Redis list; the worker pops them and executes
// each through the same engine path as the API.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	redis "github.com/redis/go-redis/v9"
)

// DefaultQueue is the list the import/bulk producers push to unless
// configured otherwise.
const DefaultQueue = "workflow:transitions"

const popTimeout = 1 * time.Second

// Request is one queued transition. Producers are trusted processes, but a
// malformed entry must not wedge the queue: invalid requests are logged and
// dropped, and the producer owns any retry.
type Request struct {
	TenantID       string `json:"tenant_id"        validate:"required"`
	WorkOrderID    string `json:"work_order_id"    validate:"required"`
	TargetStatus   string `json:"target_status"    validate:"required"`
	ActorID        string `json:"actor_id"         validate:"required"`
	TriggerSource  string `json:"trigger_source"   validate:"required,oneof=bulk import"`
	Notes          string `json:"notes,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"required"`
}

// Handler executes one decoded intake request. A returned error is logged;
// the message is not requeued.
type Handler func(ctx context.Context, req Request) error

// Consumer pops intake requests off a Redis list and feeds them to the
// handler one at a time, preserving the producer's per-work-order ordering.
type Consumer struct {
	client redis.UniversalClient
	queue  string
	logger *slog.Logger

	handler  Handler
	validate *validator.Validate
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewConsumer connects to Redis using a redis:// URL. The queue name defaults
// to DefaultQueue when empty.
func NewConsumer(redisURL, queueName string, logger *slog.Logger) (*Consumer, error) {
	if redisURL == "" {
		return nil, errors.New("redis URL is required")
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if queueName == "" {
		queueName = DefaultQueue
	}

	return &Consumer{
		client:   redis.NewClient(options),
		queue:    queueName,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		stopCh:   make(chan struct{}),
		logger: logger.With(
			"module", "intake_queue",
			"queue", queueName,
		),
	}, nil
}

// Start verifies the connection and begins consuming until Stop or context
// cancellation.
func (c *Consumer) Start(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("intake handler is required")
	}

	c.handler = handler

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.client.Ping(pingCtx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.logger.InfoContext(ctx, "Starting intake queue consumer")

	c.wg.Add(1)

	go c.consume(ctx)

	return nil
}

func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			c.logger.InfoContext(ctx, "Intake queue consumer stopped")

			return
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Context cancelled, stopping intake queue consumer")

			return
		default:
			err := c.processMessage(ctx)
			if err != nil {
				c.logger.ErrorContext(ctx, "Error processing intake message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context) error {
	result, err := c.client.BLPop(ctx, popTimeout, c.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to pop intake message: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	req, err := c.decode([]byte(result[1]))
	if err != nil {
		// Dropped on purpose: requeueing a bad payload would loop forever.
		c.logger.WarnContext(ctx, "Dropping malformed intake message", "error", err)

		return nil
	}

	err = c.handler(ctx, req)
	if err != nil {
		c.logger.WarnContext(ctx, "Intake request not executed",
			"tenant_id", req.TenantID,
			"work_order_id", req.WorkOrderID,
			"target_status", req.TargetStatus,
			"error", err,
		)
	}

	return nil
}

func (c *Consumer) decode(payload []byte) (Request, error) {
	var req Request

	err := json.Unmarshal(payload, &req)
	if err != nil {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}

	err = c.validate.Struct(req)
	if err != nil {
		return req, fmt.Errorf("invalid intake request: %w", err)
	}

	return req, nil
}

// Stop drains the consumer loop and closes the Redis connection.
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Stopping intake queue consumer")

	close(c.stopCh)
	c.wg.Wait()

	if c.client != nil {
		err := c.client.Close()
		if err != nil {
			return fmt.Errorf("failed to close Redis client: %w", err)
		}
	}

	return nil
}
