package queue

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T) *Consumer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	consumer, err := NewConsumer("redis://localhost:6379/0", "test_intake", logger)
	require.NoError(t, err)

	return consumer
}

func TestNewConsumer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	tests := []struct {
		name        string
		redisURL    string
		queueName   string
		expectError bool
		errorMsg    string
	}{
		{
			name:      "valid url and queue",
			redisURL:  "redis://localhost:6379/0",
			queueName: "intake",
		},
		{
			name:      "queue defaults when empty",
			redisURL:  "redis://localhost:6379",
			queueName: "",
		},
		{
			name:        "missing url",
			redisURL:    "",
			queueName:   "intake",
			expectError: true,
			errorMsg:    "redis URL is required",
		},
		{
			name:        "malformed url",
			redisURL:    "localhost:6379",
			queueName:   "intake",
			expectError: true,
			errorMsg:    "invalid redis URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumer, err := NewConsumer(tt.redisURL, tt.queueName, logger)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, consumer)

			if tt.queueName == "" {
				assert.Equal(t, DefaultQueue, consumer.queue)
			} else {
				assert.Equal(t, tt.queueName, consumer.queue)
			}
		})
	}
}

func TestConsumer_Decode(t *testing.T) {
	consumer := newTestConsumer(t)

	tests := []struct {
		name        string
		payload     string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid import request",
			payload: `{
				"tenant_id": "tenant-a",
				"work_order_id": "wo-1",
				"target_status": "DISPATCHED",
				"actor_id": "import-job-7",
				"trigger_source": "import",
				"idempotency_key": "import-7-row-12"
			}`,
		},
		{
			name: "valid bulk request with notes",
			payload: `{
				"tenant_id": "tenant-a",
				"work_order_id": "wo-2",
				"target_status": "CANCELLED",
				"actor_id": "supervisor-3",
				"trigger_source": "bulk",
				"notes": "cancelled with order batch 41",
				"idempotency_key": "bulk-41-wo-2"
			}`,
		},
		{
			name:        "not json",
			payload:     `{nope`,
			expectError: true,
			errorMsg:    "invalid JSON",
		},
		{
			name: "missing idempotency key",
			payload: `{
				"tenant_id": "tenant-a",
				"work_order_id": "wo-1",
				"target_status": "DISPATCHED",
				"actor_id": "import-job-7",
				"trigger_source": "import"
			}`,
			expectError: true,
			errorMsg:    "invalid intake request",
		},
		{
			name: "trigger source outside the queue set",
			payload: `{
				"tenant_id": "tenant-a",
				"work_order_id": "wo-1",
				"target_status": "DISPATCHED",
				"actor_id": "operator-1",
				"trigger_source": "manual",
				"idempotency_key": "k-1"
			}`,
			expectError: true,
			errorMsg:    "invalid intake request",
		},
		{
			name: "missing work order",
			payload: `{
				"tenant_id": "tenant-a",
				"target_status": "DISPATCHED",
				"actor_id": "import-job-7",
				"trigger_source": "import",
				"idempotency_key": "k-2"
			}`,
			expectError: true,
			errorMsg:    "invalid intake request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := consumer.decode([]byte(tt.payload))

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)

				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, req.TenantID)
			assert.NotEmpty(t, req.IdempotencyKey)
		})
	}
}
