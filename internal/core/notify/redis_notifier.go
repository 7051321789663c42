package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okonkwo-dev/Ingesta/internal/core"
	"github.com/okonkwo-dev/Ingesta/internal/models"
)

// RedisNotifier publishes job-created events so idle workers can wake up
// immediately instead of waiting for their next poll. Delivery is best
// effort: the job row in Postgres is the source of truth either way.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

var _ core.JobNotifier = (*RedisNotifier)(nil)

func NewRedisNotifier(ctx context.Context, addr, channel string) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisNotifier{client: client, channel: channel}, nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// jobCreatedEvent is the wire shape handed to workers. It carries ids only;
// workers load the full job row themselves.
type jobCreatedEvent struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
	JobType    string `json:"job_type"`
	QueueName  string `json:"queue_name"`
}

func (n *RedisNotifier) NotifyJobCreated(ctx context.Context, job *models.ProcessingJob) error {
	payload, err := json.Marshal(jobCreatedEvent{
		JobID:      job.ID,
		DocumentID: job.DocumentID,
		UserID:     job.UserID,
		JobType:    job.JobType.String(),
		QueueName:  job.QueueName,
	})
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish job event: %w", err)
	}
	return nil
}
