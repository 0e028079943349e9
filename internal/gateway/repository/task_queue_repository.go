package repository

import (
	"context"
	"encoding/json"
	"time"

	pipelinedto "rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/common"

	"github.com/redis/go-redis/v9"
)

// TaskQueueRepository publishes pipeline tasks onto the Redis streams the
// pipeline service consumes.
type TaskQueueRepository interface {
	EnqueueIngestTask(ctx context.Context, payload *pipelinedto.IngestTaskPayload) error
	EnqueueResearchTask(ctx context.Context, payload *pipelinedto.ResearchTaskPayload) error
	// AcquireRunDebounce claims the per-watch-item debounce slot. It reports
	// false when a claim from inside the window is still held.
	AcquireRunDebounce(ctx context.Context, watchItemID uint, window time.Duration) (bool, error)
}

// NewTaskQueueRepository creates a Redis-backed task queue repository.
// streamMaxLen caps stream growth; zero disables trimming.
func NewTaskQueueRepository(client *redis.Client, streamMaxLen int64) TaskQueueRepository {
	return &taskQueueRepository{client: client, streamMaxLen: streamMaxLen}
}

type taskQueueRepository struct {
	client       *redis.Client
	streamMaxLen int64
}

func (r *taskQueueRepository) EnqueueIngestTask(ctx context.Context, payload *pipelinedto.IngestTaskPayload) error {
	return r.enqueue(ctx, common.RedisStreamWatchIngest, payload)
}

func (r *taskQueueRepository) EnqueueResearchTask(ctx context.Context, payload *pipelinedto.ResearchTaskPayload) error {
	return r.enqueue(ctx, common.RedisStreamCardResearch, payload)
}

func (r *taskQueueRepository) enqueue(ctx context.Context, stream string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"payload": data},
		MaxLen: r.streamMaxLen,
	}).Err()
}

func (r *taskQueueRepository) AcquireRunDebounce(ctx context.Context, watchItemID uint, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	key := common.RunDebounceKey(watchItemID)
	return r.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), window).Result()
}
