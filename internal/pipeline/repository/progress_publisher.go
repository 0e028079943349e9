package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/common"
	"rivalwatch/pkg/redis"
)

// ProgressPublisher pushes run progress events to subscribers.
type ProgressPublisher interface {
	Publish(ctx context.Context, event *dto.ProgressEvent) error
}

// NewProgressPublisher creates a ProgressPublisher backed by Redis pub/sub.
func NewProgressPublisher(client *redis.Client) ProgressPublisher {
	return &redisProgressPublisher{
		client: client,
	}
}

type redisProgressPublisher struct {
	client *redis.Client
}

func (p *redisProgressPublisher) Publish(ctx context.Context, event *dto.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}
	return p.client.Publish(ctx, common.RedisChannelPipelineProgress, payload).Err()
}
