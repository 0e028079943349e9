package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"rivalwatch/internal/pipeline/config"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/internal/pipeline/service"
	"rivalwatch/pkg/common"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/telegram"
	"rivalwatch/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const (
	defaultStreamTimeout   = 10 * time.Minute
	defaultRetryInterval   = time.Minute
	defaultMaxIdleDuration = 15 * time.Minute
	defaultMaxRetry        = 3
)

// RedisConsumer reads pipeline tasks from the Redis streams and dispatches
// them to the run and research services. Unacknowledged messages are
// reclaimed by the retry tickers until their retry budget runs out.
type RedisConsumer struct {
	cfg             *config.Config
	redisClient     *redis.Client
	pipelineService *service.PipelineService
	researcher      *service.Researcher
	telegramBot     telegram.Notifier
	logger          *logger.Logger
	stopChan        chan struct{}
	wg              sync.WaitGroup
}

// NewRedisConsumer creates a new RedisConsumer. telegramBot may be nil.
func NewRedisConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	pipelineService *service.PipelineService,
	researcher *service.Researcher,
	telegramBot telegram.Notifier,
	log *logger.Logger,
) *RedisConsumer {
	return &RedisConsumer{
		cfg:             cfg,
		redisClient:     redisClient,
		pipelineService: pipelineService,
		researcher:      researcher,
		telegramBot:     telegramBot,
		logger:          log,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the consumer's task processing loops.
func (c *RedisConsumer) Start(ctx context.Context) {
	c.logger.Info("Redis consumer started")
	c.registerStreamHandler(ctx, c.processIngestTask, common.RedisStreamWatchIngest, c.ingestTimeout())
	c.registerStreamHandler(ctx, c.processResearchTask, common.RedisStreamCardResearch, c.researchTimeout())

	c.registerTickerHandler(ctx, c.retryTask(common.RedisStreamWatchIngest, c.handleIngestPayload), c.retryInterval(), c.ingestTimeout(), common.RedisStreamWatchIngest+"-retry")
	c.registerTickerHandler(ctx, c.retryTask(common.RedisStreamCardResearch, c.handleResearchPayload), c.retryInterval(), c.researchTimeout(), common.RedisStreamCardResearch+"-retry")
}

// Stop gracefully shuts down the consumer.
func (c *RedisConsumer) Stop() {
	close(c.stopChan)
	c.wg.Wait()
	c.logger.Info("Redis consumer stopped")
}

func (c *RedisConsumer) registerStreamHandler(ctx context.Context, fn func(ctx context.Context), streamName string, timeout time.Duration) {
	c.logger.Info("Registering stream handler", logger.StringField("stream", streamName))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Redis consumer stopping due to context cancellation")
				return
			case <-c.stopChan:
				c.logger.Info("Redis consumer stopping")
				return
			default:
				ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
				fn(ctxTimeout)
				cancel()
			}
		}
	})
}

func (c *RedisConsumer) registerTickerHandler(ctx context.Context, fn func(ctx context.Context), interval time.Duration, timeout time.Duration, name string) {
	c.logger.Info("Registering ticker handler",
		logger.StringField("name", name),
		logger.DurationField("interval", interval),
		logger.DurationField("timeout", timeout))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
				fn(ctxTimeout)
				cancel()
			case <-ctx.Done():
				c.logger.Info("Ticker handler stopping due to context cancellation", logger.StringField("name", name))
				return
			case <-c.stopChan:
				c.logger.Info("Ticker handler stopping", logger.StringField("name", name))
				return
			}
		}
	})
}

func (c *RedisConsumer) processIngestTask(ctx context.Context) {
	c.processStreamMessage(ctx, common.RedisStreamWatchIngest, c.handleIngestPayload)
}

func (c *RedisConsumer) processResearchTask(ctx context.Context) {
	c.processStreamMessage(ctx, common.RedisStreamCardResearch, c.handleResearchPayload)
}

func (c *RedisConsumer) handleIngestPayload(ctx context.Context, raw string) error {
	var task dto.IngestTaskPayload
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return fmt.Errorf("failed to unmarshal ingest task: %w", err)
	}
	return c.pipelineService.ProcessRun(ctx, &task)
}

func (c *RedisConsumer) handleResearchPayload(ctx context.Context, raw string) error {
	var task dto.ResearchTaskPayload
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return fmt.Errorf("failed to unmarshal research task: %w", err)
	}
	return c.researcher.Generate(ctx, &task)
}

// processStreamMessage reads at most one new message from the stream and
// runs it through handle. Failed messages stay pending so the retry ticker
// can reclaim them.
func (c *RedisConsumer) processStreamMessage(ctx context.Context, streamName string, handle func(ctx context.Context, raw string) error) {
	streams, err := c.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{streamName, ">"}, // ">" means only new messages
		Count:    1,
		Block:    2 * time.Second, // Block briefly to allow graceful shutdown
	}).Result()
	if err != nil {
		// Context cancellation and redis.Nil are expected during shutdown
		// and idle periods.
		if err == context.Canceled || err == redis.Nil {
			return
		}
		c.logger.Error("Failed to read from stream",
			logger.StringField("stream", streamName),
			logger.ErrorField(err))
		return
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return
	}
	message := streams[0].Messages[0]

	raw, ok := message.Values["payload"].(string)
	if !ok {
		c.logger.Error("field 'payload' not found or not a string in stream message",
			logger.StringField("stream", streamName),
			logger.StringField("message_id", message.ID))
		// Nothing to retry; drop the malformed message.
		c.ackNDel(ctx, streamName, message.ID)
		return
	}

	if err := handle(ctx, raw); err != nil {
		c.logger.Error("Failed to process stream message",
			logger.StringField("stream", streamName),
			logger.StringField("message_id", message.ID),
			logger.ErrorField(err))
		return
	}
	c.ackNDel(ctx, streamName, message.ID)
}

// retryTask builds the ticker handler that reclaims messages idle past the
// configured threshold and reprocesses them, dropping any message whose
// retry budget is exhausted.
func (c *RedisConsumer) retryTask(streamName string, handle func(ctx context.Context, raw string) error) func(ctx context.Context) {
	return func(ctx context.Context) {
		msgs, _, err := c.redisClient.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   streamName,
			Group:    common.RedisStreamGroup,
			Consumer: common.RedisStreamConsumer + "-retry",
			MinIdle:  c.maxIdleDuration(),
			Start:    "0",
			Count:    1,
		}).Result()
		if err != nil {
			if err == context.Canceled || err == redis.Nil {
				return
			}
			c.logger.Error("Failed to claim pending message",
				logger.StringField("stream", streamName),
				logger.ErrorField(err))
			return
		}
		if len(msgs) == 0 {
			return
		}
		msg := msgs[0]

		pendingInfo, err := c.redisClient.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: streamName,
			Group:  common.RedisStreamGroup,
			Start:  msg.ID,
			End:    msg.ID,
			Count:  1,
		}).Result()
		if err != nil {
			c.logger.Error("Failed to get pending info",
				logger.StringField("stream", streamName),
				logger.ErrorField(err))
			return
		}
		if len(pendingInfo) == 0 {
			c.logger.Warn("pending msg not found, but exists on xautoclaim",
				logger.StringField("stream", streamName),
				logger.StringField("message_id", msg.ID))
			return
		}

		raw, ok := msg.Values["payload"].(string)
		if !ok {
			c.logger.Error("field 'payload' not found or not a string in stream message",
				logger.StringField("stream", streamName),
				logger.StringField("message_id", msg.ID))
			c.ackNDel(ctx, streamName, msg.ID)
			return
		}

		if pendingInfo[0].RetryCount >= int64(c.maxRetry()) {
			c.logger.Error("pending msg retry count exceeded",
				logger.StringField("stream", streamName),
				logger.StringField("message_id", msg.ID),
				logger.IntField("retry_count", int(pendingInfo[0].RetryCount)),
				logger.IntField("max_retry", c.maxRetry()),
			)
			if c.telegramBot != nil {
				alert := telegram.FormatErrorAlertMessage(time.Now(), "pipeline task retry count exceeded", fmt.Sprintf("stream %s", streamName), raw)
				if err := c.telegramBot.SendMessage(alert); err != nil {
					c.logger.Error("Failed to send retry exceeded alert", logger.ErrorField(err))
				}
			}
			c.ackNDel(ctx, streamName, msg.ID)
			return
		}

		if err := handle(ctx, raw); err != nil {
			c.logger.Error("Failed to process reclaimed message",
				logger.StringField("stream", streamName),
				logger.StringField("message_id", msg.ID),
				logger.ErrorField(err))
			return
		}
		c.ackNDel(ctx, streamName, msg.ID)
		c.logger.Info("Reclaimed message processed successfully",
			logger.StringField("stream", streamName),
			logger.StringField("message_id", msg.ID))
	}
}

func (c *RedisConsumer) ackNDel(ctx context.Context, streamName, messageID string) {
	if err := c.redisClient.XAck(ctx, streamName, common.RedisStreamGroup, messageID).Err(); err != nil {
		c.logger.Error("Failed to acknowledge stream message",
			logger.StringField("stream", streamName),
			logger.StringField("message_id", messageID),
			logger.ErrorField(err))
		return
	}
	if err := c.redisClient.XDel(ctx, streamName, messageID).Err(); err != nil {
		c.logger.Error("Failed to delete stream message",
			logger.StringField("stream", streamName),
			logger.StringField("message_id", messageID),
			logger.ErrorField(err))
	}
}

func (c *RedisConsumer) ingestTimeout() time.Duration {
	if c.cfg.Pipeline.RedisStreamIngestTimeout > 0 {
		return c.cfg.Pipeline.RedisStreamIngestTimeout
	}
	return defaultStreamTimeout
}

func (c *RedisConsumer) researchTimeout() time.Duration {
	if c.cfg.Pipeline.RedisStreamResearchTimeout > 0 {
		return c.cfg.Pipeline.RedisStreamResearchTimeout
	}
	return defaultStreamTimeout
}

func (c *RedisConsumer) retryInterval() time.Duration {
	if c.cfg.Pipeline.RedisStreamRetryInterval > 0 {
		return c.cfg.Pipeline.RedisStreamRetryInterval
	}
	return defaultRetryInterval
}

func (c *RedisConsumer) maxIdleDuration() time.Duration {
	if c.cfg.Pipeline.RedisStreamMaxIdleDuration > 0 {
		return c.cfg.Pipeline.RedisStreamMaxIdleDuration
	}
	return defaultMaxIdleDuration
}

func (c *RedisConsumer) maxRetry() int {
	if c.cfg.Pipeline.RedisStreamMaxRetry > 0 {
		return c.cfg.Pipeline.RedisStreamMaxRetry
	}
	return defaultMaxRetry
}
