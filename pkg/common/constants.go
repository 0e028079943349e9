package common

import "strconv"

const (
	RedisStreamWatchIngest  = "pipeline.watch.ingest"
	RedisStreamCardResearch = "pipeline.card.research"

	RedisStreamGroup    = "pipeline-group"
	RedisStreamConsumer = "pipeline-consumer"

	RedisChannelPipelineProgress = "pipeline.progress"

	RedisKeyRunDebouncePrefix = "pipeline:run:debounce:"
)

// RunDebounceKey returns the debounce key guarding run requests for one
// watch item.
func RunDebounceKey(watchItemID uint) string {
	return RedisKeyRunDebouncePrefix + strconv.FormatUint(uint64(watchItemID), 10)
}

// Upstream service keys used by the resilience wrapper. Each key carries its
// own circuit breaker, retry policy and cache class.
const (
	ServiceSignalSearch  = "signal_search"
	ServiceContextSearch = "context_search"
	ServiceExtraction    = "extraction"
	ServiceDeepResearch  = "deep_research"
)
