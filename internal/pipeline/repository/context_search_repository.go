package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rivalwatch/internal/pipeline/config"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/resilience"

	"golang.org/x/time/rate"
)

// ContextSearchRepository retrieves background snippets for a query from the
// contextual-search upstream.
type ContextSearchRepository interface {
	TopK(ctx context.Context, query string, k int) ([]dto.ContextSnippet, error)
}

type contextSearchRepository struct {
	cfg            *config.Config
	logger         *logger.Logger
	client         *http.Client
	requestLimiter *rate.Limiter
}

// NewContextSearchRepository creates a ContextSearchRepository.
func NewContextSearchRepository(cfg *config.Config, log *logger.Logger) ContextSearchRepository {
	secondsPerRequest := time.Minute / time.Duration(cfg.ContextSearch.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	return &contextSearchRepository{
		cfg:    cfg,
		logger: log,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		requestLimiter: requestLimiter,
	}
}

func (r *contextSearchRepository) TopK(ctx context.Context, query string, k int) ([]dto.ContextSnippet, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("top_k", strconv.Itoa(k))

	apiURL := fmt.Sprintf("%s/search?%s", strings.TrimRight(r.cfg.ContextSearch.BaseURL, "/"), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create context search request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call context search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("context search returned 429: %w", resilience.ErrRateLimited)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("context search returned status %d", resp.StatusCode)
	}

	var snippets []dto.ContextSnippet
	if err := json.NewDecoder(resp.Body).Decode(&snippets); err != nil {
		return nil, fmt.Errorf("failed to decode context search response: %w", err)
	}

	if len(snippets) > k {
		snippets = snippets[:k]
	}

	r.logger.Debug("Context search",
		logger.StringField("query", query),
		logger.IntField("snippets", len(snippets)),
	)

	return snippets, nil
}
