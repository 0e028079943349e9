package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/config"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/resilience"
	"rivalwatch/pkg/utils"
)

// newsAPISignalSearchRepository queries the newsapi.org everything endpoint.
type newsAPISignalSearchRepository struct {
	cfg    *config.Config
	logger *logger.Logger
	client *http.Client
}

// NewNewsAPISignalSearchRepository creates a SignalSearchRepository backed
// by newsapi.org.
func NewNewsAPISignalSearchRepository(cfg *config.Config, log *logger.Logger) SignalSearchRepository {
	return &newsAPISignalSearchRepository{
		cfg:    cfg,
		logger: log,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (r *newsAPISignalSearchRepository) Search(ctx context.Context, item *entity.WatchItem) ([]dto.SearchItem, error) {
	query := strings.Join(quoteKeywords(item.Keywords), " OR ")
	from := time.Now().Add(-r.cfg.SignalSearch.TimeWindow).UTC().Format(time.RFC3339)

	params := url.Values{}
	params.Set("q", query)
	params.Set("from", from)
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", "50")

	apiURL := fmt.Sprintf("%s/v2/everything?%s", strings.TrimRight(r.cfg.SignalSearch.NewsAPIBaseURL, "/"), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create news API request: %w", err)
	}
	req.Header.Set("X-Api-Key", r.cfg.SignalSearch.NewsAPIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call news API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("news API returned 429: %w", resilience.ErrRateLimited)
	}

	var apiResp dto.NewsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode news API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || apiResp.Status != "ok" {
		return nil, fmt.Errorf("news API error: status %d, code %s: %s", resp.StatusCode, apiResp.Code, apiResp.Message)
	}

	r.logger.Debug("News API search",
		logger.StringField("watch_item", item.Name),
		logger.IntField("total_results", apiResp.TotalResults),
	)

	results := make([]dto.SearchItem, 0, len(apiResp.Articles))
	for _, article := range apiResp.Articles {
		if article.URL == "" || article.Title == "" {
			continue
		}
		rawText := article.Content
		if rawText == "" {
			rawText = article.Description
		}
		results = append(results, dto.SearchItem{
			Title:       utils.CleanToValidUTF8(article.Title),
			URL:         article.URL,
			RawText:     utils.SafeText(rawText),
			PublishedAt: article.PublishedAt,
			SourceName:  article.Source.Name,
		})
	}

	return results, nil
}

// quoteKeywords wraps multi-word keywords in quotes so the upstream treats
// them as phrases.
func quoteKeywords(keywords []string) []string {
	quoted := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(keyword, " ") {
			quoted = append(quoted, fmt.Sprintf("%q", keyword))
		} else {
			quoted = append(quoted, keyword)
		}
	}
	return quoted
}
