package repository

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/config"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/utils"

	"github.com/mmcdole/gofeed"
)

// SignalSearchRepository queries the configured news upstream for raw
// signals matching one watch item.
type SignalSearchRepository interface {
	Search(ctx context.Context, item *entity.WatchItem) ([]dto.SearchItem, error)
}

// rssSignalSearchRepository pulls signals from a fixed set of RSS feeds and
// filters them against the watch item's keywords.
type rssSignalSearchRepository struct {
	cfg     *config.Config
	logger  *logger.Logger
	fetcher ArticleFetcher
}

// NewRSSSignalSearchRepository creates a SignalSearchRepository backed by
// RSS feeds.
func NewRSSSignalSearchRepository(cfg *config.Config, log *logger.Logger, fetcher ArticleFetcher) SignalSearchRepository {
	return &rssSignalSearchRepository{
		cfg:     cfg,
		logger:  log,
		fetcher: fetcher,
	}
}

func (r *rssSignalSearchRepository) Search(ctx context.Context, item *entity.WatchItem) ([]dto.SearchItem, error) {
	var (
		results []dto.SearchItem
		wg      sync.WaitGroup
		mu      sync.Mutex
	)

	cutoff := time.Now().Add(-r.cfg.SignalSearch.TimeWindow)
	maxConcurrent := r.cfg.SignalSearch.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	semaphore := make(chan struct{}, maxConcurrent)

	for _, feedURL := range r.cfg.SignalSearch.Feeds {
		if !utils.ShouldContinue(ctx, r.logger) {
			break
		}
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			items := r.searchFeed(ctx, feedURL, item, cutoff)
			if len(items) == 0 {
				return
			}
			mu.Lock()
			results = append(results, items...)
			mu.Unlock()
		})
	}

	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		if results[i].PublishedAt == nil || results[j].PublishedAt == nil {
			return false
		}
		return results[i].PublishedAt.After(*results[j].PublishedAt)
	})

	return results, nil
}

func (r *rssSignalSearchRepository) searchFeed(ctx context.Context, feedURL string, item *entity.WatchItem, cutoff time.Time) []dto.SearchItem {
	r.logger.Debug("Processing RSS feed", logger.StringField("url", feedURL), logger.StringField("watch_item", item.Name))

	fp := gofeed.NewParser()
	fp.UserAgent = fetchUserAgent
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		r.logger.Error("Failed to parse RSS feed", logger.ErrorField(err), logger.StringField("url", feedURL))
		return nil
	}

	var results []dto.SearchItem
	for _, feedItem := range feed.Items {
		if !utils.ShouldContinue(ctx, r.logger) {
			break
		}
		if feedItem.PublishedParsed == nil || feedItem.PublishedParsed.Before(cutoff) {
			continue
		}
		if !matchesKeywords(item.Keywords, feedItem.Title, feedItem.Description) {
			continue
		}

		rawText := utils.SafeText(feedItem.Description)
		if r.cfg.SignalSearch.FetchArticleContent && r.fetcher != nil {
			if content, err := r.fetcher.Fetch(ctx, feedItem.Link); err != nil {
				r.logger.Warn("Falling back to feed description",
					logger.ErrorField(err),
					logger.StringField("url", feedItem.Link),
				)
			} else {
				rawText = content
			}
		}

		results = append(results, dto.SearchItem{
			Title:       utils.CleanToValidUTF8(feedItem.Title),
			URL:         feedItem.Link,
			RawText:     rawText,
			PublishedAt: feedItem.PublishedParsed,
			SourceName:  sourceNameFor(feed, feedItem),
		})
	}

	return results
}

// matchesKeywords reports whether any keyword appears in any of the texts,
// case-insensitively.
func matchesKeywords(keywords []string, texts ...string) bool {
	for _, text := range texts {
		lowered := strings.ToLower(text)
		for _, keyword := range keywords {
			if keyword == "" {
				continue
			}
			if strings.Contains(lowered, strings.ToLower(keyword)) {
				return true
			}
		}
	}
	return false
}

func sourceNameFor(feed *gofeed.Feed, item *gofeed.Item) string {
	if parsed, err := url.Parse(item.Link); err == nil && parsed.Hostname() != "" {
		return parsed.Hostname()
	}
	return feed.Title
}
