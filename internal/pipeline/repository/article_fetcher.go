package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/mauidude/go-readability"
	"github.com/temoto/robotstxt"
)

const fetchUserAgent = "RivalWatchBot/1.0"

// ArticleFetcher downloads an article page and reduces it to readable text.
type ArticleFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

type articleFetcher struct {
	client    *http.Client
	logger    *logger.Logger
	userAgent string

	mu     sync.RWMutex
	robots map[string]*robotstxt.RobotsData
}

// NewArticleFetcher creates an ArticleFetcher that honors robots.txt per
// host.
func NewArticleFetcher(log *logger.Logger) ArticleFetcher {
	return &articleFetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    log,
		userAgent: fetchUserAgent,
		robots:    make(map[string]*robotstxt.RobotsData),
	}
}

// Fetch downloads rawURL and returns the readable article text. Pages a
// host's robots.txt disallows are never fetched.
func (f *articleFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse article URL: %w", err)
	}

	if !f.allowedByRobots(ctx, parsed) {
		f.logger.Warn("Skip article disallowed by robots.txt", logger.StringField("url", rawURL))
		return "", fmt.Errorf("fetch of %s disallowed by robots.txt", parsed.Host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for article: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch article content, status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return extractReadableText(string(body))
}

// extractReadableText runs the readability pass and flattens the surviving
// HTML to plain text.
func extractReadableText(html string) (string, error) {
	doc, err := readability.NewDocument(html)
	if err != nil {
		return "", fmt.Errorf("failed to parse article content: %w", err)
	}
	content := doc.Content()

	docHTML, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(content)))
	if err != nil {
		return "", fmt.Errorf("failed to parse article content: %w", err)
	}

	content = strings.TrimSpace(docHTML.Text())
	content = strings.ReplaceAll(content, "\n", " ")
	content = strings.ReplaceAll(content, "\t", " ")
	content = strings.ReplaceAll(content, "\r", " ")
	content = strings.ReplaceAll(content, "\f", " ")
	return utils.SafeText(content), nil
}

func (f *articleFetcher) allowedByRobots(ctx context.Context, parsed *url.URL) bool {
	data, err := f.robotsData(ctx, parsed)
	if err != nil {
		// Unreachable robots.txt does not block the fetch.
		return true
	}
	return data.TestAgent(parsed.Path, f.userAgent)
}

func (f *articleFetcher) robotsData(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	f.mu.RLock()
	data, ok := f.robots[parsed.Host]
	f.mu.RUnlock()
	if ok {
		return data, nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		data, _ = robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	} else {
		data, err = robotstxt.FromResponse(resp)
		if err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	f.robots[parsed.Host] = data
	f.mu.Unlock()

	return data, nil
}
