package dto

import "time"

// SearchItem is one raw result from the signal-search upstream, before
// dedup and credibility tiering.
type SearchItem struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	RawText     string     `json:"raw_text"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	SourceName  string     `json:"source_name"`
}

// ContextSnippet is one contextual-search result attached to a signal during
// enrichment.
type ContextSnippet struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// NewsAPIResponse mirrors the newsapi.org everything-endpoint payload.
type NewsAPIResponse struct {
	Status       string           `json:"status"`
	TotalResults int              `json:"totalResults"`
	Articles     []NewsAPIArticle `json:"articles"`
	Code         string           `json:"code,omitempty"`
	Message      string           `json:"message,omitempty"`
}

// NewsAPIArticle is one article entry in a NewsAPIResponse.
type NewsAPIArticle struct {
	Source      NewsAPISource `json:"source"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	URL         string        `json:"url"`
	PublishedAt *time.Time    `json:"publishedAt,omitempty"`
	Content     string        `json:"content"`
}

// NewsAPISource identifies the publisher of a NewsAPIArticle.
type NewsAPISource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
