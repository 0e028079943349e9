package dto

// ResearchRequest describes one deep-research synthesis job.
type ResearchRequest struct {
	CardSummary   string   `json:"card_summary"`
	EventCategory string   `json:"event_category"`
	WatchItemName string   `json:"watch_item_name"`
	Keywords      []string `json:"keywords"`
	SourceTarget  int      `json:"source_target"`
}

// ResearchSection is one section of a deep-research report.
type ResearchSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// DeepResearchResult is the payload returned by the deep-synthesis upstream.
type DeepResearchResult struct {
	Sections    []ResearchSection `json:"sections"`
	SourceCount int               `json:"source_count"`
	ReportBody  string            `json:"report_body"`
}
