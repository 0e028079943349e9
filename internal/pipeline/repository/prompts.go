package repository

import (
	"fmt"
	"strings"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/utils"
)

const signalTextLimit = 6000

// BuildExtractImpactPrompt renders the structured-extraction prompt for one
// (watch item, signal) pair. The JSON skeleton in the template is the closed
// schema the pipeline validates against, so every enum here must stay in sync
// with the entity package.
func BuildExtractImpactPrompt(req *dto.ExtractionRequest) string {
	var b strings.Builder

	if req.CorrectiveNote != "" {
		b.WriteString("IMPORTANT: your previous answer was rejected. ")
		b.WriteString(req.CorrectiveNote)
		b.WriteString("\nReturn only JSON that satisfies the schema below exactly.\n\n")
	}

	b.WriteString(fmt.Sprintf("You are a competitive intelligence analyst. Assess the impact of the following signal on %q.\n", req.WatchItemName))
	if len(req.Portfolio) > 0 {
		b.WriteString(fmt.Sprintf("Our product portfolio: %s\n", strings.Join(req.Portfolio, ", ")))
	}

	publishedAtStr := "N/A"
	if req.Signal.PublishedAt != nil {
		publishedAtStr = utils.PrettyDate(*req.Signal.PublishedAt)
	}
	b.WriteString(fmt.Sprintf("\nSignal:\n  Title: %q\n  Source: %s\n  URL: %s\n  Published At: %s\n  Text: %s\n",
		req.Signal.Title, req.Signal.SourceName, req.Signal.URL, publishedAtStr, utils.TruncateText(req.Signal.RawText, signalTextLimit)))

	if len(req.Entities) > 0 {
		b.WriteString("\nEntities mentioned:\n")
		for _, e := range req.Entities {
			b.WriteString(fmt.Sprintf("  - %s (%s)\n", e.Name, e.Kind))
		}
	}

	if len(req.Context) > 0 {
		b.WriteString("\nBackground context:\n")
		for i, c := range req.Context {
			b.WriteString(fmt.Sprintf("  %d. %s: %s (%s)\n", i+1, c.Title, utils.TruncateText(c.Snippet, 500), c.URL))
		}
	}

	b.WriteString(fmt.Sprintf(`
Rules:
- "event_category" MUST be exactly one of: %s
- "impacts" lists only the risk axes this event actually touches; allowed axes: %s
- every impact "level" is "high", "medium" or "low" and its "rationale" MUST NOT be empty
- "recommendations" MUST contain at least one action with a concrete owner role
- "cited_sources" lists every source you relied on, the signal URL included
- "confidence" is your own certainty in this assessment, between 0.0 and 1.0

Respond with JSON only, no prose, using this structure:
{
  "event_category": "<enum above>",
  "summary": "<2-3 sentence executive summary>",
  "affected_products": ["<our product name>"],
  "impacts": [
    {"axis": "<enum above>", "level": "high | medium | low", "rationale": "<non-empty>"}
  ],
  "recommendations": [
    {"owner": "<role>", "action": "<imperative sentence>", "due_days": <int>, "priority": "high | medium | low"}
  ],
  "cited_sources": [
    {"title": "<string>", "url": "<string>", "source_name": "<string>"}
  ],
  "confidence": <float 0.0-1.0>
}`,
		strings.Join(entity.EventCategories, ", "),
		strings.Join(entity.RiskAxes, ", ")))

	return b.String()
}

// BuildDeepResearchPrompt renders the deep-synthesis prompt for one impact
// card.
func BuildDeepResearchPrompt(req *dto.ResearchRequest) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("You are a strategy researcher. Produce a deep-dive report on the following competitive event affecting %q.\n", req.WatchItemName))
	b.WriteString(fmt.Sprintf("\nEvent category: %s\nEvent summary: %s\n", req.EventCategory, req.CardSummary))
	if len(req.Keywords) > 0 {
		b.WriteString(fmt.Sprintf("Focus keywords: %s\n", strings.Join(req.Keywords, ", ")))
	}

	b.WriteString(fmt.Sprintf(`
Rules:
- consult and cite at least %d distinct sources; report how many you actually used in "source_count"
- cover at minimum: background, competitor intent, market reaction, expected second-order effects, and recommended posture
- "report_body" is the full report in markdown; "sections" splits the same content by heading

Respond with JSON only, no prose, using this structure:
{
  "sections": [
    {"heading": "<string>", "body": "<markdown>"}
  ],
  "source_count": <int>,
  "report_body": "<full markdown report>"
}`, req.SourceTarget))

	return b.String()
}
