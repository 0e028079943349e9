package dto

// Origins of a recommended action on an assembled card.
const (
	ActionOriginRuleTable  = "rule_table"
	ActionOriginExtraction = "extraction"
)

// CardAction is one recommended action on an assembled impact card, merged
// from the rule-table templates and the extraction's own recommendations.
type CardAction struct {
	Owner    string `json:"owner"`
	Action   string `json:"action"`
	DueDays  int    `json:"due_days,omitempty"`
	Priority string `json:"priority,omitempty"`
	Origin   string `json:"origin"`
}
