package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rivalwatch/internal/entity"
)

// ActionTemplate is one default recommended action from the rule table.
type ActionTemplate struct {
	Owner    string `yaml:"owner" json:"owner"`
	Action   string `yaml:"action" json:"action"`
	DueDays  int    `yaml:"due_days" json:"due_days"`
	Priority string `yaml:"priority" json:"priority"`
}

// VerificationMargins define how far a failing sub-condition may miss before
// a candidate routes to manual review instead of rejection.
type VerificationMargins struct {
	Credibility   float64 `yaml:"credibility"`
	SourceDeficit int     `yaml:"source_deficit"`
}

// SourceTier overrides the credibility classification for one hostname. A
// zero Score falls back to the tier's default band score.
type SourceTier struct {
	Tier  int     `yaml:"tier"`
	Score float64 `yaml:"score"`
}

// Table is one loaded, versioned rule set: assembler action templates keyed
// by (event category, risk level), verification margins, and per-hostname
// source tier overrides. Tables are immutable once loaded; reloads swap the
// whole table.
type Table struct {
	Version        string                                 `yaml:"version"`
	Margins        VerificationMargins                    `yaml:"verification_margins"`
	DefaultActions []ActionTemplate                       `yaml:"default_actions"`
	Actions        map[string]map[string][]ActionTemplate `yaml:"actions"`
	SourceTiers    map[string]SourceTier                  `yaml:"source_tiers"`
}

// ActionsFor looks up the action templates for an (event category, risk
// level) pair, falling back to the table defaults when no specific rule
// exists.
func (t *Table) ActionsFor(category, riskLevel string) []ActionTemplate {
	if byLevel, ok := t.Actions[category]; ok {
		if templates, ok := byLevel[riskLevel]; ok && len(templates) > 0 {
			return templates
		}
	}
	return t.DefaultActions
}

// Load reads and validates a rule table from a YAML file.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var table Table
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if err := table.validate(); err != nil {
		return nil, err
	}

	if table.Margins.Credibility == 0 {
		table.Margins.Credibility = 0.05
	}
	if table.Margins.SourceDeficit == 0 {
		table.Margins.SourceDeficit = 1
	}
	return &table, nil
}

func (t *Table) validate() error {
	for category, byLevel := range t.Actions {
		if !entity.ValidEventCategory(category) {
			return fmt.Errorf("rules: unknown event category %q", category)
		}
		for level, templates := range byLevel {
			if !entity.ValidRiskLevel(level) {
				return fmt.Errorf("rules: unknown risk level %q under %q", level, category)
			}
			for _, tpl := range templates {
				if tpl.Owner == "" || tpl.Action == "" {
					return fmt.Errorf("rules: action under %s/%s missing owner or action text", category, level)
				}
			}
		}
	}
	for host, st := range t.SourceTiers {
		if st.Tier < 1 || st.Tier > 5 {
			return fmt.Errorf("rules: source %q has tier %d outside 1..5", host, st.Tier)
		}
	}
	return nil
}
