package telegram

import (
	"fmt"
	"strings"
	"time"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/utils"
)

// FormatImpactCardAlert formats one high-severity impact card into a Markdown
// string for Telegram, ensuring the message does not exceed the maximum length.
func FormatImpactCardAlert(watchItemName string, card *entity.ImpactCard, actions []dto.CardAction, sources []dto.CitedSource) string {
	const maxLen = 4090

	var levelIcon string
	switch card.RiskLevel {
	case entity.RiskLevelCritical:
		levelIcon = "🚨"
	case entity.RiskLevelHigh:
		levelIcon = "⚠️"
	default:
		levelIcon = "🔔"
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%s *%s Risk Impact Card* %s\n\n", levelIcon, card.RiskLevel, levelIcon))
	builder.WriteString(fmt.Sprintf("🏢 *Watch Item:* %s\n", watchItemName))
	builder.WriteString(fmt.Sprintf("📂 *Event:* %s\n", eventCategoryLabel(card)))
	builder.WriteString(fmt.Sprintf("💬 *Summary:* %s\n", utils.TruncateText(card.Summary, 600)))
	builder.WriteString(fmt.Sprintf("📊 *Risk Score:* %.1f (%s)\n", card.RiskScore, card.RiskLevel))
	builder.WriteString(fmt.Sprintf("🎯 *Confidence:* %.2f\n", card.ConfidenceScore))
	if card.Delayed {
		builder.WriteString("⏳ _Assembled past the run deadline; late signals may follow._\n")
	}

	if len(actions) > 0 {
		builder.WriteString("\n✅ *Recommended Actions:*\n")
		for i, action := range actions {
			if i == 5 {
				builder.WriteString(fmt.Sprintf("  _...and %d more_\n", len(actions)-i))
				break
			}
			line := fmt.Sprintf("  %d. [%s] %s", i+1, action.Owner, utils.TruncateText(action.Action, 180))
			if action.DueDays > 0 {
				line += fmt.Sprintf(" (due %dd)", action.DueDays)
			}
			builder.WriteString(line + "\n")
		}
	}

	if len(sources) > 0 {
		builder.WriteString("\n🔗 *Sources:*\n")
		for i, src := range sources {
			if i == 3 {
				builder.WriteString(fmt.Sprintf("  _...and %d more_\n", len(sources)-i))
				break
			}
			title := src.Title
			if title == "" {
				title = src.SourceName
			}
			builder.WriteString(fmt.Sprintf("  • [%s](%s) (tier %d)\n", utils.TruncateText(title, 120), src.URL, src.CredibilityTier))
		}
	}

	message := builder.String()
	if len(message) > maxLen {
		message = utils.TruncateText(message, maxLen-4)
	}
	return message
}

// FormatRunFailureMessage formats a pipeline-run failure notification.
func FormatRunFailureMessage(runID uint, watchItemName, stage, detail string) string {
	var builder strings.Builder
	builder.WriteString("📛 *Pipeline Run Failed*\n\n")
	builder.WriteString(fmt.Sprintf("🏢 *Watch Item:* %s\n", watchItemName))
	builder.WriteString(fmt.Sprintf("🆔 *Run:* %d\n", runID))
	builder.WriteString(fmt.Sprintf("🔧 *Stage:* %s\n", stage))
	builder.WriteString(fmt.Sprintf("⚠️ %s\n", utils.TruncateText(detail, 800)))
	return builder.String()
}

func FormatErrorAlertMessage(time time.Time, errType string, errMsg string, data string) string {
	return fmt.Sprintf(`📛 [ERROR ALERT]
%s
🔧 %s
⚠️ %s

📄 Data: %s
`, utils.PrettyDate(time), errType, errMsg, data)
}

func eventCategoryLabel(card *entity.ImpactCard) string {
	if card.ExtractionResult.EventCategory != "" {
		return strings.ReplaceAll(card.ExtractionResult.EventCategory, "_", " ")
	}
	return "competitive event"
}
