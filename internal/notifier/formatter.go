package notifier

import (
	"fmt"
	"strings"

	"github.com/soulscout/soulscout/internal/model"
)

func severityEmoji(band model.Band) string {
	switch band {
	case model.BandHighConviction:
		return "🚨"
	case model.BandActionable:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// FormatAlert renders the outbound chat message for one alert.
func FormatAlert(a *model.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s* %s\n", severityEmoji(a.Severity), a.Symbol, strings.ToUpper(string(a.Severity)))
	fmt.Fprintf(&b, "Price: $%.6f | Confidence: %d\n", a.Price, a.Confidence)
	for _, line := range a.Lines {
		fmt.Fprintf(&b, "• %s\n", line)
	}
	if a.Plan != "" {
		fmt.Fprintf(&b, "Plan: %s\n", a.Plan)
	}
	if a.SolPath != "" {
		fmt.Fprintf(&b, "Route: %s\n", a.SolPath)
	}
	if a.EstImpactPct > 0 {
		fmt.Fprintf(&b, "Est. impact: %.2f%%\n", a.EstImpactPct)
	}
	return strings.TrimRight(b.String(), "\n")
}
