package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/eaili5/eaili5/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	upStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	downStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	agentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8B5CF6")).
			Bold(true)

	suggestionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Italic(true)
)

// formatPrice renders a USD price with sensible precision for both
// majors and micro-cap meme tokens.
func formatPrice(p decimal.Decimal) string {
	if p.GreaterThanOrEqual(decimal.New(1, 0)) {
		return "$" + p.StringFixed(2)
	}
	return "$" + p.StringFixed(8)
}

// formatCompact renders a large USD amount as $1.2M / $3.4B.
func formatCompact(v decimal.Decimal) string {
	f, _ := v.Float64()
	switch {
	case f >= 1e9:
		return fmt.Sprintf("$%.1fB", f/1e9)
	case f >= 1e6:
		return fmt.Sprintf("$%.1fM", f/1e6)
	case f >= 1e3:
		return fmt.Sprintf("$%.1fK", f/1e3)
	default:
		return fmt.Sprintf("$%.0f", f)
	}
}

// formatChange renders a 24h percentage change, colored by sign.
func formatChange(pct float64) string {
	s := fmt.Sprintf("%+.2f%%", pct)
	if pct >= 0 {
		return upStyle.Render(s)
	}
	return downStyle.Render(s)
}

// formatSafety renders a 0-100 safety score with a traffic-light color.
func formatSafety(score int) string {
	s := fmt.Sprintf("%d", score)
	switch {
	case score >= 70:
		return upStyle.Render(s)
	case score >= 40:
		return warnStyle.Render(s)
	default:
		return downStyle.Render(s)
	}
}

// renderTokenTable prints a token list as an aligned table.
func renderTokenTable(tokens []domain.TokenSnapshot) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-8s %-22s %14s %10s %10s %8s",
		"SYMBOL", "NAME", "PRICE", "24H", "VOLUME", "SAFETY")))
	b.WriteString("\n")
	for _, t := range tokens {
		// styled cells carry ANSI escapes, so pad the raw value first
		b.WriteString(fmt.Sprintf("%-8s %-22s %14s %s %s %s\n",
			t.Symbol,
			truncate(t.Name, 22),
			formatPrice(t.Price),
			pad(formatChange(t.Change24h), 10),
			pad(dimStyle.Render(formatCompact(t.Volume24h)), 10),
			pad(formatSafety(t.SafetyScore), 8),
		))
	}
	return b.String()
}

// pad right-aligns a styled string to the given visible width.
func pad(styled string, width int) string {
	visible := lipgloss.Width(styled)
	if visible >= width {
		return styled
	}
	return strings.Repeat(" ", width-visible) + styled
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
