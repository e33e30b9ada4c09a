package notifier

import (
	"fmt"
	"html"
	"strings"

	"StageSentinel/internal/collector"
	"StageSentinel/internal/model"
)

// FormatStageReport formats a snapshot's current stage and indicators into a Telegram message.
func FormatStageReport(snap *collector.Snapshot) string {
	var b strings.Builder
	ind := snap.Indicators
	symbol := html.EscapeString(snap.Series.Symbol)

	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n\n", symbol, ind.Date))
	b.WriteString(fmt.Sprintf("Stage %d: %s\n", ind.Stage, ind.Stage))
	b.WriteString(fmt.Sprintf("Close: %.2f\n", ind.Close))
	maDev := 0.0
	if ind.MovingAverage > 0 {
		maDev = (ind.Close - ind.MovingAverage) / ind.MovingAverage * 100
	}
	b.WriteString(fmt.Sprintf("30W MA: %.2f (%+.1f%%)\n", ind.MovingAverage, maDev))
	b.WriteString(fmt.Sprintf("RSI(14): %.0f | RS: %+.1f | Momentum: %+.1f\n", ind.RSI, ind.RelativeStrength, ind.Momentum))
	b.WriteString(fmt.Sprintf("Range: %.2f - %.2f (%.0f%%)\n\n", ind.PeriodLow, ind.PeriodHigh, ind.RangePosition*100))

	b.WriteString(fmt.Sprintf("🎯 <b>SATA %.1f/10</b> %s\n", snap.Rating.Score, snap.Rating.Tier))
	for _, c := range snap.Rating.Components {
		b.WriteString(fmt.Sprintf("  %s (×%.1f): %.1f\n", c.Name, c.Weight, c.Value))
	}

	if ts := snap.Transitions(); len(ts) > 0 {
		last := ts[len(ts)-1]
		b.WriteString(fmt.Sprintf("\nLast transition %s: %d → %d (%s)\n",
			last.Date, last.FromStage, last.ToStage, html.EscapeString(last.Trigger)))
	}
	return b.String()
}

// FormatAlert formats one feed alert.
func FormatAlert(a *model.Alert) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>%s</b>\n\n", stageIcon(a.ToStage), html.EscapeString(a.Title)))
	if a.Kind == model.AlertStageTransition {
		b.WriteString(fmt.Sprintf("Stage %d %s → Stage %d %s\n", a.FromStage, a.FromStage, a.ToStage, a.ToStage))
		if a.Trigger != "" {
			b.WriteString(fmt.Sprintf("Trigger: %s\n", html.EscapeString(a.Trigger)))
		}
	}
	b.WriteString(fmt.Sprintf("Price: %.2f | SATA: %.1f | Confidence: %.0f%%\n", a.Price, a.SATAScore, a.Confidence))
	b.WriteString(fmt.Sprintf("Time: %s", a.CreatedAt.Format("2006-01-02 15:04")))
	return b.String()
}

// FormatDigest summarizes the unread alerts.
func FormatDigest(alerts []model.Alert, unread int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📬 <b>Stage digest</b> | %d unread\n", unread))
	if len(alerts) == 0 {
		b.WriteString("\nNo stage changes since the last digest ✅")
		return b.String()
	}
	b.WriteString("\n")
	for _, a := range alerts {
		b.WriteString(fmt.Sprintf("%s %s: %d → %d (SATA %.1f, %s)\n",
			stageIcon(a.ToStage), html.EscapeString(a.Symbol), a.FromStage, a.ToStage, a.SATAScore, a.CreatedAt.Format("01-02 15:04")))
	}
	return b.String()
}

// FormatFeed lists alerts for the /feed command.
func FormatFeed(alerts []model.Alert) string {
	if len(alerts) == 0 {
		return "Feed is empty"
	}
	var b strings.Builder
	b.WriteString("🔔 <b>Recent alerts</b>\n\n")
	for _, a := range alerts {
		mark := " "
		if a.Unread {
			mark = "•"
		}
		b.WriteString(fmt.Sprintf("%s %s %s (%.0f%%)\n", mark, a.CreatedAt.Format("01-02 15:04"), html.EscapeString(a.Title), a.Confidence))
	}
	return b.String()
}

func stageIcon(s model.Stage) string {
	switch s {
	case model.StageBasing:
		return "🟡"
	case model.StageAdvancing:
		return "🟢"
	case model.StageTopping:
		return "🟠"
	case model.StageDeclining:
		return "🔴"
	default:
		return "📈"
	}
}
