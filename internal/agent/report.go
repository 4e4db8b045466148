package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitinsharma/serverstriker/internal/alert"
)

// dailyReport posts a summary of the current gauge values and service
// states regardless of breach state, mirroring the daily check round of
// the original agent.
func (a *Agent) dailyReport(ctx context.Context) {
	lines := []string{fmt.Sprintf("📊 Daily Report for %s", a.server)}
	for _, st := range a.Snapshots() {
		if line := reportLine(st); line != "" {
			lines = append(lines, line)
		}
	}
	ev := alert.NewReportEvent(strings.Join(lines, "\n"), time.Now())
	a.dispatch(ctx, ev)
}

func reportLine(st alert.State) string {
	switch st.Kind {
	case alert.KindCPU:
		return fmt.Sprintf("🔥 CPU Usage: %.1f%%", st.LastValue)
	case alert.KindMemory:
		return fmt.Sprintf("🚨 RAM Usage: %.1f%%", st.LastValue)
	case alert.KindDisk:
		return fmt.Sprintf("⚠️ Disk Usage: %.1f%% used", st.LastValue)
	case alert.KindService:
		unit := strings.TrimPrefix(st.Check, "service-")
		if st.LastValue >= 0.5 {
			return fmt.Sprintf("✔️ %s is up!", unit)
		}
		return fmt.Sprintf("❌ %s is down!", unit)
	default:
		return ""
	}
}
