// Package alert holds the per-check alert state machine and the event
// types it emits. A Tracker turns the stream of samples produced by a
// check into a minimal sequence of fired/cleared events.
package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity classifies how urgent an event is for downstream consumers.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// EventKind distinguishes the state transitions a Tracker reports.
type EventKind string

const (
	EventFired    EventKind = "fired"
	EventCleared  EventKind = "cleared"
	EventRenotify EventKind = "renotify"
	EventReport   EventKind = "report"
)

// Metric kinds understood by the agent. They select both the collector
// and the message wording.
const (
	KindCPU            = "cpu"
	KindMemory         = "memory"
	KindDisk           = "disk"
	KindService        = "service"
	KindFailedUnits    = "failed_units"
	KindFailedLogins   = "failed_logins"
	KindPendingUpdates = "pending_updates"
	KindLogScan        = "logscan"
)

// Check describes one monitored quantity. Immutable after config load.
type Check struct {
	Name     string
	Kind     string
	Target   string // service name, mount path or log path, depending on Kind
	Interval time.Duration
	Policy   Policy
	Severity Severity
	Realert  time.Duration // 0 disables re-notification while active
}

// Sample is the result of one metric read. Produced each tick, consumed
// once by the Tracker.
type Sample struct {
	Check      string
	Value      float64
	Timestamp  time.Time
	Breached   bool
	Unreadable bool
}

// Event is an outward notification created on a state transition. It is
// immutable once created and consumed exactly once by the notifier.
type Event struct {
	ID        string    `json:"id"`
	Check     string    `json:"check"`
	Kind      EventKind `json:"kind"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an Event for the given check and transition.
func NewEvent(c Check, kind EventKind, value float64, ts time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Check:     c.Name,
		Kind:      kind,
		Severity:  c.Severity,
		Message:   message(c, kind, value),
		Value:     value,
		Timestamp: ts.UTC(),
	}
}

// NewReportEvent builds a summary event outside the per-check state
// machine (the daily report is informational, not a transition).
func NewReportEvent(message string, ts time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Check:     "daily-report",
		Kind:      EventReport,
		Severity:  SeverityInfo,
		Message:   message,
		Timestamp: ts.UTC(),
	}
}

// message renders the human-readable alert text for a transition.
func message(c Check, kind EventKind, value float64) string {
	if kind == EventCleared {
		return clearedMessage(c, value)
	}
	msg := firedMessage(c, value)
	if kind == EventRenotify {
		return msg + " (still active)"
	}
	return msg
}

func firedMessage(c Check, value float64) string {
	switch c.Kind {
	case KindCPU:
		return fmt.Sprintf("🔥 High CPU Usage: %.1f%%", value)
	case KindMemory:
		return fmt.Sprintf("🚨 High RAM Usage: %.1f%%", value)
	case KindDisk:
		return fmt.Sprintf("⚠️ Low Disk Space: %.1f%% used on %s", value, c.Target)
	case KindService:
		return fmt.Sprintf("❌ %s is down!", c.Target)
	case KindFailedUnits:
		return fmt.Sprintf("🔴 Failed Services: %d units in failed state", int(value))
	case KindFailedLogins:
		return fmt.Sprintf("🚨 Security Alert: %d failed SSH logins detected!", int(value))
	case KindPendingUpdates:
		return fmt.Sprintf("📦 %d packages can be upgraded.", int(value))
	case KindLogScan:
		return fmt.Sprintf("🚨 System Error: %d new error lines in %s", int(value), c.Target)
	default:
		return fmt.Sprintf("Alert %s: value %.2f", c.Name, value)
	}
}

func clearedMessage(c Check, value float64) string {
	switch c.Kind {
	case KindCPU:
		return fmt.Sprintf("✅ CPU usage back to normal: %.1f%%", value)
	case KindMemory:
		return fmt.Sprintf("✅ RAM usage back to normal: %.1f%%", value)
	case KindDisk:
		return fmt.Sprintf("✅ Disk usage back to normal: %.1f%% used on %s", value, c.Target)
	case KindService:
		return fmt.Sprintf("✔️ %s is up!", c.Target)
	case KindFailedUnits:
		return "✅ No services in failed state"
	case KindFailedLogins:
		return "✅ Failed SSH logins back under limit"
	case KindPendingUpdates:
		return "✅ System packages up to date"
	case KindLogScan:
		return fmt.Sprintf("✅ No new error lines in %s", c.Target)
	default:
		return fmt.Sprintf("Resolved %s: value %.2f", c.Name, value)
	}
}
