package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mitinsharma/serverstriker/internal/alert"
	"github.com/mitinsharma/serverstriker/internal/metrics"
	"github.com/mitinsharma/serverstriker/internal/utils"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []alert.Event
	err    error
}

func (c *captureNotifier) Notify(ctx context.Context, ev alert.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

func (c *captureNotifier) kinds() []alert.EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]alert.EventKind, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Kind
	}
	return out
}

func fixedSource(v float64) metrics.Source {
	return metrics.SourceFunc(func(ctx context.Context) (float64, error) {
		return v, nil
	})
}

func fastCheck(name string, threshold float64) alert.Check {
	return alert.Check{
		Name:     name,
		Kind:     alert.KindCPU,
		Interval: 10 * time.Millisecond,
		Policy:   alert.GaugePolicy(threshold, 5),
		Severity: alert.SeverityWarning,
	}
}

func TestAgentFiresAndRecordsEvent(t *testing.T) {
	notifier := &captureNotifier{}
	a := New("web-01", notifier, utils.NewLogger(""))
	a.Register(fastCheck("cpu", 90), fixedSource(96))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	kinds := notifier.kinds()
	if len(kinds) != 1 || kinds[0] != alert.EventFired {
		t.Fatalf("expected a single fired event, got %v", kinds)
	}
	events := a.Events()
	if len(events) != 1 || events[0].Kind != alert.EventFired {
		t.Fatalf("expected event in ring buffer, got %v", events)
	}
	snaps := a.Snapshots()
	if len(snaps) != 1 || !snaps[0].Active {
		t.Fatalf("expected active snapshot, got %+v", snaps)
	}
}

func TestAgentPanickingCheckDoesNotStopOthers(t *testing.T) {
	notifier := &captureNotifier{}
	a := New("web-01", notifier, utils.NewLogger(""))

	var healthyReads int32
	a.Register(fastCheck("boom", 90), metrics.SourceFunc(func(ctx context.Context) (float64, error) {
		panic("metric source exploded")
	}))
	a.Register(fastCheck("healthy", 90), metrics.SourceFunc(func(ctx context.Context) (float64, error) {
		atomic.AddInt32(&healthyReads, 1)
		return 10, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if n := atomic.LoadInt32(&healthyReads); n < 3 {
		t.Fatalf("healthy check starved, only %d reads", n)
	}
	if kinds := notifier.kinds(); len(kinds) != 0 {
		t.Fatalf("panicking check must not emit events, got %v", kinds)
	}
}

func TestAgentSlowCheckNeverOverlapsItself(t *testing.T) {
	notifier := &captureNotifier{}
	a := New("web-01", notifier, utils.NewLogger(""))

	var reads int32
	var inFlight int32
	a.Register(fastCheck("slow", 90), metrics.SourceFunc(func(ctx context.Context) (float64, error) {
		if atomic.AddInt32(&inFlight, 1) > 1 {
			t.Errorf("check overlapped itself")
		}
		defer atomic.AddInt32(&inFlight, -1)
		atomic.AddInt32(&reads, 1)
		time.Sleep(30 * time.Millisecond)
		return 10, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	// 10ms interval but 30ms execution: effective cadence is the
	// execution time, so nowhere near 11 reads.
	if n := atomic.LoadInt32(&reads); n < 2 || n > 6 {
		t.Fatalf("expected 2-6 reads for slow check, got %d", n)
	}
}

func TestAgentUnreadableSourceEmitsNothing(t *testing.T) {
	notifier := &captureNotifier{}
	a := New("web-01", notifier, utils.NewLogger(""))
	a.Register(fastCheck("cpu", 90), metrics.SourceFunc(func(ctx context.Context) (float64, error) {
		return 0, errors.New("source unavailable")
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if kinds := notifier.kinds(); len(kinds) != 0 {
		t.Fatalf("unreadable source must not emit events, got %v", kinds)
	}
	snaps := a.Snapshots()
	if len(snaps) != 1 || snaps[0].Active || !snaps[0].LastUnreadable {
		t.Fatalf("unexpected snapshot: %+v", snaps)
	}
}

func TestAgentDeliveryFailureKeepsRunning(t *testing.T) {
	notifier := &captureNotifier{err: errors.New("endpoint down")}
	a := New("web-01", notifier, utils.NewLogger(""))
	a.Register(fastCheck("cpu", 90), fixedSource(96))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	// The event is dropped from delivery but still recorded for diagnostics.
	if events := a.Events(); len(events) != 1 {
		t.Fatalf("expected event in ring despite delivery failure, got %v", events)
	}
}

// blockingNotifier simulates a delivery that takes a while to complete
// and records whether it was cancelled before finishing.
type blockingNotifier struct {
	mu        sync.Mutex
	delivered int
	aborted   int
}

func (n *blockingNotifier) Notify(ctx context.Context, ev alert.Event) error {
	select {
	case <-ctx.Done():
		n.mu.Lock()
		n.aborted++
		n.mu.Unlock()
		return ctx.Err()
	case <-time.After(30 * time.Millisecond):
		n.mu.Lock()
		n.delivered++
		n.mu.Unlock()
		return nil
	}
}

func TestAgentShutdownLetsInFlightDeliveryFinish(t *testing.T) {
	notifier := &blockingNotifier{}
	a := New("web-01", notifier, utils.NewLogger(""))
	a.Register(fastCheck("cpu", 90), fixedSource(96))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = a.Run(ctx)
		close(done)
	}()

	// Cancel while the initial breach delivery is still in flight.
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.aborted != 0 {
		t.Fatalf("shutdown aborted %d in-flight deliveries", notifier.aborted)
	}
	if notifier.delivered != 1 {
		t.Fatalf("expected the in-flight delivery to complete, delivered=%d", notifier.delivered)
	}
}

func TestAgentEventSinkReceivesEvents(t *testing.T) {
	notifier := &captureNotifier{}
	a := New("web-01", notifier, utils.NewLogger(""))
	a.Register(fastCheck("cpu", 90), fixedSource(96))

	var mu sync.Mutex
	var seen []alert.Event
	a.SetEventSink(func(ev alert.Event) {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0].Kind != alert.EventFired {
		t.Fatalf("sink did not receive the event: %v", seen)
	}
}

func TestAgentInvalidCronSpecFailsStartup(t *testing.T) {
	a := New("web-01", &captureNotifier{}, utils.NewLogger(""))
	a.SetDailyReport("not a cron spec")
	if err := a.Run(context.Background()); err == nil {
		t.Fatalf("expected error for invalid cron spec")
	}
}

func TestDailyReportSummarisesSnapshots(t *testing.T) {
	notifier := &captureNotifier{}
	a := New("web-01", notifier, utils.NewLogger(""))
	a.Register(fastCheck("cpu", 90), fixedSource(42))
	a.Register(alert.Check{
		Name:     "service-nginx",
		Kind:     alert.KindService,
		Target:   "nginx",
		Interval: 10 * time.Millisecond,
		Policy:   alert.StatusPolicy(true),
		Severity: alert.SeverityCritical,
	}, fixedSource(1))

	ctx := context.Background()
	for _, r := range a.runners {
		a.evaluate(ctx, r)
	}
	a.dailyReport(ctx)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	var report *alert.Event
	for i := range notifier.events {
		if notifier.events[i].Kind == alert.EventReport {
			report = &notifier.events[i]
		}
	}
	if report == nil {
		t.Fatalf("no report event delivered: %v", notifier.events)
	}
	if !strings.Contains(report.Message, "CPU Usage: 42.0%") {
		t.Fatalf("report missing cpu line: %q", report.Message)
	}
	if !strings.Contains(report.Message, "nginx is up!") {
		t.Fatalf("report missing service line: %q", report.Message)
	}
	if !strings.Contains(report.Message, "Daily Report for web-01") {
		t.Fatalf("report missing header: %q", report.Message)
	}
}
