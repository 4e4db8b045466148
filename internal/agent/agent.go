// Package agent drives the monitoring loop: one goroutine per check,
// each on its own interval, feeding samples through the alert tracker
// and handing warranted events to the notifier. A failing or slow check
// never delays the others.
package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mitinsharma/serverstriker/internal/alert"
	"github.com/mitinsharma/serverstriker/internal/metrics"
	"github.com/mitinsharma/serverstriker/internal/utils"
)

// readTimeout bounds a single metric read so a hung collaborator
// (systemctl, apt) cannot wedge a check loop forever.
const readTimeout = 30 * time.Second

// Notifier delivers a single event. Satisfied by *notify.Notifier.
type Notifier interface {
	Notify(ctx context.Context, ev alert.Event) error
}

// runner pairs a check with its source and tracker. The tracker is only
// touched from the check's own goroutine; outside readers get the atomic
// snapshot.
type runner struct {
	check    alert.Check
	source   metrics.Source
	tracker  *alert.Tracker
	snapshot atomic.Pointer[alert.State]
}

// Agent owns the check runners and the event fan-out.
type Agent struct {
	server   string
	log      *utils.Logger
	notifier Notifier
	runners  []*runner
	events   *eventLog
	sink     func(alert.Event)
	cronSpec string
}

// New constructs an Agent for the named server.
func New(server string, notifier Notifier, log *utils.Logger) *Agent {
	return &Agent{
		server:   server,
		log:      log,
		notifier: notifier,
		events:   newEventLog(100),
	}
}

// Register adds a check backed by the given source. Must be called
// before Run.
func (a *Agent) Register(check alert.Check, source metrics.Source) {
	r := &runner{check: check, source: source, tracker: alert.NewTracker(check)}
	st := r.tracker.State()
	r.snapshot.Store(&st)
	a.runners = append(a.runners, r)
}

// SetEventSink installs an extra consumer for every dispatched event
// (the websocket hub). The sink must be safe for concurrent use. Must be
// called before Run.
func (a *Agent) SetEventSink(sink func(alert.Event)) {
	a.sink = sink
}

// SetDailyReport schedules a summary report on the given cron spec.
// Must be called before Run; an empty spec disables the report.
func (a *Agent) SetDailyReport(spec string) {
	a.cronSpec = spec
}

// Run starts every check loop and blocks until ctx is cancelled, then
// waits for in-flight evaluations to finish.
func (a *Agent) Run(ctx context.Context) error {
	var reporter *cron.Cron
	if a.cronSpec != "" {
		reporter = cron.New()
		if _, err := reporter.AddFunc(a.cronSpec, func() { a.dailyReport(ctx) }); err != nil {
			return fmt.Errorf("invalid daily report schedule %q: %w", a.cronSpec, err)
		}
		reporter.Start()
	}

	a.log.Writef("ServerStriker daemon started (%d checks)", len(a.runners))
	var wg sync.WaitGroup
	for _, r := range a.runners {
		wg.Add(1)
		go func(r *runner) {
			defer wg.Done()
			a.runCheck(ctx, r)
		}(r)
	}

	<-ctx.Done()
	if reporter != nil {
		rctx := reporter.Stop()
		<-rctx.Done()
	}
	wg.Wait()
	a.log.Write("ServerStriker daemon stopped")
	return nil
}

// runCheck evaluates once immediately, then on every tick. Because the
// evaluation runs synchronously inside the loop a check never overlaps
// itself: the effective interval is max(interval, execution time).
func (a *Agent) runCheck(ctx context.Context, r *runner) {
	a.evaluate(ctx, r)
	ticker := time.NewTicker(r.check.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.evaluate(ctx, r)
		}
	}
}

// evaluate performs one tick of a check. A panic in the source or policy
// is contained here and treated like an unreadable sample.
func (a *Agent) evaluate(ctx context.Context, r *runner) {
	defer func() {
		if rec := recover(); rec != nil {
			a.log.Writef("Check %s panicked: %v", r.check.Name, rec)
			checkFailures.WithLabelValues(r.check.Name).Inc()
		}
	}()
	checksTotal.WithLabelValues(r.check.Name).Inc()

	readCtx, cancel := context.WithTimeout(ctx, readTimeout)
	value, err := r.source.Read(readCtx)
	cancel()

	sample := alert.Sample{
		Check:     r.check.Name,
		Value:     value,
		Timestamp: time.Now(),
	}
	if err != nil {
		sample.Unreadable = true
		a.log.Writef("Check %s unreadable: %v", r.check.Name, err)
		checkFailures.WithLabelValues(r.check.Name).Inc()
	} else {
		sample.Breached = r.check.Policy.Classify(value) == alert.VerdictBreach
	}

	ev := r.tracker.Observe(sample)
	st := r.tracker.State()
	r.snapshot.Store(&st)

	if ev != nil {
		a.dispatch(ctx, *ev)
	}
}

// dispatch records an event and delivers it. Delivery failures are
// logged and the event dropped; the next breach cycle re-triggers.
// Delivery runs detached from the run context so a shutdown signal does
// not abort a webhook post already in flight; the notifier's per-attempt
// timeout and bounded retries keep the remaining wait finite, and Run
// does not return until it finishes.
func (a *Agent) dispatch(ctx context.Context, ev alert.Event) {
	eventsTotal.WithLabelValues(ev.Check, string(ev.Kind)).Inc()
	a.events.append(ev)
	if a.sink != nil {
		a.sink(ev)
	}
	if err := a.notifier.Notify(context.WithoutCancel(ctx), ev); err != nil {
		deliveriesTotal.WithLabelValues("dropped").Inc()
		a.log.Writef("Dropped event %s for %s: %v", ev.Kind, ev.Check, err)
		return
	}
	deliveriesTotal.WithLabelValues("delivered").Inc()
}

// Snapshots returns a copy of the current state of every check.
func (a *Agent) Snapshots() []alert.State {
	out := make([]alert.State, 0, len(a.runners))
	for _, r := range a.runners {
		if st := r.snapshot.Load(); st != nil {
			out = append(out, *st)
		}
	}
	return out
}

// Events returns the most recent dispatched events, oldest first.
func (a *Agent) Events() []alert.Event {
	return a.events.list()
}

// Server returns the configured server name.
func (a *Agent) Server() string {
	return a.server
}

// eventLog is a bounded ring of recent events for the diagnostics API.
type eventLog struct {
	mu     sync.Mutex
	events []alert.Event
	max    int
}

func newEventLog(max int) *eventLog {
	return &eventLog{max: max}
}

func (l *eventLog) append(ev alert.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	if len(l.events) > l.max {
		l.events = l.events[len(l.events)-l.max:]
	}
}

func (l *eventLog) list() []alert.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]alert.Event, len(l.events))
	copy(out, l.events)
	return out
}
