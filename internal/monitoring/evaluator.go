package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"monitee/internal/events"
	"monitee/internal/monitor"
)

type Store interface {
	ListMonitors(ctx context.Context) ([]monitor.Monitor, error)
	InsertOngoing(ctx context.Context, e events.Ongoing) error
	OngoingForMonitor(ctx context.Context, monitorID uuid.UUID) (events.Ongoing, bool, error)
	CloseOngoing(ctx context.Context, p events.Past) error
}

type Resolver interface {
	BuildSnapshot(ctx context.Context, monitors []monitor.Monitor) (Snapshot, error)
	ResolveFromSnapshot(ctx context.Context, snap Snapshot, m monitor.Monitor) (monitor.MonitorableItem, error)
}

type MissingTracker interface {
	ReportMissing(ctx context.Context, m monitor.Monitor) error
	ClearMissing(ctx context.Context, m monitor.Monitor) error
}

const (
	stateOK      = "OK"
	statePending = "PENDING"
	stateFiring  = "FIRING"
)

type pending struct {
	state string
	since time.Time
}

// Evaluator runs one pass over every monitor per call. It is driven by a
// single loop and keeps no locks.
type Evaluator struct {
	store    Store
	resolver Resolver
	tracker  MissingTracker
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time

	states  map[uuid.UUID]pending
	firstIP map[uuid.UUID]string

	transitions metric.Int64Counter
}

func NewEvaluator(store Store, resolver Resolver, tracker MissingTracker, notifier Notifier, logger *slog.Logger) *Evaluator {
	transitions, _ := otel.Meter("monitee/monitoring").Int64Counter("monitee.monitor.transitions",
		metric.WithDescription("Monitor state transitions"))
	return &Evaluator{
		store:       store,
		resolver:    resolver,
		tracker:     tracker,
		notifier:    notifier,
		log:         logger,
		now:         time.Now,
		states:      map[uuid.UUID]pending{},
		firstIP:     map[uuid.UUID]string{},
		transitions: transitions,
	}
}

func (e *Evaluator) Evaluate(ctx context.Context) {
	monitors, err := e.store.ListMonitors(ctx)
	if err != nil {
		e.log.Error("load monitors", "err", err)
		return
	}
	if len(monitors) == 0 {
		return
	}
	snap, err := e.resolver.BuildSnapshot(ctx, monitors)
	if err != nil {
		e.log.Warn("partial snapshot", "err", err)
	}

	active := make(map[uuid.UUID]struct{}, len(monitors))
	for _, m := range monitors {
		active[m.ID] = struct{}{}
		e.evalMonitor(ctx, snap, m)
	}
	for id := range e.states {
		if _, ok := active[id]; !ok {
			delete(e.states, id)
			delete(e.firstIP, id)
		}
	}
}

func (e *Evaluator) evalMonitor(ctx context.Context, snap Snapshot, m monitor.Monitor) {
	item, err := e.resolver.ResolveFromSnapshot(ctx, snap, m)
	if errors.Is(err, ErrInconsistentSnapshot) {
		e.log.Error("inconsistent snapshot", "monitor", m.ID, "type", m.Type, "err", err)
		return
	}
	if err != nil {
		if !errors.Is(err, ErrItemNotFound) {
			e.log.Warn("resolve item", "monitor", m.ID, "type", m.Type, "err", err)
		}
		delete(e.states, m.ID)
		if err := e.tracker.ReportMissing(ctx, m); err != nil {
			e.log.Error("report missing item", "monitor", m.ID, "err", err)
		}
		return
	}
	if err := e.tracker.ClearMissing(ctx, m); err != nil {
		e.log.Error("clear missing item", "monitor", m.ID, "err", err)
	}

	if m.Type == monitor.ExternalIPChanged {
		item.CurrentValue = e.ipUnchanged(m.ID, item.Name)
	}

	now := e.now().UTC()
	open, firing, err := e.store.OngoingForMonitor(ctx, m.ID)
	if err != nil {
		e.log.Error("get ongoing event", "monitor", m.ID, "err", err)
		return
	}

	if !Breached(m, item) {
		delete(e.states, m.ID)
		if firing {
			if err := e.store.CloseOngoing(ctx, open.Close(now, item.CurrentValue)); err != nil {
				e.log.Error("close ongoing event", "monitor", m.ID, "err", err)
				return
			}
			e.log.Info("monitor recovered", "monitor", m.ID, "type", m.Type, "value", item.CurrentValue.String())
			e.count(ctx, m, stateOK)
		}
		return
	}
	if firing {
		return
	}

	st, ok := e.states[m.ID]
	if !ok || st.state != statePending {
		st = pending{state: statePending, since: now}
		e.states[m.ID] = st
		e.count(ctx, m, statePending)
	}
	if now.Sub(st.since) < m.Config.Inertia {
		return
	}

	ongoing := events.Ongoing{
		ID:              uuid.New(),
		MonitorID:       m.ID,
		MonitoredItemID: m.Config.MonitoredItemID,
		MonitorType:     m.Type,
		StartTime:       st.since,
		Threshold:       m.Config.Threshold,
		Value:           item.CurrentValue,
		Inertia:         m.Config.Inertia,
	}
	if err := e.store.InsertOngoing(ctx, ongoing); err != nil {
		e.log.Error("insert ongoing event", "monitor", m.ID, "err", err)
		return
	}
	e.states[m.ID] = pending{state: stateFiring, since: st.since}
	e.count(ctx, m, stateFiring)
	e.log.Info("monitor triggered", "monitor", m.ID, "type", m.Type, "value", item.CurrentValue.String(), "threshold", m.Config.Threshold.String())
	e.notifier.Notify(ctx, ongoing)
}

// ipUnchanged remembers the first external address seen for a monitor.
// An empty address means no connectivity and counts as unchanged.
func (e *Evaluator) ipUnchanged(id uuid.UUID, ip string) monitor.MonitoredValue {
	if ip == "" {
		return monitor.Flag(true)
	}
	first, ok := e.firstIP[id]
	if !ok {
		e.firstIP[id] = ip
		return monitor.Flag(true)
	}
	return monitor.Flag(ip == first)
}

func (e *Evaluator) count(ctx context.Context, m monitor.Monitor, state string) {
	e.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", string(m.Type)),
		attribute.String("state", state),
	))
}

// Breached compares the item's value against the monitor threshold in the
// direction the monitor type declares.
func Breached(m monitor.Monitor, item monitor.MonitorableItem) bool {
	c := monitor.Compare(item.CurrentValue, m.Config.Threshold)
	switch m.Type.Direction() {
	case monitor.Below:
		return c < 0
	case monitor.NotEqual:
		return c != 0
	default:
		return c > 0
	}
}
