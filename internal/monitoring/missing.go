package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"monitee/internal/events"
	"monitee/internal/monitor"
)

type EventLog interface {
	Add(ctx context.Context, e events.Generic) error
	Read(ctx context.Context) ([]events.Generic, error)
	RemoveByID(ctx context.Context, id uuid.UUID) error
}

// Notifier delivers an event to every configured channel. It never fails.
type Notifier interface {
	Notify(ctx context.Context, e events.Event)
}

// Tracker keeps at most one MonitoredItemMissing event per monitor in the
// event log and notifies once per disappearance.
type Tracker struct {
	log      EventLog
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*monitorLock
}

// monitorLock is dropped from the map once nobody holds or waits on it.
type monitorLock struct {
	sync.Mutex
	refs int
}

func NewTracker(log EventLog, notifier Notifier, logger *slog.Logger) *Tracker {
	return &Tracker{log: log, notifier: notifier, logger: logger, now: time.Now, locks: map[uuid.UUID]*monitorLock{}}
}

func (t *Tracker) lock(id uuid.UUID) func() {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &monitorLock{}
		t.locks[id] = l
	}
	l.refs++
	t.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		t.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(t.locks, id)
		}
		t.mu.Unlock()
	}
}

// ReportMissing records the monitor's item as missing unless it already is.
func (t *Tracker) ReportMissing(ctx context.Context, m monitor.Monitor) error {
	defer t.lock(m.ID)()

	existing, err := t.find(ctx, m.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	e := events.MonitoredItemMissing{
		ID:              uuid.New(),
		Timestamp:       t.now().UTC(),
		MonitorType:     m.Type,
		MonitorID:       m.ID,
		MonitoredItemID: m.Config.MonitoredItemID,
	}
	if err := t.log.Add(ctx, e); err != nil {
		return fmt.Errorf("record missing item: %w", err)
	}
	t.logger.Info("monitored item missing", "monitor", m.ID, "type", m.Type, "item", m.ItemID())
	t.notifier.Notify(ctx, e)
	return nil
}

// ClearMissing removes the monitor's missing event if there is one.
func (t *Tracker) ClearMissing(ctx context.Context, m monitor.Monitor) error {
	defer t.lock(m.ID)()

	existing, err := t.find(ctx, m.ID)
	if err != nil || existing == nil {
		return err
	}
	if err := t.log.RemoveByID(ctx, existing.ID); err != nil {
		return fmt.Errorf("clear missing item: %w", err)
	}
	t.logger.Info("monitored item back", "monitor", m.ID, "type", m.Type, "item", m.ItemID())
	return nil
}

func (t *Tracker) find(ctx context.Context, monitorID uuid.UUID) (*events.MonitoredItemMissing, error) {
	all, err := t.log.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	for _, e := range all {
		if missing, ok := e.(events.MonitoredItemMissing); ok && missing.MonitorID == monitorID {
			return &missing, nil
		}
	}
	return nil, nil
}
