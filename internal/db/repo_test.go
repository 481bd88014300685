package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"monitee/internal/events"
	"monitee/internal/monitor"
	"monitee/internal/webcheck"
)

func TestKVStoreRoundTrip(t *testing.T) {
	sqldb := newTestDB(t)
	kv := NewKVStore(sqldb)
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "serverId"); err != nil || ok {
		t.Fatalf("get missing key: ok=%v err=%v", ok, err)
	}
	if err := kv.Put(ctx, "serverId", "a"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := kv.Put(ctx, "serverId", "b"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := kv.Get(ctx, "serverId")
	if err != nil || !ok || v != "b" {
		t.Fatalf("get = %q ok=%v err=%v, want b", v, ok, err)
	}
}

func TestMonitorsRoundTrip(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	disk := "sda"
	want := monitor.Monitor{
		ID:   uuid.New(),
		Type: monitor.DiskTemperature,
		Config: monitor.Config{
			MonitoredItemID: &disk,
			Threshold:       monitor.NumericalValue(60),
			Inertia:         90 * time.Second,
		},
	}
	if err := repo.AddMonitor(ctx, want); err != nil {
		t.Fatalf("add monitor: %v", err)
	}
	got, err := repo.GetMonitor(ctx, want.ID)
	if err != nil {
		t.Fatalf("get monitor: %v", err)
	}
	if got.Type != want.Type || got.ItemID() != "sda" || got.Config.Inertia != want.Config.Inertia || got.Config.Threshold != want.Config.Threshold {
		t.Fatalf("monitor = %+v, want %+v", got, want)
	}

	if err := repo.DeleteMonitor(ctx, want.ID); err != nil {
		t.Fatalf("delete monitor: %v", err)
	}
	if _, err := repo.GetMonitor(ctx, want.ID); err != ErrNotFound {
		t.Fatalf("get deleted monitor err = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteMonitor(ctx, want.ID); err != ErrNotFound {
		t.Fatalf("delete twice err = %v, want ErrNotFound", err)
	}
}

func TestOngoingMovesToPast(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	start := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	o := events.Ongoing{
		ID:          uuid.New(),
		MonitorID:   uuid.New(),
		MonitorType: monitor.CPULoad,
		StartTime:   start,
		Threshold:   monitor.FractionalValue(80),
		Value:       monitor.FractionalValue(97.5),
		Inertia:     time.Minute,
	}
	if err := repo.InsertOngoing(ctx, o); err != nil {
		t.Fatalf("insert ongoing: %v", err)
	}
	got, ok, err := repo.OngoingForMonitor(ctx, o.MonitorID)
	if err != nil || !ok {
		t.Fatalf("ongoing for monitor: ok=%v err=%v", ok, err)
	}
	if got.Value != o.Value || !got.StartTime.Equal(start) {
		t.Fatalf("ongoing = %+v", got)
	}

	if err := repo.CloseOngoing(ctx, o.Close(start.Add(time.Hour), monitor.FractionalValue(20))); err != nil {
		t.Fatalf("close ongoing: %v", err)
	}
	if _, ok, _ := repo.OngoingForMonitor(ctx, o.MonitorID); ok {
		t.Fatal("ongoing event still open after close")
	}
	past, err := repo.ListPast(ctx, 10)
	if err != nil {
		t.Fatalf("list past: %v", err)
	}
	if len(past) != 1 || past[0].ID != o.ID || past[0].Value != monitor.FractionalValue(20) {
		t.Fatalf("past = %+v", past)
	}

	n, err := repo.DeletePastOlderThan(ctx, start.Add(2*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("delete past n=%d err=%v", n, err)
	}
}

func TestEventLog(t *testing.T) {
	log := NewEventLog(newTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	missing := events.MonitoredItemMissing{ID: uuid.New(), Timestamp: now, MonitorType: monitor.NetworkUp, MonitorID: uuid.New()}
	update := events.UpdateAvailable{ID: uuid.New(), Timestamp: now.Add(time.Minute), CurrentVersion: "1.0.0", NewVersion: "1.1.0", PublishDate: now}

	for _, e := range []events.Generic{missing, update} {
		if err := log.Add(ctx, e); err != nil {
			t.Fatalf("add %s: %v", e.Kind(), err)
		}
	}
	all, err := log.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(all) != 2 || all[0].Kind() != events.KindUpdateAvailable {
		t.Fatalf("events = %+v, want update first", all)
	}
	if err := log.RemoveByID(ctx, missing.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	all, _ = log.Read(ctx)
	if len(all) != 1 {
		t.Fatalf("events after remove = %d, want 1", len(all))
	}
}

func TestWebChecks(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	c := webcheck.Check{ID: uuid.New(), URL: "https://example.com", CreatedAt: time.Now()}
	if err := repo.AddWebCheck(ctx, c); err != nil {
		t.Fatalf("add web check: %v", err)
	}
	checks, err := repo.ListWebChecks(ctx)
	if err != nil || len(checks) != 1 || checks[0].URL != c.URL {
		t.Fatalf("checks = %+v err=%v", checks, err)
	}
	if err := repo.DeleteWebCheck(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteWebCheck(ctx, c.ID); err != ErrNotFound {
		t.Fatalf("delete twice err = %v, want ErrNotFound", err)
	}
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqldb, err := Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	if err := Migrate(sqldb); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return sqldb
}
