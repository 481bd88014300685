package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitee/internal/db"
	"monitee/internal/events"
	"monitee/internal/metrics"
	"monitee/internal/monitor"
	"monitee/internal/monitoring"
	"monitee/internal/notify"
	"monitee/internal/webcheck"
)

var testServerID = uuid.MustParse("0b7c3f52-9a41-4f0e-8d6b-2c5e1a7f9d30")

type fakeMetrics struct{}

func (fakeMetrics) SystemLoad(context.Context, metrics.ProcessSort, int) (metrics.SystemLoad, error) {
	return metrics.SystemLoad{SystemLoadAverage: 0.5}, nil
}

func (fakeMetrics) SystemInfo(context.Context) (metrics.SystemInfo, error) {
	return metrics.SystemInfo{HostName: "nas"}, nil
}

type fakeItems struct{}

func (fakeItems) BuildSnapshot(_ context.Context, monitors []monitor.Monitor) (monitoring.Snapshot, error) {
	snap := monitoring.Snapshot{}
	for _, m := range monitors {
		snap.Categories = append(snap.Categories, m.Type.Category())
	}
	return snap, nil
}

func (fakeItems) ResolveItem(_ context.Context, m monitor.Monitor) (monitor.MonitorableItem, error) {
	if m.ItemID() == "gone" {
		return monitor.MonitorableItem{}, monitoring.ErrItemNotFound
	}
	return monitor.MonitorableItem{Name: "CPU", CurrentValue: monitor.FractionalValue(12), Type: m.Type}, nil
}

func (fakeItems) ResolveAllOfType(_ context.Context, typ monitor.Type) ([]monitor.MonitorableItem, error) {
	return []monitor.MonitorableItem{{Name: "sda", Type: typ}}, nil
}

type fakeGeneric struct{ list []events.Generic }

func (f fakeGeneric) Read(context.Context) ([]events.Generic, error) { return f.list, nil }

type fakeNotifications struct{ tests int }

func (f *fakeNotifications) Info() notify.ServiceInfo {
	return notify.ServiceInfo{ServerName: "nas"}
}

func (f *fakeNotifications) SendTest(context.Context) { f.tests++ }

type harness struct {
	handler http.Handler
	repo    *db.Repository
	notes   *fakeNotifications
}

func newHarness(t *testing.T) harness {
	t.Helper()
	sqldb, err := db.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqldb.Close() })
	require.NoError(t, db.Migrate(sqldb))
	repo := db.NewRepository(sqldb)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notes := &fakeNotifications{}
	s := NewServer(Deps{
		Meta:    Meta{Version: "1.4.0", BuildDate: "2026-10-01", ServerID: testServerID},
		Store:   repo,
		Metrics: fakeMetrics{},
		Items:   fakeItems{},
		Generic: fakeGeneric{list: []events.Generic{
			events.UpdateAvailable{ID: uuid.New(), NewVersion: "1.2.0"},
		}},
		WebChecks:     webcheck.NewService(repo, 0, 0, logger),
		Notifications: notes,
	}, logger)
	return harness{handler: s.Routes(), repo: repo, notes: notes}
}

func (h harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func TestMonitorLifecycle(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/monitors",
		`{"type":"CPU_LOAD","threshold":{"type":"fractional","value":90},"inertia":"30s"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var created monitor.Monitor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, monitor.CPULoad, created.Type)

	rec = h.do(t, http.MethodGet, "/api/monitors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []monitor.Monitor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	rec = h.do(t, http.MethodGet, "/api/monitors/"+created.ID.String()+"/item", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name": "CPU"`)

	rec = h.do(t, http.MethodGet, "/api/monitoring/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cpu"`)

	rec = h.do(t, http.MethodDelete, "/api/monitors/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodDelete, "/api/monitors/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddMonitorRejectsInvalid(t *testing.T) {
	h := newHarness(t)
	cases := map[string]string{
		"malformed":       `{`,
		"unknown type":    `{"type":"FAN_SPEED","threshold":{"type":"numerical","value":1}}`,
		"wrong kind":      `{"type":"CPU_LOAD","threshold":{"type":"numerical","value":1}}`,
		"missing item id": `{"type":"DISK_READ_RATE","threshold":{"type":"numerical","value":1}}`,
		"bad inertia":     `{"type":"CPU_LOAD","threshold":{"type":"fractional","value":1},"inertia":"soon"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/api/monitors", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMonitorItemNotFound(t *testing.T) {
	h := newHarness(t)
	gone := "gone"
	m := monitor.Monitor{
		ID:     uuid.New(),
		Type:   monitor.DiskReadRate,
		Config: monitor.Config{MonitoredItemID: &gone, Threshold: monitor.NumericalValue(1)},
	}
	require.NoError(t, h.repo.AddMonitor(context.Background(), m))

	rec := h.do(t, http.MethodGet, "/api/monitors/"+m.ID.String()+"/item", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/monitors/not-a-uuid/item", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestItemsOfType(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/items/DISK_READ_RATE", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sda"`)

	rec = h.do(t, http.MethodGet, "/api/items/NOPE", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsEndpoints(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/events/generic", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind": "UPDATE_AVAILABLE"`)
	assert.Contains(t, rec.Body.String(), `"newVersion": "1.2.0"`)

	for _, path := range []string{"/api/events/ongoing", "/api/events/past?limit=5"} {
		rec := h.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestWebChecks(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/webchecks", `{"url":"ftp://example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/webchecks", `{"url":"https://example.com/health"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var c webcheck.Check
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))

	rec = h.do(t, http.MethodGet, "/api/webchecks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://example.com/health")

	rec = h.do(t, http.MethodDelete, "/api/webchecks/"+c.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSystemAndNotifications(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/system/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hostName": "nas"`)

	rec = h.do(t, http.MethodGet, "/api/system/load?sort=CPU&limit=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/notifications", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/notifications/test", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.notes.tests)

	rec = h.do(t, http.MethodGet, "/api/notifications/test", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestProbes(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/readyz", "").Code)

	s := NewServer(Deps{
		Store:  h.repo,
		Docker: pingFunc(func(context.Context) error { return errors.New("socket closed") }),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "docker")
}

func TestMeta(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/meta", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var meta Meta
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, "1.4.0", meta.Version)
	assert.Equal(t, "2026-10-01", meta.BuildDate)
	assert.Equal(t, testServerID, meta.ServerID)
	assert.Equal(t, os.Getpid(), meta.ProcessID)
	assert.Contains(t, meta.Endpoints, "GET /api/meta")
	assert.Contains(t, meta.Endpoints, "POST /api/monitors")
	assert.Contains(t, meta.Endpoints, "/healthz")
}
