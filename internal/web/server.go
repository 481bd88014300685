package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"monitee/internal/db"
	"monitee/internal/events"
	"monitee/internal/metrics"
	"monitee/internal/monitor"
	"monitee/internal/monitoring"
	"monitee/internal/notify"
	"monitee/internal/webcheck"
)

type Store interface {
	Ping(ctx context.Context) error
	ListMonitors(ctx context.Context) ([]monitor.Monitor, error)
	GetMonitor(ctx context.Context, id uuid.UUID) (monitor.Monitor, error)
	AddMonitor(ctx context.Context, m monitor.Monitor) error
	DeleteMonitor(ctx context.Context, id uuid.UUID) error
	ListOngoing(ctx context.Context) ([]events.Ongoing, error)
	ListPast(ctx context.Context, limit int) ([]events.Past, error)
}

type Metrics interface {
	SystemLoad(ctx context.Context, sort metrics.ProcessSort, limit int) (metrics.SystemLoad, error)
	SystemInfo(ctx context.Context) (metrics.SystemInfo, error)
}

type Items interface {
	BuildSnapshot(ctx context.Context, monitors []monitor.Monitor) (monitoring.Snapshot, error)
	ResolveItem(ctx context.Context, m monitor.Monitor) (monitor.MonitorableItem, error)
	ResolveAllOfType(ctx context.Context, typ monitor.Type) ([]monitor.MonitorableItem, error)
}

type GenericEvents interface {
	Read(ctx context.Context) ([]events.Generic, error)
}

type WebChecks interface {
	List(ctx context.Context) ([]webcheck.Check, error)
	Add(ctx context.Context, rawURL string) (webcheck.Check, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Status(ctx context.Context, id uuid.UUID) (webcheck.Status, bool, error)
}

type Notifications interface {
	Info() notify.ServiceInfo
	SendTest(ctx context.Context)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Meta describes the running agent. ProcessID and Endpoints are filled in
// by the server.
type Meta struct {
	Version   string    `json:"version"`
	BuildDate string    `json:"buildDate"`
	ProcessID int       `json:"processId"`
	ServerID  uuid.UUID `json:"serverId"`
	Endpoints []string  `json:"endpoints"`
}

type Deps struct {
	Meta          Meta
	Store         Store
	Docker        Pinger
	Metrics       Metrics
	Items         Items
	Generic       GenericEvents
	WebChecks     WebChecks
	Notifications Notifications
}

// slowRequestThreshold is how long a request may take before it is logged
// as a warning.
const slowRequestThreshold = 200 * time.Millisecond

type Server struct {
	Deps
	log       *slog.Logger
	endpoints []string
}

func NewServer(deps Deps, logger *slog.Logger) *Server {
	return &Server{Deps: deps, log: logger}
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/meta", s.handleMeta).Methods(http.MethodGet)
	api.HandleFunc("/system/load", s.handleSystemLoad).Methods(http.MethodGet)
	api.HandleFunc("/system/info", s.handleSystemInfo).Methods(http.MethodGet)
	api.HandleFunc("/monitoring/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/monitors", s.handleListMonitors).Methods(http.MethodGet)
	api.HandleFunc("/monitors", s.handleAddMonitor).Methods(http.MethodPost)
	api.HandleFunc("/monitors/{id}", s.handleDeleteMonitor).Methods(http.MethodDelete)
	api.HandleFunc("/monitors/{id}/item", s.handleMonitorItem).Methods(http.MethodGet)
	api.HandleFunc("/items/{type}", s.handleItemsOfType).Methods(http.MethodGet)
	api.HandleFunc("/events/generic", s.handleGenericEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/ongoing", s.handleOngoingEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/past", s.handlePastEvents).Methods(http.MethodGet)
	api.HandleFunc("/webchecks", s.handleListWebChecks).Methods(http.MethodGet)
	api.HandleFunc("/webchecks", s.handleAddWebCheck).Methods(http.MethodPost)
	api.HandleFunc("/webchecks/{id}", s.handleDeleteWebCheck).Methods(http.MethodDelete)
	api.HandleFunc("/notifications", s.handleNotificationInfo).Methods(http.MethodGet)
	api.HandleFunc("/notifications/test", s.handleTestNotification).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealthz)
	r.HandleFunc("/readyz", s.handleReadyz)
	r.Use(func(next http.Handler) http.Handler { return logMiddleware(next, s.log, slowRequestThreshold) })
	s.endpoints = routeList(r)
	return r
}

func routeList(r *mux.Router) []string {
	var out []string
	_ = r.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		tpl, err := route.GetPathTemplate()
		if err != nil || route.GetHandler() == nil {
			return nil
		}
		methods, _ := route.GetMethods()
		if len(methods) == 0 {
			out = append(out, tpl)
			return nil
		}
		for _, m := range methods {
			out = append(out, m+" "+tpl)
		}
		return nil
	})
	return out
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	meta := s.Meta
	meta.ProcessID = os.Getpid()
	meta.Endpoints = s.endpoints
	writeJSON(w, meta)
}

func (s *Server) handleSystemLoad(w http.ResponseWriter, r *http.Request) {
	sort := metrics.SortMemory
	if v := r.URL.Query().Get("sort"); v != "" {
		sort = metrics.ProcessSort(v)
	}
	load, err := s.Metrics.SystemLoad(r.Context(), sort, queryInt(r, "limit", 10))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, load)
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.Metrics.SystemInfo(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, info)
}

// handleSnapshot builds the snapshot the current monitors would evaluate against.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	monitors, err := s.Store.ListMonitors(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := s.Items.BuildSnapshot(r.Context(), monitors)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleListMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := s.Store.ListMonitors(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, monitors)
}

type addMonitorRequest struct {
	Type            monitor.Type           `json:"type"`
	MonitoredItemID *string                `json:"monitoredItemId"`
	Threshold       monitor.MonitoredValue `json:"threshold"`
	Inertia         string                 `json:"inertia"`
}

func (s *Server) handleAddMonitor(w http.ResponseWriter, r *http.Request) {
	var req addMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	var inertia time.Duration
	if req.Inertia != "" {
		d, err := time.ParseDuration(req.Inertia)
		if err != nil {
			http.Error(w, "invalid inertia: "+err.Error(), http.StatusBadRequest)
			return
		}
		inertia = d
	}
	m := monitor.Monitor{
		ID:   uuid.New(),
		Type: req.Type,
		Config: monitor.Config{
			MonitoredItemID: req.MonitoredItemID,
			Threshold:       req.Threshold,
			Inertia:         inertia,
		},
	}
	if err := m.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Store.AddMonitor(r.Context(), m); err != nil {
		s.fail(w, r, err)
		return
	}
	writeCreated(w, m)
}

func (s *Server) handleDeleteMonitor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Store.DeleteMonitor(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMonitorItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := s.Store.GetMonitor(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.Items.ResolveItem(r.Context(), m)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, item)
}

func (s *Server) handleItemsOfType(w http.ResponseWriter, r *http.Request) {
	typ, err := monitor.ParseType(mux.Vars(r)["type"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	items, err := s.Items.ResolveAllOfType(r.Context(), typ)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, items)
}

type genericEvent struct {
	Kind  events.GenericKind `json:"kind"`
	Event events.Generic     `json:"event"`
}

func (s *Server) handleGenericEvents(w http.ResponseWriter, r *http.Request) {
	list, err := s.Generic.Read(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]genericEvent, 0, len(list))
	for _, e := range list {
		out = append(out, genericEvent{Kind: e.Kind(), Event: e})
	}
	writeJSON(w, out)
}

func (s *Server) handleOngoingEvents(w http.ResponseWriter, r *http.Request) {
	list, err := s.Store.ListOngoing(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, list)
}

func (s *Server) handlePastEvents(w http.ResponseWriter, r *http.Request) {
	list, err := s.Store.ListPast(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, list)
}

type webCheckView struct {
	webcheck.Check
	Status *webcheck.Status `json:"status,omitempty"`
}

func (s *Server) handleListWebChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := s.WebChecks.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]webCheckView, 0, len(checks))
	for _, c := range checks {
		v := webCheckView{Check: c}
		if r.URL.Query().Get("status") == "1" {
			if st, ok, err := s.WebChecks.Status(r.Context(), c.ID); err == nil && ok {
				v.Status = &st
			}
		}
		out = append(out, v)
	}
	writeJSON(w, out)
}

func (s *Server) handleAddWebCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	c, err := s.WebChecks.Add(r.Context(), req.URL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeCreated(w, c)
}

func (s *Server) handleDeleteWebCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.WebChecks.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotificationInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Notifications.Info())
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	s.Notifications.SendTest(r.Context())
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	if s.Docker != nil {
		if err := s.Docker.Ping(r.Context()); err != nil {
			http.Error(w, "docker not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, monitoring.ErrItemNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.log.Error("request failed", "path", r.URL.Path, "err", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid id %q", mux.Vars(r)["id"]), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, d int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return d
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	encode(w, v)
}

func writeCreated(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	encode(w, v)
}

func encode(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
