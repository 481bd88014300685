package webcheck

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Check struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

type Status struct {
	CheckID      uuid.UUID `json:"checkId"`
	ResponseCode int       `json:"responseCode"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checkedAt"`
}

// Up means the server answered a GET with 200.
func (s Status) Up() bool { return s.ResponseCode == http.StatusOK }

type Store interface {
	ListWebChecks(ctx context.Context) ([]Check, error)
	AddWebCheck(ctx context.Context, c Check) error
	DeleteWebCheck(ctx context.Context, id uuid.UUID) error
}

// Service owns the registered web checks and probes them on demand. A probe
// result is reused for statusTTL so one evaluation cycle issues one request.
type Service struct {
	store     Store
	log       *slog.Logger
	now       func() time.Time
	statusTTL time.Duration
	HTTP      *http.Client

	mu       sync.Mutex
	statuses map[uuid.UUID]Status
}

func NewService(store Store, timeout, statusTTL time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		store:     store,
		log:       logger,
		now:       time.Now,
		statusTTL: statusTTL,
		HTTP:      &http.Client{Timeout: timeout},
		statuses:  map[uuid.UUID]Status{},
	}
}

func (s *Service) List(ctx context.Context) ([]Check, error) {
	return s.store.ListWebChecks(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Check, bool, error) {
	checks, err := s.store.ListWebChecks(ctx)
	if err != nil {
		return Check{}, false, err
	}
	for _, c := range checks {
		if c.ID == id {
			return c, true, nil
		}
	}
	return Check{}, false, nil
}

func (s *Service) Add(ctx context.Context, rawURL string) (Check, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Check{}, fmt.Errorf("invalid web check url %q", rawURL)
	}
	c := Check{ID: uuid.New(), URL: u.String(), CreatedAt: s.now().UTC()}
	if err := s.store.AddWebCheck(ctx, c); err != nil {
		return Check{}, err
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteWebCheck(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.statuses, id)
	s.mu.Unlock()
	return nil
}

// Status probes the check unless a fresh result is remembered.
func (s *Service) Status(ctx context.Context, id uuid.UUID) (Status, bool, error) {
	s.mu.Lock()
	st, ok := s.statuses[id]
	s.mu.Unlock()
	if ok && s.now().Sub(st.CheckedAt) < s.statusTTL {
		return st, true, nil
	}
	c, found, err := s.Get(ctx, id)
	if err != nil {
		return Status{}, false, err
	}
	if !found {
		return Status{}, false, nil
	}
	st = s.probe(ctx, c)
	s.mu.Lock()
	s.statuses[id] = st
	s.mu.Unlock()
	return st, true, nil
}

func (s *Service) probe(ctx context.Context, c Check) Status {
	st := Status{CheckID: c.ID, CheckedAt: s.now().UTC()}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	res, err := s.HTTP.Do(req)
	if err != nil {
		s.log.Debug("web check failed", "url", c.URL, "err", err)
		st.Error = err.Error()
		return st
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
	st.ResponseCode = res.StatusCode
	return st
}
