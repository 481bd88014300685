// Package updatecheck announces new agent releases published on GitHub.
package updatecheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"monitee/internal/events"
)

const (
	LastAnnouncedKey = "lastAnnouncedVersion"
	githubAPI        = "https://api.github.com"
)

type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

type EventLog interface {
	Add(ctx context.Context, e events.Generic) error
}

type Notifier interface {
	Notify(ctx context.Context, e events.Event)
}

type release struct {
	TagName     string    `json:"tag_name"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
}

type Checker struct {
	user, repo string
	current    string
	kv         KV
	events     EventLog
	notifier   Notifier
	log        *slog.Logger
	now        func() time.Time
	BaseURL    string
	HTTP       *http.Client
}

func NewChecker(user, repo, currentVersion string, kv KV, log EventLog, notifier Notifier, logger *slog.Logger) *Checker {
	return &Checker{
		user:     user,
		repo:     repo,
		current:  currentVersion,
		kv:       kv,
		events:   log,
		notifier: notifier,
		log:      logger,
		now:      time.Now,
		BaseURL:  githubAPI,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Run checks once. A new version is announced at most once.
func (c *Checker) Run(ctx context.Context) {
	rel, err := c.latest(ctx)
	if err != nil {
		c.log.Warn("update check failed", "err", err)
		return
	}
	if rel.Draft || rel.Prerelease || sameVersion(rel.TagName, c.current) {
		return
	}
	last, _, err := c.kv.Get(ctx, LastAnnouncedKey)
	if err != nil {
		c.log.Error("read last announced version", "err", err)
		return
	}
	if sameVersion(last, rel.TagName) {
		return
	}
	e := events.UpdateAvailable{
		ID:             uuid.New(),
		Timestamp:      c.now().UTC(),
		CurrentVersion: c.current,
		NewVersion:     rel.TagName,
		DownloadURL:    rel.HTMLURL,
		PublishDate:    rel.PublishedAt,
	}
	if err := c.events.Add(ctx, e); err != nil {
		c.log.Error("record update event", "err", err)
		return
	}
	if err := c.kv.Put(ctx, LastAnnouncedKey, rel.TagName); err != nil {
		c.log.Error("store last announced version", "err", err)
	}
	c.log.Info("update available", "current", c.current, "new", rel.TagName)
	c.notifier.Notify(ctx, e)
}

func (c *Checker) latest(ctx context.Context) (release, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.BaseURL, c.user, c.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return release{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return release{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return release{}, fmt.Errorf("github status %d: %s", res.StatusCode, string(b))
	}
	var rel release
	if err := json.NewDecoder(res.Body).Decode(&rel); err != nil {
		return release{}, fmt.Errorf("decode release: %w", err)
	}
	if rel.TagName == "" {
		return release{}, fmt.Errorf("release without tag")
	}
	return rel, nil
}

func sameVersion(a, b string) bool {
	return strings.TrimPrefix(a, "v") == strings.TrimPrefix(b, "v")
}
