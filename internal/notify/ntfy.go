package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	DefaultNtfyURL = "https://ntfy.sh"
	ntfyIcon       = "https://monitee.app/logo/logo.png"
	topicPrefix    = "monitee-agent"
)

type NtfyConfig struct {
	Enabled bool
	URL     string
	Topic   string
}

type NtfyInfo struct {
	Enabled          bool   `json:"enabled"`
	AppTopicDeeplink string `json:"ntfyAppTopicDeeplink"`
	Topic            string `json:"topic"`
}

type ntfyMessage struct {
	Title    string `json:"title,omitempty"`
	Message  string `json:"message"`
	Priority int    `json:"priority,omitempty"`
	Click    string `json:"click,omitempty"`
	Icon     string `json:"icon,omitempty"`
}

// Ntfy publishes to {baseURL}/{topic}. The JSON body carries no topic since
// the path already names it.
type Ntfy struct {
	enabled bool
	baseURL string
	topic   string
	HTTP    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewNtfy(cfg NtfyConfig, serverID uuid.UUID, logger *slog.Logger) *Ntfy {
	base := cfg.URL
	if base == "" {
		base = DefaultNtfyURL
	}
	topic := cfg.Topic
	if topic == "" {
		topic = topicPrefix + "-" + serverID.String()
	}
	return &Ntfy{
		enabled: cfg.Enabled,
		baseURL: base,
		topic:   topic,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
		log:     logger,
	}
}

func (n *Ntfy) Name() string  { return "ntfy" }
func (n *Ntfy) Enabled() bool { return n.enabled }

func (n *Ntfy) Send(ctx context.Context, p Params) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ntfy rate limit: %w", err)
	}
	endpoint, err := url.JoinPath(n.baseURL, n.topic)
	if err != nil {
		return fmt.Errorf("ntfy url: %w", err)
	}
	b, err := json.Marshal(ntfyMessage{
		Title:    p.Title,
		Message:  p.Message,
		Priority: p.Priority,
		Click:    p.ClickURL,
		Icon:     ntfyIcon,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := n.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("ntfy status %d: %s", res.StatusCode, string(body))
	}
	n.log.Info("notification sent", "channel", "ntfy", "status", res.StatusCode, "response", string(body))
	return nil
}

func (n *Ntfy) Info() NtfyInfo {
	host := n.baseURL
	if u, err := url.Parse(n.baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return NtfyInfo{Enabled: n.enabled, AppTopicDeeplink: fmt.Sprintf("ntfy://%s/%s", host, n.topic), Topic: n.topic}
}
