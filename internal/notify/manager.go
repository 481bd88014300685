// Package notify formats events and delivers them to push channels.
package notify

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"monitee/internal/events"
)

const (
	PriorityOngoing = 4
	PriorityDefault = 3
)

// Params is what a channel receives, independent of the event kind.
type Params struct {
	Title    string
	Message  string
	ClickURL string
	Priority int
}

type Channel interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, p Params) error
}

type ChannelInfo struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type ServiceInfo struct {
	ServerName string        `json:"serverName"`
	ServerID   string        `json:"serverId"`
	Ntfy       *NtfyInfo     `json:"ntfy,omitempty"`
	Channels   []ChannelInfo `json:"channels"`
}

// Manager sends every event to each enabled channel in turn. A channel
// failure is logged and counted, never returned.
type Manager struct {
	channels   []Channel
	formatter  Formatter
	links      DeepLinks
	serverName string
	timeout    time.Duration
	log        *slog.Logger
	deliveries metric.Int64Counter
}

func NewManager(serverName string, formatter Formatter, links DeepLinks, timeout time.Duration, logger *slog.Logger, channels ...Channel) *Manager {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deliveries, _ := otel.Meter("monitee/notify").Int64Counter("monitee.notifications",
		metric.WithDescription("Notification deliveries by channel and result"))
	return &Manager{
		channels:   channels,
		formatter:  formatter,
		links:      links,
		serverName: serverName,
		timeout:    timeout,
		log:        logger,
		deliveries: deliveries,
	}
}

// Params builds the channel payload for an event.
func (m *Manager) Params(e events.Event) Params {
	title, message := m.formatter.Format(e, m.serverName)
	priority := PriorityDefault
	if _, ok := e.(events.Ongoing); ok {
		priority = PriorityOngoing
	}
	return Params{Title: title, Message: message, ClickURL: m.links.For(e), Priority: priority}
}

func (m *Manager) Notify(ctx context.Context, e events.Event) {
	p := m.Params(e)
	m.log.Info("sending notification", "event", e.EventID(), "title", p.Title)
	m.dispatch(ctx, p)
}

// SendTest delivers a fixed message so users can check their setup.
func (m *Manager) SendTest(ctx context.Context) {
	m.dispatch(ctx, Params{
		Title:    "Test notification from " + m.serverName,
		Message:  "Notifications are working",
		ClickURL: m.links.Events(),
		Priority: PriorityDefault,
	})
}

func (m *Manager) dispatch(ctx context.Context, p Params) {
	for _, ch := range m.channels {
		if !ch.Enabled() {
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := ch.Send(sendCtx, p)
		cancel()
		result := "sent"
		if err != nil {
			result = "failed"
			m.log.Warn("notify failed", "channel", ch.Name(), "err", err)
		}
		m.deliveries.Add(ctx, 1, metric.WithAttributes(
			attribute.String("channel", ch.Name()),
			attribute.String("result", result),
		))
	}
}

func (m *Manager) Info() ServiceInfo {
	info := ServiceInfo{ServerName: m.serverName, ServerID: m.links.ServerID.String()}
	for _, ch := range m.channels {
		info.Channels = append(info.Channels, ChannelInfo{Name: ch.Name(), Enabled: ch.Enabled()})
		if n, ok := ch.(*Ntfy); ok {
			ni := n.Info()
			info.Ntfy = &ni
		}
	}
	return info
}
