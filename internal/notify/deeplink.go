package notify

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"monitee/internal/events"
)

const appBaseURL = "https://monitee.app"

// DeepLinks points notifications into the companion app.
type DeepLinks struct {
	ServerID    uuid.UUID
	ReleaseUser string
	ReleaseRepo string
}

func (d DeepLinks) For(e events.Event) string {
	switch e := e.(type) {
	case events.Ongoing:
		return d.server("monitor", e.MonitorID.String())
	case events.MonitoredItemMissing:
		return d.server("events")
	case events.UpdateAvailable:
		return d.Release()
	}
	panic(fmt.Sprintf("notify: no deep link for %T", e))
}

func (d DeepLinks) Release() string {
	return fmt.Sprintf("https://github.com/%s/%s/releases/latest", d.ReleaseUser, d.ReleaseRepo)
}

// Events is the app page listing generic events for this server.
func (d DeepLinks) Events() string { return d.server("events") }

func (d DeepLinks) server(segments ...string) string {
	u, _ := url.JoinPath(appBaseURL, append([]string{"server", d.ServerID.String()}, segments...)...)
	return u
}
