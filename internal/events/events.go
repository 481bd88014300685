// Package events holds the lifecycle events the agent raises and stores:
// ongoing threshold breaches, their closed history, and generic events.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"monitee/internal/monitor"
)

// Event is implemented only by the types in this package. Every switch over
// it must cover Ongoing, UpdateAvailable and MonitoredItemMissing.
type Event interface {
	EventID() uuid.UUID
	sealed()
}

// Generic is an Event that is not a threshold breach.
type Generic interface {
	Event
	Kind() GenericKind
	OccurredAt() time.Time
}

type GenericKind string

const (
	KindMonitoredItemMissing GenericKind = "MONITORED_ITEM_MISSING"
	KindUpdateAvailable      GenericKind = "UPDATE_AVAILABLE"
)

type Ongoing struct {
	ID              uuid.UUID              `json:"id"`
	MonitorID       uuid.UUID              `json:"monitorId"`
	MonitoredItemID *string                `json:"monitoredItemId,omitempty"`
	MonitorType     monitor.Type           `json:"monitorType"`
	StartTime       time.Time              `json:"startTime"`
	Threshold       monitor.MonitoredValue `json:"threshold"`
	Value           monitor.MonitoredValue `json:"value"`
	Inertia         time.Duration          `json:"inertia"`
}

func (e Ongoing) EventID() uuid.UUID { return e.ID }
func (Ongoing) sealed()              {}

// Close turns the breach into a history record ending at end.
func (e Ongoing) Close(end time.Time, last monitor.MonitoredValue) Past {
	return Past{
		ID:              e.ID,
		MonitorID:       e.MonitorID,
		MonitoredItemID: e.MonitoredItemID,
		MonitorType:     e.MonitorType,
		StartTime:       e.StartTime,
		EndTime:         end,
		Threshold:       e.Threshold,
		Value:           last,
	}
}

type Past struct {
	ID              uuid.UUID              `json:"id"`
	MonitorID       uuid.UUID              `json:"monitorId"`
	MonitoredItemID *string                `json:"monitoredItemId,omitempty"`
	MonitorType     monitor.Type           `json:"monitorType"`
	StartTime       time.Time              `json:"startTime"`
	EndTime         time.Time              `json:"endTime"`
	Threshold       monitor.MonitoredValue `json:"threshold"`
	Value           monitor.MonitoredValue `json:"value"`
}

type UpdateAvailable struct {
	ID             uuid.UUID `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	CurrentVersion string    `json:"currentVersion"`
	NewVersion     string    `json:"newVersion"`
	DownloadURL    string    `json:"downloadUrl"`
	PublishDate    time.Time `json:"publishDate"`
}

func (e UpdateAvailable) EventID() uuid.UUID    { return e.ID }
func (UpdateAvailable) sealed()                 {}
func (UpdateAvailable) Kind() GenericKind       { return KindUpdateAvailable }
func (e UpdateAvailable) OccurredAt() time.Time { return e.Timestamp }

type MonitoredItemMissing struct {
	ID              uuid.UUID    `json:"id"`
	Timestamp       time.Time    `json:"timestamp"`
	MonitorType     monitor.Type `json:"monitorType"`
	MonitorID       uuid.UUID    `json:"monitorId"`
	MonitoredItemID *string      `json:"monitoredItemId,omitempty"`
}

func (e MonitoredItemMissing) EventID() uuid.UUID    { return e.ID }
func (MonitoredItemMissing) sealed()                 {}
func (MonitoredItemMissing) Kind() GenericKind       { return KindMonitoredItemMissing }
func (e MonitoredItemMissing) OccurredAt() time.Time { return e.Timestamp }

// MarshalGeneric encodes a generic event with its kind as "type".
func MarshalGeneric(e Generic) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	kind, _ := json.Marshal(e.Kind())
	fields["type"] = kind
	return json.Marshal(fields)
}

// UnmarshalGeneric decodes a payload produced for the given kind.
func UnmarshalGeneric(kind GenericKind, payload []byte) (Generic, error) {
	switch kind {
	case KindMonitoredItemMissing:
		var e MonitoredItemMissing
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case KindUpdateAvailable:
		var e UpdateAvailable
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, &UnknownKindError{Kind: kind}
	}
}

type UnknownKindError struct {
	Kind GenericKind
}

func (e *UnknownKindError) Error() string { return "unknown generic event kind " + string(e.Kind) }
