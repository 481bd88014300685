package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"monitee/internal/events"
)

// EventLog is the append-only store of generic events.
type EventLog struct {
	db *sql.DB
}

func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db}
}

func (l *EventLog) Add(ctx context.Context, e events.Generic) error {
	payload, err := events.MarshalGeneric(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Kind(), err)
	}
	var monitorID any
	if m, ok := e.(events.MonitoredItemMissing); ok {
		monitorID = m.MonitorID.String()
	}
	_, err = l.db.ExecContext(ctx, `INSERT INTO generic_events (id,kind,ts,monitor_id,payload_json) VALUES (?,?,?,?,?)`,
		e.EventID().String(), string(e.Kind()), e.OccurredAt().UTC(), monitorID, string(payload))
	return err
}

// Read returns every stored event, newest first.
func (l *EventLog) Read(ctx context.Context) ([]events.Generic, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT kind,payload_json FROM generic_events ORDER BY ts DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []events.Generic{}
	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, err
		}
		e, err := events.UnmarshalGeneric(events.GenericKind(kind), []byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *EventLog) RemoveByID(ctx context.Context, id uuid.UUID) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM generic_events WHERE id = ?`, id.String())
	return err
}
