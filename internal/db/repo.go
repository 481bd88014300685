package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"monitee/internal/events"
	"monitee/internal/monitor"
	"monitee/internal/webcheck"
)

var ErrNotFound = errors.New("not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repository) ListMonitors(ctx context.Context) ([]monitor.Monitor, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,type,monitored_item_id,threshold_json,inertia_ns FROM monitors ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []monitor.Monitor{}
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) GetMonitor(ctx context.Context, id uuid.UUID) (monitor.Monitor, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id,type,monitored_item_id,threshold_json,inertia_ns FROM monitors WHERE id = ?`, id.String())
	m, err := scanMonitor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return monitor.Monitor{}, ErrNotFound
	}
	return m, err
}

func (r *Repository) AddMonitor(ctx context.Context, m monitor.Monitor) error {
	threshold, err := json.Marshal(m.Config.Threshold)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO monitors (id,type,monitored_item_id,threshold_json,inertia_ns,created_at) VALUES (?,?,?,?,?,?)`,
		m.ID.String(), string(m.Type), m.Config.MonitoredItemID, string(threshold), int64(m.Config.Inertia), time.Now().UTC())
	return err
}

// DeleteMonitor removes the monitor together with its open breach and
// missing-item events.
func (r *Repository) DeleteMonitor(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM monitors WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ongoing_events WHERE monitor_id = ?`, id.String()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM generic_events WHERE monitor_id = ?`, id.String()); err != nil {
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMonitor(s scanner) (monitor.Monitor, error) {
	var (
		id, typ, threshold string
		itemID             sql.NullString
		inertia            int64
	)
	if err := s.Scan(&id, &typ, &itemID, &threshold, &inertia); err != nil {
		return monitor.Monitor{}, err
	}
	m := monitor.Monitor{Type: monitor.Type(typ), Config: monitor.Config{Inertia: time.Duration(inertia)}}
	var err error
	if m.ID, err = uuid.Parse(id); err != nil {
		return monitor.Monitor{}, fmt.Errorf("monitor id %q: %w", id, err)
	}
	if itemID.Valid {
		m.Config.MonitoredItemID = &itemID.String
	}
	if err := json.Unmarshal([]byte(threshold), &m.Config.Threshold); err != nil {
		return monitor.Monitor{}, fmt.Errorf("monitor %s threshold: %w", id, err)
	}
	return m, nil
}

func (r *Repository) InsertOngoing(ctx context.Context, e events.Ongoing) error {
	threshold, err := json.Marshal(e.Threshold)
	if err != nil {
		return err
	}
	value, err := json.Marshal(e.Value)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO ongoing_events (id,monitor_id,monitored_item_id,type,start_ts,threshold_json,value_json,inertia_ns)
		VALUES (?,?,?,?,?,?,?,?)`,
		e.ID.String(), e.MonitorID.String(), e.MonitoredItemID, string(e.MonitorType), e.StartTime.UTC(), string(threshold), string(value), int64(e.Inertia))
	return err
}

func (r *Repository) ListOngoing(ctx context.Context) ([]events.Ongoing, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,monitor_id,monitored_item_id,type,start_ts,threshold_json,value_json,inertia_ns FROM ongoing_events ORDER BY start_ts DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []events.Ongoing{}
	for rows.Next() {
		e, err := scanOngoing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// OngoingForMonitor returns the open breach of a monitor, if any.
func (r *Repository) OngoingForMonitor(ctx context.Context, monitorID uuid.UUID) (events.Ongoing, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id,monitor_id,monitored_item_id,type,start_ts,threshold_json,value_json,inertia_ns FROM ongoing_events WHERE monitor_id = ?`, monitorID.String())
	e, err := scanOngoing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return events.Ongoing{}, false, nil
	}
	if err != nil {
		return events.Ongoing{}, false, err
	}
	return e, true, nil
}

func scanOngoing(s scanner) (events.Ongoing, error) {
	var (
		id, monitorID, typ, threshold, value string
		itemID                               sql.NullString
		inertia                              int64
		e                                    events.Ongoing
	)
	if err := s.Scan(&id, &monitorID, &itemID, &typ, &e.StartTime, &threshold, &value, &inertia); err != nil {
		return events.Ongoing{}, err
	}
	if err := parseIDs(&e.ID, id, &e.MonitorID, monitorID); err != nil {
		return events.Ongoing{}, err
	}
	if itemID.Valid {
		e.MonitoredItemID = &itemID.String
	}
	e.MonitorType = monitor.Type(typ)
	e.Inertia = time.Duration(inertia)
	if err := decodeValues(threshold, &e.Threshold, value, &e.Value); err != nil {
		return events.Ongoing{}, fmt.Errorf("ongoing event %s: %w", id, err)
	}
	return e, nil
}

// CloseOngoing moves an open breach into the history in one transaction.
func (r *Repository) CloseOngoing(ctx context.Context, p events.Past) error {
	threshold, err := json.Marshal(p.Threshold)
	if err != nil {
		return err
	}
	value, err := json.Marshal(p.Value)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM ongoing_events WHERE id = ?`, p.ID.String()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO past_events (id,monitor_id,monitored_item_id,type,start_ts,end_ts,threshold_json,value_json)
		VALUES (?,?,?,?,?,?,?,?)`,
		p.ID.String(), p.MonitorID.String(), p.MonitoredItemID, string(p.MonitorType), p.StartTime.UTC(), p.EndTime.UTC(), string(threshold), string(value)); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) ListPast(ctx context.Context, limit int) ([]events.Past, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id,monitor_id,monitored_item_id,type,start_ts,end_ts,threshold_json,value_json FROM past_events ORDER BY end_ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]events.Past, 0, limit)
	for rows.Next() {
		var (
			id, monitorID, typ, threshold, value string
			itemID                               sql.NullString
			p                                    events.Past
		)
		if err := rows.Scan(&id, &monitorID, &itemID, &typ, &p.StartTime, &p.EndTime, &threshold, &value); err != nil {
			return nil, err
		}
		if err := parseIDs(&p.ID, id, &p.MonitorID, monitorID); err != nil {
			return nil, err
		}
		if itemID.Valid {
			p.MonitoredItemID = &itemID.String
		}
		p.MonitorType = monitor.Type(typ)
		if err := decodeValues(threshold, &p.Threshold, value, &p.Value); err != nil {
			return nil, fmt.Errorf("past event %s: %w", id, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) DeletePastOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM past_events WHERE end_ts < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) ListWebChecks(ctx context.Context) ([]webcheck.Check, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,url,created_at FROM webserver_checks ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []webcheck.Check{}
	for rows.Next() {
		var (
			id string
			c  webcheck.Check
		)
		if err := rows.Scan(&id, &c.URL, &c.CreatedAt); err != nil {
			return nil, err
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("web check id %q: %w", id, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) AddWebCheck(ctx context.Context, c webcheck.Check) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO webserver_checks (id,url,created_at) VALUES (?,?,?)`, c.ID.String(), c.URL, c.CreatedAt.UTC())
	return err
}

func (r *Repository) DeleteWebCheck(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM webserver_checks WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func parseIDs(id *uuid.UUID, rawID string, monitorID *uuid.UUID, rawMonitorID string) error {
	var err error
	if *id, err = uuid.Parse(rawID); err != nil {
		return fmt.Errorf("event id %q: %w", rawID, err)
	}
	if *monitorID, err = uuid.Parse(rawMonitorID); err != nil {
		return fmt.Errorf("monitor id %q: %w", rawMonitorID, err)
	}
	return nil
}

func decodeValues(rawThreshold string, threshold *monitor.MonitoredValue, rawValue string, value *monitor.MonitoredValue) error {
	if err := json.Unmarshal([]byte(rawThreshold), threshold); err != nil {
		return fmt.Errorf("threshold: %w", err)
	}
	if err := json.Unmarshal([]byte(rawValue), value); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	return nil
}
