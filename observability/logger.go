// Package observability records business events (client onboarded, ingest
// batch finished) in a SQLite table separate from tenant stores.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/prospect/idgen"
)

// Event types.
const (
	EventClientOnboarded = "client_onboarded"
	EventIngestBatch     = "ingest_batch"
)

// BusinessEvent represents a domain-level event to record.
type BusinessEvent struct {
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	ServiceName string `json:"service_name"`
	EntityType  string `json:"entity_type,omitempty"`
	EntityID    string `json:"entity_id,omitempty"`
	TenantID    string `json:"tenant_id,omitempty"`
	Action      string `json:"action"`
	Details     string `json:"details,omitempty"` // optional JSON
	Success     bool   `json:"success"`
	CreatedAt   int64  `json:"created_at"`
}

// Details marshals v for BusinessEvent.Details. Marshal failures yield "".
func Details(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// EventLogger writes business events and manages retention cleanup.
type EventLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
	now    func() time.Time
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// WithLogger sets the logger used to report write failures.
func WithLogger(logger *slog.Logger) EventLoggerOption {
	return func(l *EventLogger) { l.logger = logger }
}

// NewEventLogger creates a logger backed by the given database. The schema
// must already be applied (Init).
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:     db,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a business event. Errors are logged, never returned, so
// a failing event store does not block the operation that emitted it.
func (l *EventLogger) LogEvent(ctx context.Context, event BusinessEvent) {
	eventID := l.newID()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO business_event_logs (
			event_id, event_type, service_name, entity_type, entity_id,
			tenant_id, action, details, success, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		eventID, event.EventType, event.ServiceName, event.EntityType, event.EntityID,
		event.TenantID, event.Action, event.Details, event.Success, l.now().Unix())
	if err != nil {
		l.logger.Error("observability: event log failed", "error", err, "event_type", event.EventType)
	}
}

// Recent returns the latest events, newest first. An empty eventType
// matches every type.
func (l *EventLogger) Recent(ctx context.Context, eventType string, limit int) ([]*BusinessEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_id, event_type, service_name, COALESCE(entity_type, ''),
			COALESCE(entity_id, ''), COALESCE(tenant_id, ''), action,
			COALESCE(details, ''), success, created_at
		FROM business_event_logs
		WHERE ? = '' OR event_type = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		eventType, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := []*BusinessEvent{}
	for rows.Next() {
		var e BusinessEvent
		if err := rows.Scan(&e.EventID, &e.EventType, &e.ServiceName, &e.EntityType,
			&e.EntityID, &e.TenantID, &e.Action, &e.Details, &e.Success, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Cleanup deletes events older than days. Zero or negative keeps everything.
func (l *EventLogger) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := l.now().Unix() - int64(days*86400)
	res, err := l.db.ExecContext(ctx, `DELETE FROM business_event_logs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup events: %w", err)
	}
	return res.RowsAffected()
}
