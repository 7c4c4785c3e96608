package observability

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hazyhaar/prospect/dbopen"
	"github.com/hazyhaar/prospect/idgen"
)

func setupObsDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
}

func TestInit_CreatesTable(t *testing.T) {
	db := dbopen.OpenMemory(t)
	if err := Init(db); err != nil {
		t.Fatal(err)
	}
	if err := Init(db); err != nil {
		t.Fatalf("Init must be idempotent: %v", err)
	}
	var count int
	db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='business_event_logs'").Scan(&count)
	if count != 1 {
		t.Fatal("business_event_logs not found")
	}
}

func TestEventLogger_LogEvent(t *testing.T) {
	db := setupObsDB(t)
	el := NewEventLogger(db)

	el.LogEvent(context.Background(), BusinessEvent{
		EventType:   EventClientOnboarded,
		ServiceName: "prospect",
		EntityType:  "client",
		EntityID:    "acme",
		TenantID:    "acme",
		Action:      "create",
		Success:     true,
	})

	var eventType, action, tenant string
	db.QueryRow("SELECT event_type, action, tenant_id FROM business_event_logs LIMIT 1").Scan(&eventType, &action, &tenant)
	if eventType != EventClientOnboarded {
		t.Fatalf("event_type: got %q", eventType)
	}
	if action != "create" || tenant != "acme" {
		t.Fatalf("action=%q tenant=%q", action, tenant)
	}
}

func TestEventLogger_WithIDGenerator(t *testing.T) {
	db := setupObsDB(t)
	el := NewEventLogger(db, WithEventIDGenerator(idgen.Prefixed("evt_", idgen.Sequence())))

	el.LogEvent(context.Background(), BusinessEvent{EventType: "test", ServiceName: "test", Action: "test"})

	var eventID string
	db.QueryRow("SELECT event_id FROM business_event_logs LIMIT 1").Scan(&eventID)
	if eventID != "evt_1" {
		t.Fatalf("custom event_id: got %q", eventID)
	}
}

func TestEventLogger_WriteFailureSwallowed(t *testing.T) {
	// WHAT: LogEvent on a database without the table does not panic or block.
	// WHY: Event recording must never fail the operation that emitted it.
	db := dbopen.OpenMemory(t)
	el := NewEventLogger(db)
	el.LogEvent(context.Background(), BusinessEvent{EventType: "x", ServiceName: "s", Action: "a"})
}

func TestEventLogger_Recent(t *testing.T) {
	db := setupObsDB(t)
	el := NewEventLogger(db, WithEventIDGenerator(idgen.Sequence()))
	ctx := context.Background()

	el.LogEvent(ctx, BusinessEvent{EventType: EventClientOnboarded, ServiceName: "prospect", Action: "create", TenantID: "a", Success: true})
	el.LogEvent(ctx, BusinessEvent{
		EventType: EventIngestBatch, ServiceName: "prospect", Action: "crawl", TenantID: "a",
		Details: Details(map[string]int{"persisted": 2, "failed": 1}), Success: true,
	})

	all, err := el.Recent(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].EventType != EventIngestBatch {
		t.Fatalf("recent: %+v", all)
	}
	if all[0].Details != `{"failed":1,"persisted":2}` {
		t.Errorf("details: %q", all[0].Details)
	}

	batches, err := el.Recent(ctx, EventIngestBatch, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 || !batches[0].Success {
		t.Fatalf("filtered: %+v", batches)
	}
}

func TestEventLogger_Cleanup(t *testing.T) {
	db := setupObsDB(t)
	el := NewEventLogger(db)
	ctx := context.Background()

	oldTs := time.Now().Add(-40 * 24 * time.Hour).Unix()
	db.Exec("INSERT INTO business_event_logs (event_id, event_type, service_name, action, success, created_at) VALUES ('e1', 'test', 'svc', 'act', 1, ?)", oldTs)
	el.LogEvent(ctx, BusinessEvent{EventType: "test", ServiceName: "svc", Action: "act"})

	if n, err := el.Cleanup(ctx, 0); err != nil || n != 0 {
		t.Fatalf("days=0 must keep everything: n=%d err=%v", n, err)
	}
	n, err := el.Cleanup(ctx, 30)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("deleted: %d", n)
	}
	var count int
	db.QueryRow("SELECT COUNT(*) FROM business_event_logs").Scan(&count)
	if count != 1 {
		t.Fatalf("remaining: %d", count)
	}
}
