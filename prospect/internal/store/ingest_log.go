package store

import (
	"context"
	"database/sql"

	"github.com/hazyhaar/prospect/dbopen"
)

// DefaultIngestLimit applies when IngestHistory gets limit <= 0.
const DefaultIngestLimit = 50

// InsertIngestLog records one URL outcome of an ingestion batch.
func (s *Store) InsertIngestLog(ctx context.Context, e *IngestLogEntry) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = s.nowMs()
	}
	var entryID sql.NullInt64
	if e.EntryID != nil {
		entryID = sql.NullInt64{Int64: *e.EntryID, Valid: true}
	}
	return s.withDB(ctx, "insert ingest log", func(db *sql.DB) error {
		_, err := dbopen.Exec(ctx, db,
			`INSERT INTO ingest_log (id, batch_id, url, status, entry_id, error, duration_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.BatchID, e.URL, e.Status, entryID, e.Error, e.DurationMs, e.CreatedAt)
		return wrapQuery("insert ingest log", err)
	})
}

// IngestHistory returns the latest ingest log rows, newest first.
func (s *Store) IngestHistory(ctx context.Context, limit int) ([]*IngestLogEntry, error) {
	out := []*IngestLogEntry{}
	err := s.withDB(ctx, "ingest history", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT id, batch_id, url, status, entry_id, error, duration_ms, created_at
			FROM ingest_log ORDER BY created_at DESC, rowid DESC LIMIT ?`,
			limitOr(limit, DefaultIngestLimit))
		if err != nil {
			return wrapQuery("ingest history", err)
		}
		defer rows.Close()
		for rows.Next() {
			var e IngestLogEntry
			var entryID sql.NullInt64
			if err := rows.Scan(&e.ID, &e.BatchID, &e.URL, &e.Status, &entryID,
				&e.Error, &e.DurationMs, &e.CreatedAt); err != nil {
				return wrapQuery("ingest history", err)
			}
			e.EntryID = int64Ptr(entryID)
			out = append(out, &e)
		}
		return wrapQuery("ingest history", rows.Err())
	})
	return out, err
}
