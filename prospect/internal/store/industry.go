package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/huandu/go-sqlbuilder"
)

// DefaultEntryLimit applies when QueryIndustryEntries gets limit <= 0.
const DefaultEntryLimit = 10

var entryColumns = []string{
	"id", "source", "title", "content", "pain_points", "tags", "crawled_at", "created_at",
}

// AddIndustryEntry appends an entry and returns its id. e.ID and
// e.CreatedAt are filled in.
func (s *Store) AddIndustryEntry(ctx context.Context, e *IndustryEntry) (int64, error) {
	e.Tags = NormalizeTags(e.Tags)
	e.CreatedAt = s.nowMs()
	id, err := s.insert(ctx, "add industry entry",
		`INSERT INTO industry_data (source, title, content, pain_points, tags, crawled_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Source, nullString(e.Title), e.Content, e.PainPoints,
		nullString(EncodeTags(e.Tags)), nullString(e.CrawledAt), e.CreatedAt)
	if err != nil {
		return 0, err
	}
	e.ID = id
	return id, nil
}

// GetIndustryEntry returns one entry by id, or (nil, nil) if absent.
func (s *Store) GetIndustryEntry(ctx context.Context, id int64) (*IndustryEntry, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(entryColumns...).From("industry_data").Where(sb.Equal("id", id))
	query, args := sb.Build()

	var e *IndustryEntry
	err := s.withDB(ctx, "get industry entry", func(db *sql.DB) error {
		var err error
		e, err = s.scanEntry(db.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			e, err = nil, nil
		}
		return wrapQuery("get industry entry", err)
	})
	return e, err
}

// QueryIndustryEntries returns up to limit entries, newest first. With a
// non-empty tags set only entries sharing at least one tag are returned.
func (s *Store) QueryIndustryEntries(ctx context.Context, limit int, tags []string) ([]*IndustryEntry, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(entryColumns...).From("industry_data")
	if f := tagFilter(&sb.Cond, tags); f != "" {
		sb.Where(f)
	}
	sb.OrderBy("created_at DESC", "id DESC").Limit(limitOr(limit, DefaultEntryLimit))
	return s.listEntries(ctx, "query industry entries", sb)
}

// SearchIndustryEntries returns every entry whose title or content contains
// keyword (case-insensitive), ANDed with the tag filter, newest first.
func (s *Store) SearchIndustryEntries(ctx context.Context, keyword string, tags []string) ([]*IndustryEntry, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(entryColumns...).From("industry_data")
	where := []string{keywordFilter(&sb.Cond, keyword)}
	if f := tagFilter(&sb.Cond, tags); f != "" {
		where = append(where, f)
	}
	sb.Where(where...).OrderBy("created_at DESC", "id DESC")
	return s.listEntries(ctx, "search industry entries", sb)
}

func (s *Store) listEntries(ctx context.Context, op string, sb *sqlbuilder.SelectBuilder) ([]*IndustryEntry, error) {
	query, args := sb.Build()
	var out []*IndustryEntry
	err := s.withDB(ctx, op, func(db *sql.DB) error {
		var err error
		out, err = s.queryEntries(ctx, db, query, args...)
		return wrapQuery(op, err)
	})
	return out, err
}

func (s *Store) queryEntries(ctx context.Context, q querier, query string, args ...any) ([]*IndustryEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*IndustryEntry{}
	for rows.Next() {
		e, err := s.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanEntry(row scanner) (*IndustryEntry, error) {
	var e IndustryEntry
	var title, tags, crawledAt sql.NullString
	if err := row.Scan(&e.ID, &e.Source, &title, &e.Content, &e.PainPoints,
		&tags, &crawledAt, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Title = strPtr(title)
	e.CrawledAt = strPtr(crawledAt)
	decoded, err := DecodeTags(strPtr(tags))
	if err != nil {
		s.logger.Warn("store: malformed tags", "entry_id", e.ID, "error", err)
		decoded = nil
	}
	e.Tags = decoded
	return &e, nil
}
