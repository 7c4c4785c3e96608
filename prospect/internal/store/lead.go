package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/huandu/go-sqlbuilder"

	"github.com/hazyhaar/prospect/dbopen"
)

// DefaultLeadLimit applies when ListLeads gets limit <= 0.
const DefaultLeadLimit = 50

// LeadFields is the allow-list of columns UpdateLead may write.
var LeadFields = []string{"company_name", "website", "contact_info", "details"}

// AddLead inserts a lead and returns its id.
func (s *Store) AddLead(ctx context.Context, l *Lead) (int64, error) {
	l.CreatedAt = s.nowMs()
	id, err := s.insert(ctx, "add lead",
		`INSERT INTO leads (company_name, website, contact_info, details, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		l.CompanyName, l.Website, l.ContactInfo, l.Details, l.CreatedAt)
	if err != nil {
		return 0, err
	}
	l.ID = id
	return id, nil
}

// UpdateLead writes the allow-listed keys of fields to lead id in one
// statement. Unknown keys are dropped. Returns false when nothing valid
// remains or the statement fails. Non-string values are stored as their
// JSON text; nil stores NULL.
func (s *Store) UpdateLead(ctx context.Context, id int64, fields map[string]any) (bool, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if slices.Contains(LeadFields, k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		s.logger.Debug("store: update lead: no valid fields", "lead_id", id)
		return false, nil
	}
	slices.Sort(keys)

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("leads")
	assignments := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := columnValue(fields[k])
		if err != nil {
			s.logger.Warn("store: update lead: bad value", "field", k, "error", err)
			return false, nil
		}
		assignments = append(assignments, ub.Assign(k, v))
	}
	ub.Set(assignments...).Where(ub.Equal("id", id))
	query, args := ub.Build()

	return s.mutate(ctx, "update lead", func(db *sql.DB) error {
		_, err := dbopen.Exec(ctx, db, query, args...)
		return err
	})
}

func columnValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("encode value: %w", err)
		}
		return string(b), nil
	}
}

// ListLeads returns up to limit lead rows, newest lead first, each joined
// with one of its solutions. A lead with n solutions appears n times; with a
// status filter only rows whose solution has that status are kept.
func (s *Store) ListLeads(ctx context.Context, status string, limit int) ([]*LeadRow, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(
		"l.id", "l.company_name",
		"COALESCE(l.website, '')", "COALESCE(l.contact_info, '')", "COALESCE(l.details, '')",
		"l.created_at", "s.id", "s.status",
	).From("leads l").
		JoinWithOption(sqlbuilder.LeftJoin, "solutions s", "s.lead_id = l.id")
	if status != "" {
		sb.Where(sb.Equal("s.status", status))
	}
	sb.OrderBy("l.created_at DESC", "l.id DESC", "s.id DESC").Limit(limitOr(limit, DefaultLeadLimit))
	query, args := sb.Build()

	var out []*LeadRow
	err := s.withDB(ctx, "list leads", func(db *sql.DB) error {
		var err error
		out, err = queryLeadRows(ctx, db, query, args...)
		return wrapQuery("list leads", err)
	})
	return out, err
}

func queryLeadRows(ctx context.Context, q querier, query string, args ...any) ([]*LeadRow, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*LeadRow{}
	for rows.Next() {
		var r LeadRow
		var solID sql.NullInt64
		var status sql.NullString
		if err := rows.Scan(&r.ID, &r.CompanyName, &r.Website, &r.ContactInfo, &r.Details,
			&r.CreatedAt, &solID, &status); err != nil {
			return nil, err
		}
		r.SolutionID = int64Ptr(solID)
		r.SolutionStatus = strPtr(status)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// GetLead returns lead id, or (nil, nil) if absent.
func (s *Store) GetLead(ctx context.Context, id int64) (*Lead, error) {
	var l *Lead
	err := s.withDB(ctx, "get lead", func(db *sql.DB) error {
		var got Lead
		err := db.QueryRowContext(ctx,
			`SELECT id, company_name, COALESCE(website, ''), COALESCE(contact_info, ''),
			COALESCE(details, ''), created_at FROM leads WHERE id = ?`, id).
			Scan(&got.ID, &got.CompanyName, &got.Website, &got.ContactInfo, &got.Details, &got.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return wrapQuery("get lead", err)
		}
		l = &got
		return nil
	})
	return l, err
}
