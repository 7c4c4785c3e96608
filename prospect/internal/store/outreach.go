package store

import (
	"context"
	"database/sql"

	"github.com/huandu/go-sqlbuilder"

	"github.com/hazyhaar/prospect/dbopen"
)

// DefaultOutreachLimit applies when ListOutreach gets limit <= 0.
const DefaultOutreachLimit = 50

// LogOutreach records a sent message for leadID. Returns ErrUnknownLead if
// the lead does not exist.
func (s *Store) LogOutreach(ctx context.Context, leadID int64, message string) (int64, error) {
	return s.insert(ctx, "log outreach",
		`INSERT INTO outreach_log (lead_id, message_sent, sent_at) VALUES (?, ?, ?)`,
		leadID, message, s.nowMs())
}

// UpdateOutreachResponse sets response and updated_at together. Calling it
// again overwrites both.
func (s *Store) UpdateOutreachResponse(ctx context.Context, id int64, response string) (bool, error) {
	return s.mutate(ctx, "update outreach response", func(db *sql.DB) error {
		_, err := dbopen.Exec(ctx, db,
			`UPDATE outreach_log SET response = ?, updated_at = ? WHERE id = ?`,
			response, s.nowMs(), id)
		return err
	})
}

// ListOutreach returns up to limit records newest first, each carrying its
// lead's company name. leadID 0 disables the lead filter. Records whose lead
// is missing are excluded.
func (s *Store) ListOutreach(ctx context.Context, leadID int64, limit int) ([]*OutreachRecord, error) {
	sb := outreachSelect()
	if leadID != 0 {
		sb.Where(sb.Equal("o.lead_id", leadID))
	}
	sb.Limit(limitOr(limit, DefaultOutreachLimit))
	return s.listOutreach(ctx, "list outreach", sb)
}

// PendingOutreach returns every record still awaiting a response.
func (s *Store) PendingOutreach(ctx context.Context) ([]*OutreachRecord, error) {
	sb := outreachSelect()
	sb.Where(sb.IsNull("o.response"))
	return s.listOutreach(ctx, "pending outreach", sb)
}

func outreachSelect() *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("o.id", "o.lead_id", "o.message_sent", "o.sent_at", "o.response", "o.updated_at", "l.company_name").
		From("outreach_log o").
		Join("leads l", "l.id = o.lead_id").
		OrderBy("o.sent_at DESC", "o.id DESC")
	return sb
}

func (s *Store) listOutreach(ctx context.Context, op string, sb *sqlbuilder.SelectBuilder) ([]*OutreachRecord, error) {
	query, args := sb.Build()
	var out []*OutreachRecord
	err := s.withDB(ctx, op, func(db *sql.DB) error {
		var err error
		out, err = queryOutreach(ctx, db, query, args...)
		return wrapQuery(op, err)
	})
	return out, err
}

func queryOutreach(ctx context.Context, q querier, query string, args ...any) ([]*OutreachRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*OutreachRecord{}
	for rows.Next() {
		var r OutreachRecord
		var response sql.NullString
		var updatedAt sql.NullInt64
		if err := rows.Scan(&r.ID, &r.LeadID, &r.MessageSent, &r.SentAt,
			&response, &updatedAt, &r.CompanyName); err != nil {
			return nil, err
		}
		r.Response = strPtr(response)
		r.UpdatedAt = int64Ptr(updatedAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}
