package store

import (
	"context"
	"database/sql"
	"slices"

	"github.com/huandu/go-sqlbuilder"

	"github.com/hazyhaar/prospect/dbopen"
)

var validStatuses = []string{StatusPending, StatusSent, StatusReviewed, StatusApproved, StatusRejected}

// ValidSolutionStatus reports whether status is one of the five solution
// statuses.
func ValidSolutionStatus(status string) bool {
	return slices.Contains(validStatuses, status)
}

// AddSolution records a pending solution for leadID. Returns ErrUnknownLead
// if the lead does not exist.
func (s *Store) AddSolution(ctx context.Context, leadID int64, text string) (int64, error) {
	return s.insert(ctx, "add solution",
		`INSERT INTO solutions (lead_id, solution_text, generated_at, status) VALUES (?, ?, ?, ?)`,
		leadID, text, s.nowMs(), StatusPending)
}

// ListSolutions returns solutions newest first. leadID 0 and status ""
// disable the respective filter.
func (s *Store) ListSolutions(ctx context.Context, leadID int64, status string) ([]*Solution, error) {
	return s.listSolutions(ctx, leadID, status, 0)
}

func (s *Store) listSolutions(ctx context.Context, leadID int64, status string, limit int) ([]*Solution, error) {
	var out []*Solution
	err := s.withDB(ctx, "list solutions", func(db *sql.DB) error {
		var err error
		out, err = querySolutions(ctx, db, leadID, status, limit)
		return wrapQuery("list solutions", err)
	})
	return out, err
}

func querySolutions(ctx context.Context, q querier, leadID int64, status string, limit int) ([]*Solution, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "lead_id", "solution_text", "generated_at", "status").From("solutions")
	var where []string
	if leadID != 0 {
		where = append(where, sb.Equal("lead_id", leadID))
	}
	if status != "" {
		where = append(where, sb.Equal("status", status))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("generated_at DESC", "id DESC")
	if limit > 0 {
		sb.Limit(limit)
	}
	query, args := sb.Build()

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*Solution{}
	for rows.Next() {
		var sol Solution
		if err := rows.Scan(&sol.ID, &sol.LeadID, &sol.SolutionText, &sol.GeneratedAt, &sol.Status); err != nil {
			return nil, err
		}
		out = append(out, &sol)
	}
	return out, rows.Err()
}

// UpdateSolutionStatus overwrites the status of solution id. Any valid
// status may follow any other; invalid values return false.
func (s *Store) UpdateSolutionStatus(ctx context.Context, id int64, status string) (bool, error) {
	if !ValidSolutionStatus(status) {
		s.logger.Debug("store: invalid solution status", "solution_id", id, "status", status)
		return false, nil
	}
	return s.mutate(ctx, "update solution status", func(db *sql.DB) error {
		_, err := dbopen.Exec(ctx, db, `UPDATE solutions SET status = ? WHERE id = ?`, status, id)
		return err
	})
}
