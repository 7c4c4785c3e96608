package store

import (
	"context"
	"database/sql"

	"github.com/hazyhaar/prospect/dbopen"
)

// CampaignStats computes lead, solution and outreach counts from one
// consistent snapshot. Nothing is cached.
func (s *Store) CampaignStats(ctx context.Context) (*CampaignStats, error) {
	var st *CampaignStats
	err := s.withDB(ctx, "campaign stats", func(db *sql.DB) error {
		return wrapQuery("campaign stats", dbopen.RunReadTx(ctx, db, func(tx *sql.Tx) error {
			var err error
			st, err = campaignStats(ctx, tx)
			return err
		}))
	})
	return st, err
}

func campaignStats(ctx context.Context, q querier) (*CampaignStats, error) {
	st := &CampaignStats{SolutionStats: map[string]int64{}}
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&st.TotalLeads); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `SELECT status, COUNT(*) FROM solutions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		st.SolutionStats[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN response IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM outreach_log`).Scan(&st.TotalOutreach, &st.Responses)
	if err != nil {
		return nil, err
	}
	return st, nil
}
