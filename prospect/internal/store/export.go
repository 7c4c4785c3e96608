package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/hazyhaar/prospect/dbopen"
)

// ExportAll returns the tenant's profile, up to ExportLimit rows of every
// collection, and the campaign stats, all read from one snapshot. Client is
// nil if the tenant was never onboarded.
func (s *Store) ExportAll(ctx context.Context) (*Export, error) {
	var out *Export
	err := s.withDB(ctx, "export", func(db *sql.DB) error {
		return dbopen.RunReadTx(ctx, db, func(tx *sql.Tx) error {
			var err error
			out, err = s.export(ctx, tx)
			return err
		})
	})
	return out, err
}

func (s *Store) export(ctx context.Context, tx *sql.Tx) (*Export, error) {
	var ex Export
	var err error

	if ex.Client, err = getClient(ctx, tx, s.tenantID); err != nil {
		return nil, err
	}

	entries := sqlbuilder.SQLite.NewSelectBuilder()
	entries.Select(entryColumns...).From("industry_data").
		OrderBy("created_at DESC", "id DESC").Limit(ExportLimit)
	query, args := entries.Build()
	if ex.IndustryData, err = s.queryEntries(ctx, tx, query, args...); err != nil {
		return nil, exportErr("industry data", err)
	}

	leads := sqlbuilder.SQLite.NewSelectBuilder()
	leads.Select(
		"l.id", "l.company_name",
		"COALESCE(l.website, '')", "COALESCE(l.contact_info, '')", "COALESCE(l.details, '')",
		"l.created_at", "s.id", "s.status",
	).From("leads l").
		JoinWithOption(sqlbuilder.LeftJoin, "solutions s", "s.lead_id = l.id").
		OrderBy("l.created_at DESC", "l.id DESC", "s.id DESC").Limit(ExportLimit)
	query, args = leads.Build()
	if ex.Leads, err = queryLeadRows(ctx, tx, query, args...); err != nil {
		return nil, exportErr("leads", err)
	}

	if ex.Solutions, err = querySolutions(ctx, tx, 0, "", ExportLimit); err != nil {
		return nil, exportErr("solutions", err)
	}

	outreach := outreachSelect()
	outreach.Limit(ExportLimit)
	query, args = outreach.Build()
	if ex.OutreachHistory, err = queryOutreach(ctx, tx, query, args...); err != nil {
		return nil, exportErr("outreach", err)
	}

	if ex.CampaignStats, err = campaignStats(ctx, tx); err != nil {
		return nil, exportErr("stats", err)
	}
	return &ex, nil
}

func exportErr(part string, err error) error {
	return fmt.Errorf("%w: export %s: %v", ErrStorageUnavailable, part, err)
}
