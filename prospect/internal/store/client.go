package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/prospect/dbopen"
)

// CreateClient inserts the tenant's profile. It returns false, without
// touching the existing row, when the tenant is already onboarded.
func (s *Store) CreateClient(ctx context.Context, p *ClientProfile) (bool, error) {
	params := []byte(p.CampaignParameters)
	if len(params) == 0 {
		params = []byte("{}")
	}
	if !json.Valid(params) {
		s.logger.Warn("store: create client: campaign_parameters is not JSON")
		return false, nil
	}

	var inserted bool
	ok, err := s.mutate(ctx, "create client", func(db *sql.DB) error {
		res, err := dbopen.Exec(ctx, db,
			`INSERT INTO clients (tenant_id, email, industry, location, campaign_parameters, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(tenant_id) DO NOTHING`,
			p.TenantID, p.Email, p.Industry, p.Location, string(params), s.nowMs())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0
		return nil
	})
	if err != nil || !ok {
		return false, err
	}
	if !inserted {
		s.logger.Info("store: client already exists")
	}
	return inserted, nil
}

// GetClient returns the profile of tenantID, or (nil, nil) if absent.
func (s *Store) GetClient(ctx context.Context, tenantID string) (*Client, error) {
	var c *Client
	err := s.withDB(ctx, "get client", func(db *sql.DB) error {
		var err error
		c, err = getClient(ctx, db, tenantID)
		return err
	})
	return c, err
}

func getClient(ctx context.Context, q querier, tenantID string) (*Client, error) {
	var c Client
	var params string
	err := q.QueryRowContext(ctx,
		`SELECT tenant_id, email, industry, location, campaign_parameters, created_at
		FROM clients WHERE tenant_id = ?`, tenantID).
		Scan(&c.TenantID, &c.Email, &c.Industry, &c.Location, &params, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get client: %v", ErrStorageUnavailable, err)
	}
	c.CampaignParameters = json.RawMessage(params)
	return &c, nil
}
