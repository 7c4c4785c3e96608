// Package prospect is the per-client knowledge store of a sales-outreach
// pipeline.
//
// Every tenant owns one SQLite file holding its profile, an append-only
// corpus of crawled industry content, leads, generated solutions and
// outreach attempts. Service exposes one method per operation, tenant id
// first, and resolves the tenant store on every call.
package prospect

import (
	"github.com/hazyhaar/prospect/prospect/internal/pipeline"
	"github.com/hazyhaar/prospect/prospect/internal/store"
)

// Re-export store and pipeline types for the public API.
type (
	ClientProfile  = store.ClientProfile
	Client         = store.Client
	IndustryEntry  = store.IndustryEntry
	Lead           = store.Lead
	LeadRow        = store.LeadRow
	Solution       = store.Solution
	OutreachRecord = store.OutreachRecord
	CampaignStats  = store.CampaignStats
	Export         = store.Export
	IngestLogEntry = store.IngestLogEntry
	BatchResult    = pipeline.BatchResult
	BatchItem      = pipeline.BatchItem
)

// Solution statuses.
const (
	StatusPending  = store.StatusPending
	StatusSent     = store.StatusSent
	StatusReviewed = store.StatusReviewed
	StatusApproved = store.StatusApproved
	StatusRejected = store.StatusRejected
)

// PlaceholderPainPoints is stored when no pain-point extractor is configured
// or the configured one fails.
const PlaceholderPainPoints = pipeline.PlaceholderPainPoints

// LeadFields lists the lead columns UpdateLead accepts.
var LeadFields = store.LeadFields
