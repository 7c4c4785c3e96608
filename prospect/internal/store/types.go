package store

import "encoding/json"

// Solution statuses.
const (
	StatusPending  = "pending"
	StatusSent     = "sent"
	StatusReviewed = "reviewed"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ExportLimit caps every collection in ExportAll.
const ExportLimit = 1000

// ClientProfile is the validated onboarding output written by CreateClient.
type ClientProfile struct {
	TenantID           string          `json:"tenant_id" validate:"required,max=128"`
	Email              string          `json:"email" validate:"required,email"`
	Industry           string          `json:"industry" validate:"required,max=200"`
	Location           string          `json:"location" validate:"required,max=200"`
	CampaignParameters json.RawMessage `json:"campaign_parameters,omitempty"`
}

// Client is a tenant's stored profile. CampaignParameters is returned
// exactly as it was written.
type Client struct {
	TenantID           string          `json:"tenant_id"`
	Email              string          `json:"email"`
	Industry           string          `json:"industry"`
	Location           string          `json:"location"`
	CampaignParameters json.RawMessage `json:"campaign_parameters"`
	CreatedAt          int64           `json:"created_at"`
}

// IndustryEntry is one ingested unit of crawled content. Append-only.
type IndustryEntry struct {
	ID         int64    `json:"id"`
	Source     string   `json:"source"`
	Title      *string  `json:"title"`
	Content    string   `json:"content"`
	PainPoints string   `json:"pain_points"`
	Tags       []string `json:"tags"`
	CrawledAt  *string  `json:"crawled_at"` // ISO-8601
	CreatedAt  int64    `json:"created_at"`
}

// Lead is a prospective company or contact.
type Lead struct {
	ID          int64  `json:"id"`
	CompanyName string `json:"company_name"`
	Website     string `json:"website"`
	ContactInfo string `json:"contact_info"`
	Details     string `json:"details"`
	CreatedAt   int64  `json:"created_at"`
}

// LeadRow is one row of ListLeads: a lead paired with one of its solutions.
// A lead with several solutions yields several rows; a lead with none yields
// one row with nil solution fields.
type LeadRow struct {
	Lead
	SolutionID     *int64  `json:"solution_id"`
	SolutionStatus *string `json:"status"`
}

// Solution is a generated outreach proposal for a lead.
type Solution struct {
	ID           int64  `json:"id"`
	LeadID       int64  `json:"lead_id"`
	SolutionText string `json:"solution_text"`
	GeneratedAt  int64  `json:"generated_at"`
	Status       string `json:"status"`
}

// OutreachRecord is one sent message and its optional response.
// UpdatedAt is non-nil exactly when Response is.
type OutreachRecord struct {
	ID          int64   `json:"id"`
	LeadID      int64   `json:"lead_id"`
	MessageSent string  `json:"message_sent"`
	SentAt      int64   `json:"sent_at"`
	Response    *string `json:"response"`
	UpdatedAt   *int64  `json:"updated_at"`
	CompanyName string  `json:"company_name,omitempty"`
}

// CampaignStats is a point-in-time aggregate over the tenant.
type CampaignStats struct {
	TotalLeads    int64            `json:"total_leads"`
	SolutionStats map[string]int64 `json:"solution_stats"`
	TotalOutreach int64            `json:"total_outreach"`
	Responses     int64            `json:"responses"`
}

// Export is the reporting snapshot returned by ExportAll.
type Export struct {
	Client          *Client           `json:"client_info"`
	IndustryData    []*IndustryEntry  `json:"industry_data"`
	Leads           []*LeadRow        `json:"leads"`
	Solutions       []*Solution       `json:"solutions"`
	OutreachHistory []*OutreachRecord `json:"outreach_history"`
	CampaignStats   *CampaignStats    `json:"campaign_stats"`
}

// Ingest log statuses.
const (
	IngestPersisted      = "persisted"
	IngestFetchError     = "fetch_error"
	IngestNormalizeError = "normalize_error"
	IngestStoreError     = "store_error"
)

// IngestLogEntry records the outcome of one URL in an ingestion batch.
type IngestLogEntry struct {
	ID         string `json:"id"`
	BatchID    string `json:"batch_id"`
	URL        string `json:"url"`
	Status     string `json:"status"`
	EntryID    *int64 `json:"entry_id,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	CreatedAt  int64  `json:"created_at"`
}
