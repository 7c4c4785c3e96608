package prospect

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/prospect/extract"
	"github.com/hazyhaar/prospect/horosafe"
	"github.com/hazyhaar/prospect/observability"
	"github.com/hazyhaar/prospect/prospect/internal/fetch"
	"github.com/hazyhaar/prospect/prospect/internal/pipeline"
	"github.com/hazyhaar/prospect/prospect/internal/store"
)

// Fetcher retrieves raw page bytes for Crawl.
type Fetcher = pipeline.Fetcher

// Normalizer turns raw HTML into a title and main text.
type Normalizer = pipeline.Normalizer

// EventRecorder receives business events. *observability.EventLogger
// satisfies it.
type EventRecorder interface {
	LogEvent(ctx context.Context, event observability.BusinessEvent)
}

const serviceName = "prospect"

// Service is the prospect orchestrator.
type Service struct {
	config       *Config
	logger       *slog.Logger
	fetcher      Fetcher
	normalizer   Normalizer
	painPoints   PainPointExtractor
	pipeline     *pipeline.Pipeline
	events       EventRecorder // optional
	urlValidator func(string) error
	closers      []io.Closer
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithFetcher replaces the fetcher built from Config.Fetch.
func WithFetcher(f Fetcher) ServiceOption {
	return func(svc *Service) { svc.fetcher = f }
}

// WithNormalizer replaces the default HTML normalizer.
func WithNormalizer(n Normalizer) ServiceOption {
	return func(svc *Service) { svc.normalizer = n }
}

// WithPainPointExtractor replaces the extractor built from Config.LLM.
func WithPainPointExtractor(pp PainPointExtractor) ServiceOption {
	return func(svc *Service) { svc.painPoints = pp }
}

// WithEvents records client_onboarded and ingest_batch events.
func WithEvents(r EventRecorder) ServiceOption {
	return func(svc *Service) { svc.events = r }
}

// WithURLValidator overrides the URL validation of the default fetcher
// (default: horosafe.ValidateURL). Use in tests with httptest servers that
// listen on loopback addresses.
func WithURLValidator(fn func(string) error) ServiceOption {
	return func(svc *Service) { svc.urlValidator = fn }
}

// New creates a prospect Service.
func New(cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		config:       cfg,
		logger:       logger,
		urlValidator: horosafe.ValidateURL,
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.fetcher == nil {
		f, err := svc.newFetcher()
		if err != nil {
			return nil, err
		}
		svc.fetcher = f
	}
	if svc.normalizer == nil {
		var nopts []extract.Option
		if len(cfg.RegionHints) > 0 {
			nopts = append(nopts, extract.WithRegionHints(cfg.RegionHints...))
		}
		if len(cfg.StripTags) > 0 {
			nopts = append(nopts, extract.WithStrip(cfg.StripTags...))
		}
		svc.normalizer = extract.NewNormalizer(nopts...)
	}
	if svc.painPoints == nil {
		if cfg.LLM.Endpoint != "" {
			ce, err := NewChatExtractor(cfg.LLM, logger)
			if err != nil {
				return nil, err
			}
			svc.painPoints = ce
		} else {
			svc.painPoints = Placeholder{}
		}
	}
	svc.pipeline = pipeline.New(svc.fetcher, svc.normalizer, svc.painPoints, logger)
	return svc, nil
}

func (svc *Service) newFetcher() (Fetcher, error) {
	fc := svc.config.Fetch
	switch fc.Mode {
	case FetchHTTP:
		return fetch.New(fetch.Config{
			Timeout:      fc.Timeout,
			MaxBytes:     fc.MaxBytes,
			UserAgent:    fc.UserAgent,
			URLValidator: svc.urlValidator,
		}), nil
	case FetchBrowser:
		b := fetch.NewBrowser(fetch.BrowserConfig{
			RemoteURL:    fc.BrowserURL,
			Timeout:      fc.Timeout,
			UserAgent:    fc.UserAgent,
			URLValidator: svc.urlValidator,
			Logger:       svc.logger,
		})
		svc.closers = append(svc.closers, b)
		return b, nil
	default:
		return nil, fmt.Errorf("%w: unknown fetch mode %q", ErrInvalidInput, fc.Mode)
	}
}

// Close releases the browser if one was started.
func (svc *Service) Close() error {
	var first error
	for _, c := range svc.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	svc.logger.Info("prospect: closed")
	return first
}

// resolveStore validates tenantID and opens its store.
func (svc *Service) resolveStore(ctx context.Context, tenantID string) (*store.Store, error) {
	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	return store.Open(ctx, svc.config.DataDir, tenantID, svc.logger)
}

func (svc *Service) event(ctx context.Context, e observability.BusinessEvent) {
	if svc.events == nil {
		return
	}
	e.ServiceName = serviceName
	svc.events.LogEvent(ctx, e)
}

// --- Clients ---

// CreateClient validates p and stores it. It returns false when the tenant
// already has a profile; the stored profile is left unchanged.
func (svc *Service) CreateClient(ctx context.Context, p *ClientProfile) (bool, error) {
	if err := ValidateProfile(p); err != nil {
		return false, err
	}
	s, err := svc.resolveStore(ctx, p.TenantID)
	if err != nil {
		return false, err
	}
	created, err := s.CreateClient(ctx, p)
	if err != nil {
		return false, err
	}
	if created {
		svc.event(ctx, observability.BusinessEvent{
			EventType:  observability.EventClientOnboarded,
			EntityType: "client",
			EntityID:   p.TenantID,
			TenantID:   p.TenantID,
			Action:     "create",
			Details:    observability.Details(map[string]string{"industry": p.Industry, "location": p.Location}),
			Success:    true,
		})
	}
	return created, nil
}

// GetClient returns the tenant's profile, or nil if none was created.
func (svc *Service) GetClient(ctx context.Context, tenantID string) (*Client, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.GetClient(ctx, tenantID)
}

// --- Industry data ---

// AddIndustryEntry appends an entry to the tenant corpus.
func (svc *Service) AddIndustryEntry(ctx context.Context, tenantID string, e *IndustryEntry) (int64, error) {
	if e == nil || e.Source == "" || e.Content == "" {
		return 0, fmt.Errorf("%w: source and content are required", ErrInvalidInput)
	}
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return s.AddIndustryEntry(ctx, e)
}

// GetIndustryEntry returns one entry, or nil if absent.
func (svc *Service) GetIndustryEntry(ctx context.Context, tenantID string, id int64) (*IndustryEntry, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.GetIndustryEntry(ctx, id)
}

// QueryIndustryEntries returns the newest entries, optionally restricted to
// those sharing at least one of tags.
func (svc *Service) QueryIndustryEntries(ctx context.Context, tenantID string, limit int, tags []string) ([]*IndustryEntry, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.QueryIndustryEntries(ctx, limit, tags)
}

// SearchIndustryEntries returns entries whose title or content contains
// keyword, case-insensitively, ANDed with the tag filter.
func (svc *Service) SearchIndustryEntries(ctx context.Context, tenantID, keyword string, tags []string) ([]*IndustryEntry, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.SearchIndustryEntries(ctx, keyword, tags)
}

// Crawl fetches, normalizes and stores every URL, tagging each entry with
// tags. Failed URLs are omitted from the result and recorded in the ingest
// log.
func (svc *Service) Crawl(ctx context.Context, tenantID string, urls, tags []string) (*BatchResult, error) {
	if err := validateCrawl(urls, tags); err != nil {
		return nil, err
	}
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	res, err := svc.pipeline.Run(ctx, s, urls, tags)
	if res != nil {
		svc.event(context.WithoutCancel(ctx), observability.BusinessEvent{
			EventType:  observability.EventIngestBatch,
			EntityType: "batch",
			EntityID:   res.BatchID,
			TenantID:   tenantID,
			Action:     "crawl",
			Details: observability.Details(map[string]int{
				"urls": len(urls), "persisted": len(res.Items), "failed": res.Failed,
			}),
			Success: err == nil,
		})
	}
	return res, err
}

// IngestHistory returns the latest per-URL ingest outcomes.
func (svc *Service) IngestHistory(ctx context.Context, tenantID string, limit int) ([]*IngestLogEntry, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.IngestHistory(ctx, limit)
}

// --- Leads ---

// AddLead stores a lead and returns its id.
func (svc *Service) AddLead(ctx context.Context, tenantID string, l *Lead) (int64, error) {
	if l == nil || l.CompanyName == "" {
		return 0, fmt.Errorf("%w: company_name is required", ErrInvalidInput)
	}
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return s.AddLead(ctx, l)
}

// GetLead returns one lead, or nil if absent.
func (svc *Service) GetLead(ctx context.Context, tenantID string, id int64) (*Lead, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.GetLead(ctx, id)
}

// UpdateLead applies the allow-listed keys of fields to lead id. Unknown
// keys are dropped; it returns false when none is left.
func (svc *Service) UpdateLead(ctx context.Context, tenantID string, id int64, fields map[string]any) (bool, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return s.UpdateLead(ctx, id, fields)
}

// ListLeads returns lead rows joined with their solutions, newest lead
// first. A non-empty status keeps rows whose solution has that status.
func (svc *Service) ListLeads(ctx context.Context, tenantID, status string, limit int) ([]*LeadRow, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.ListLeads(ctx, status, limit)
}

// --- Solutions ---

// AddSolution stores a pending solution for leadID.
func (svc *Service) AddSolution(ctx context.Context, tenantID string, leadID int64, text string) (int64, error) {
	if text == "" {
		return 0, fmt.Errorf("%w: solution_text is required", ErrInvalidInput)
	}
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return s.AddSolution(ctx, leadID, text)
}

// ListSolutions returns solutions, newest first, filtered by lead (0 = any)
// and status ("" = any).
func (svc *Service) ListSolutions(ctx context.Context, tenantID string, leadID int64, status string) ([]*Solution, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.ListSolutions(ctx, leadID, status)
}

// UpdateSolutionStatus sets the status of a solution. Unknown statuses
// return false.
func (svc *Service) UpdateSolutionStatus(ctx context.Context, tenantID string, id int64, status string) (bool, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return s.UpdateSolutionStatus(ctx, id, status)
}

// --- Outreach ---

// LogOutreach records a sent message for leadID.
func (svc *Service) LogOutreach(ctx context.Context, tenantID string, leadID int64, message string) (int64, error) {
	if message == "" {
		return 0, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return s.LogOutreach(ctx, leadID, message)
}

// UpdateOutreachResponse stores the response of an outreach record.
func (svc *Service) UpdateOutreachResponse(ctx context.Context, tenantID string, id int64, response string) (bool, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return s.UpdateOutreachResponse(ctx, id, response)
}

// ListOutreach returns outreach records, newest first, optionally for one
// lead (0 = any).
func (svc *Service) ListOutreach(ctx context.Context, tenantID string, leadID int64, limit int) ([]*OutreachRecord, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.ListOutreach(ctx, leadID, limit)
}

// PendingOutreach returns every outreach record still awaiting a response.
func (svc *Service) PendingOutreach(ctx context.Context, tenantID string) ([]*OutreachRecord, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.PendingOutreach(ctx)
}

// --- Reporting ---

// CampaignStats returns lead, solution and outreach counts.
func (svc *Service) CampaignStats(ctx context.Context, tenantID string) (*CampaignStats, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.CampaignStats(ctx)
}

// ExportAll returns a consistent snapshot of the whole tenant.
func (svc *Service) ExportAll(ctx context.Context, tenantID string) (*Export, error) {
	s, err := svc.resolveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.ExportAll(ctx)
}
