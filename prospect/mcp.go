package prospect

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/prospect/kit"
)

// RegisterMCP registers one tool per Service operation on srv.
func (svc *Service) RegisterMCP(srv *mcp.Server) {
	svc.registerClientTools(srv)
	svc.registerIndustryTools(srv)
	svc.registerLeadTools(srv)
	svc.registerSolutionTools(srv)
	svc.registerOutreachTools(srv)
	svc.registerReportTools(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

var (
	tenantProp = prop("string", "Tenant (client) ID")
	tagsProp   = map[string]any{
		"type": "array", "items": map[string]any{"type": "string"},
		"description": "Tags; entries sharing at least one are kept",
	}
)

// tenantReq is embedded in every tool request.
type tenantReq struct {
	Tenant string `json:"tenant_id"`
}

func (r tenantReq) TenantID() string { return r.Tenant }

type okResp struct {
	OK bool `json:"ok"`
}

type idResp struct {
	ID int64 `json:"id"`
}

// tool registers endpoint under name with logging and panic recovery.
func (svc *Service) tool(srv *mcp.Server, t *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	mw := kit.Chain(kit.Logging(svc.logger, t.Name), kit.Recover(svc.logger))
	kit.RegisterMCPTool(srv, t, mw(endpoint), decode)
}

// --- Clients ---

func (svc *Service) registerClientTools(srv *mcp.Server) {
	type createReq struct {
		tenantReq
		Email              string          `json:"email"`
		Industry           string          `json:"industry"`
		Location           string          `json:"location"`
		CampaignParameters json.RawMessage `json:"campaign_parameters"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_create_client",
		Description: "Create a client profile. Returns ok=false if the tenant already has one.",
		InputSchema: inputSchema(map[string]any{
			"tenant_id":           tenantProp,
			"email":               prop("string", "Contact email"),
			"industry":            prop("string", "Industry"),
			"location":            prop("string", "Location"),
			"campaign_parameters": prop("object", "Opaque campaign configuration, stored verbatim"),
		}, []string{"tenant_id", "email", "industry", "location"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*createReq)
		ok, err := svc.CreateClient(ctx, &ClientProfile{
			TenantID:           p.Tenant,
			Email:              p.Email,
			Industry:           p.Industry,
			Location:           p.Location,
			CampaignParameters: p.CampaignParameters,
		})
		return okResp{ok}, err
	}, kit.DecodeJSON[createReq]())

	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_get_client",
		Description: "Get a client profile (null if absent)",
		InputSchema: inputSchema(map[string]any{"tenant_id": tenantProp}, []string{"tenant_id"}),
	}, func(ctx context.Context, r any) (any, error) {
		return svc.GetClient(ctx, r.(*tenantReq).Tenant)
	}, kit.DecodeJSON[tenantReq]())
}

// --- Industry data ---

func (svc *Service) registerIndustryTools(srv *mcp.Server) {
	type queryReq struct {
		tenantReq
		Limit int      `json:"limit"`
		Tags  []string `json:"tags"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_query_industry",
		Description: "List the newest industry entries, optionally filtered by tags",
		InputSchema: inputSchema(map[string]any{
			"tenant_id": tenantProp,
			"limit":     prop("integer", "Max entries (default 10)"),
			"tags":      tagsProp,
		}, []string{"tenant_id"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*queryReq)
		return svc.QueryIndustryEntries(ctx, p.Tenant, p.Limit, p.Tags)
	}, kit.DecodeJSON[queryReq]())

	type searchReq struct {
		tenantReq
		Keyword string   `json:"keyword"`
		Tags    []string `json:"tags"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_search_industry",
		Description: "Search industry entries whose title or content contains a keyword",
		InputSchema: inputSchema(map[string]any{
			"tenant_id": tenantProp,
			"keyword":   prop("string", "Case-insensitive substring"),
			"tags":      tagsProp,
		}, []string{"tenant_id", "keyword"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*searchReq)
		return svc.SearchIndustryEntries(ctx, p.Tenant, p.Keyword, p.Tags)
	}, kit.DecodeJSON[searchReq]())

	type getReq struct {
		tenantReq
		ID int64 `json:"id"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_get_industry_entry",
		Description: "Get one industry entry with its full content",
		InputSchema: inputSchema(map[string]any{
			"tenant_id": tenantProp,
			"id":        prop("integer", "Entry ID"),
		}, []string{"tenant_id", "id"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*getReq)
		return svc.GetIndustryEntry(ctx, p.Tenant, p.ID)
	}, kit.DecodeJSON[getReq]())

	type crawlReq struct {
		tenantReq
		URLs []string `json:"urls"`
		Tags []string `json:"tags"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_crawl",
		Description: "Fetch, normalize and store pages as industry entries",
		InputSchema: inputSchema(map[string]any{
			"tenant_id": tenantProp,
			"urls":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Page URLs"},
			"tags":      tagsProp,
		}, []string{"tenant_id", "urls"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*crawlReq)
		return svc.Crawl(ctx, p.Tenant, p.URLs, p.Tags)
	}, kit.DecodeJSON[crawlReq]())

	type historyReq struct {
		tenantReq
		Limit int `json:"limit"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_ingest_history",
		Description: "Per-URL outcomes of recent crawls",
		InputSchema: inputSchema(map[string]any{
			"tenant_id": tenantProp,
			"limit":     prop("integer", "Max rows (default 50)"),
		}, []string{"tenant_id"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*historyReq)
		return svc.IngestHistory(ctx, p.Tenant, p.Limit)
	}, kit.DecodeJSON[historyReq]())
}

// --- Leads ---

func (svc *Service) registerLeadTools(srv *mcp.Server) {
	type addReq struct {
		tenantReq
		CompanyName string `json:"company_name"`
		Website     string `json:"website"`
		ContactInfo string `json:"contact_info"`
		Details     string `json:"details"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_add_lead",
		Description: "Add a lead",
		InputSchema: inputSchema(map[string]any{
			"tenant_id":    tenantProp,
			"company_name": prop("string", "Company name"),
			"website":      prop("string", "Website"),
			"contact_info": prop("string", "Contact information"),
			"details":      prop("string", "Free-form details"),
		}, []string{"tenant_id", "company_name"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*addReq)
		id, err := svc.AddLead(ctx, p.Tenant, &Lead{
			CompanyName: p.CompanyName,
			Website:     p.Website,
			ContactInfo: p.ContactInfo,
			Details:     p.Details,
		})
		return idResp{id}, err
	}, kit.DecodeJSON[addReq]())

	type updateReq struct {
		tenantReq
		ID     int64          `json:"id"`
		Fields map[string]any `json:"fields"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_update_lead",
		Description: "Update company_name, website, contact_info or details of a lead; other keys are ignored",
		InputSchema: inputSchema(map[string]any{
			"tenant_id": tenantProp,
			"id":        prop("integer", "Lead ID"),
			"fields":    prop("object", "Column → value"),
		}, []string{"tenant_id", "id", "fields"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*updateReq)
		ok, err := svc.UpdateLead(ctx, p.Tenant, p.ID, p.Fields)
		return okResp{ok}, err
	}, kit.DecodeJSON[updateReq]())

	type listReq struct {
		tenantReq
		Status string `json:"status"`
		Limit  int    `json:"limit"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_list_leads",
		Description: "List leads, one row per (lead, solution), optionally filtered by solution status",
		InputSchema: inputSchema(map[string]any{
			"tenant_id": tenantProp,
			"status":    prop("string", "Solution status filter"),
			"limit":     prop("integer", "Max rows (default 50)"),
		}, []string{"tenant_id"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*listReq)
		return svc.ListLeads(ctx, p.Tenant, p.Status, p.Limit)
	}, kit.DecodeJSON[listReq]())
}

// --- Solutions ---

func (svc *Service) registerSolutionTools(srv *mcp.Server) {
	type addReq struct {
		tenantReq
		LeadID int64  `json:"lead_id"`
		Text   string `json:"solution_text"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_add_solution",
		Description: "Add a pending solution for a lead",
		InputSchema: inputSchema(map[string]any{
			"tenant_id":     tenantProp,
			"lead_id":       prop("integer", "Lead ID"),
			"solution_text": prop("string", "Proposal text"),
		}, []string{"tenant_id", "lead_id", "solution_text"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*addReq)
		id, err := svc.AddSolution(ctx, p.Tenant, p.LeadID, p.Text)
		return idResp{id}, err
	}, kit.DecodeJSON[addReq]())

	type listReq struct {
		tenantReq
		LeadID int64  `json:"lead_id"`
		Status string `json:"status"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_list_solutions",
		Description: "List solutions, optionally for one lead and/or status",
		InputSchema: inputSchema(map[string]any{
			"tenant_id": tenantProp,
			"lead_id":   prop("integer", "Lead ID (0 = any)"),
			"status":    prop("string", "pending, sent, reviewed, approved or rejected"),
		}, []string{"tenant_id"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*listReq)
		return svc.ListSolutions(ctx, p.Tenant, p.LeadID, p.Status)
	}, kit.DecodeJSON[listReq]())

	type statusReq struct {
		tenantReq
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_update_solution_status",
		Description: "Set a solution status; unknown statuses return ok=false",
		InputSchema: inputSchema(map[string]any{
			"tenant_id": tenantProp,
			"id":        prop("integer", "Solution ID"),
			"status":    prop("string", "pending, sent, reviewed, approved or rejected"),
		}, []string{"tenant_id", "id", "status"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*statusReq)
		ok, err := svc.UpdateSolutionStatus(ctx, p.Tenant, p.ID, p.Status)
		return okResp{ok}, err
	}, kit.DecodeJSON[statusReq]())
}

// --- Outreach ---

func (svc *Service) registerOutreachTools(srv *mcp.Server) {
	type logReq struct {
		tenantReq
		LeadID  int64  `json:"lead_id"`
		Message string `json:"message"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_log_outreach",
		Description: "Record a message sent to a lead",
		InputSchema: inputSchema(map[string]any{
			"tenant_id": tenantProp,
			"lead_id":   prop("integer", "Lead ID"),
			"message":   prop("string", "Message sent"),
		}, []string{"tenant_id", "lead_id", "message"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*logReq)
		id, err := svc.LogOutreach(ctx, p.Tenant, p.LeadID, p.Message)
		return idResp{id}, err
	}, kit.DecodeJSON[logReq]())

	type respReq struct {
		tenantReq
		ID       int64  `json:"id"`
		Response string `json:"response"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_update_outreach_response",
		Description: "Record the response to an outreach message",
		InputSchema: inputSchema(map[string]any{
			"tenant_id": tenantProp,
			"id":        prop("integer", "Outreach ID"),
			"response":  prop("string", "Response text"),
		}, []string{"tenant_id", "id", "response"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*respReq)
		ok, err := svc.UpdateOutreachResponse(ctx, p.Tenant, p.ID, p.Response)
		return okResp{ok}, err
	}, kit.DecodeJSON[respReq]())

	type listReq struct {
		tenantReq
		LeadID int64 `json:"lead_id"`
		Limit  int   `json:"limit"`
	}
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_list_outreach",
		Description: "List outreach history, optionally for one lead",
		InputSchema: inputSchema(map[string]any{
			"tenant_id": tenantProp,
			"lead_id":   prop("integer", "Lead ID (0 = any)"),
			"limit":     prop("integer", "Max rows (default 50)"),
		}, []string{"tenant_id"}),
	}, func(ctx context.Context, r any) (any, error) {
		p := r.(*listReq)
		return svc.ListOutreach(ctx, p.Tenant, p.LeadID, p.Limit)
	}, kit.DecodeJSON[listReq]())

	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_pending_outreach",
		Description: "List outreach messages still awaiting a response",
		InputSchema: inputSchema(map[string]any{"tenant_id": tenantProp}, []string{"tenant_id"}),
	}, func(ctx context.Context, r any) (any, error) {
		return svc.PendingOutreach(ctx, r.(*tenantReq).Tenant)
	}, kit.DecodeJSON[tenantReq]())
}

// --- Reporting ---

func (svc *Service) registerReportTools(srv *mcp.Server) {
	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_campaign_stats",
		Description: "Lead, solution-status and outreach counts",
		InputSchema: inputSchema(map[string]any{"tenant_id": tenantProp}, []string{"tenant_id"}),
	}, func(ctx context.Context, r any) (any, error) {
		return svc.CampaignStats(ctx, r.(*tenantReq).Tenant)
	}, kit.DecodeJSON[tenantReq]())

	svc.tool(srv, &mcp.Tool{
		Name:        "prospect_export_all",
		Description: "Snapshot of the whole tenant: client, industry data, leads, solutions, outreach, stats",
		InputSchema: inputSchema(map[string]any{"tenant_id": tenantProp}, []string{"tenant_id"}),
	}, func(ctx context.Context, r any) (any, error) {
		return svc.ExportAll(ctx, r.(*tenantReq).Tenant)
	}, kit.DecodeJSON[tenantReq]())
}
