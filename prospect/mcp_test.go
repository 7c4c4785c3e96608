package prospect

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func mcpSession(t *testing.T, svc *Service) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "prospect-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, s *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if out != nil && !res.IsError {
		text := res.Content[0].(*mcp.TextContent).Text
		if err := json.Unmarshal([]byte(text), out); err != nil {
			t.Fatalf("%s: unmarshal %q: %v", name, text, err)
		}
	}
	return res
}

func TestMCP_ToolsListed(t *testing.T) {
	// WHAT: Every Service operation is exposed as a tool.
	// WHY: Agents discover capabilities through tools/list.
	session := mcpSession(t, newTestService(t))
	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"prospect_create_client", "prospect_get_client",
		"prospect_query_industry", "prospect_search_industry", "prospect_get_industry_entry",
		"prospect_crawl", "prospect_ingest_history",
		"prospect_add_lead", "prospect_update_lead", "prospect_list_leads",
		"prospect_add_solution", "prospect_list_solutions", "prospect_update_solution_status",
		"prospect_log_outreach", "prospect_update_outreach_response", "prospect_list_outreach",
		"prospect_pending_outreach", "prospect_campaign_stats", "prospect_export_all",
	} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}
}

func TestMCP_Workflow(t *testing.T) {
	// WHAT: Create a client, a lead and a solution over MCP and read stats.
	// WHY: Tool arguments must reach the right tenant and operation.
	session := mcpSession(t, newTestService(t))

	var ok okResp
	callTool(t, session, "prospect_create_client", map[string]any{
		"tenant_id": "acme", "email": "o@acme.test", "industry": "retail", "location": "Lyon",
		"campaign_parameters": map[string]any{"tone": "formal"},
	}, &ok)
	if !ok.OK {
		t.Fatal("create_client returned ok=false")
	}

	var client Client
	callTool(t, session, "prospect_get_client", map[string]any{"tenant_id": "acme"}, &client)
	if client.Email != "o@acme.test" || string(client.CampaignParameters) != `{"tone":"formal"}` {
		t.Fatalf("client: %+v", client)
	}

	var lead idResp
	callTool(t, session, "prospect_add_lead", map[string]any{"tenant_id": "acme", "company_name": "Shop"}, &lead)
	if lead.ID == 0 {
		t.Fatal("no lead id")
	}
	var sol idResp
	callTool(t, session, "prospect_add_solution", map[string]any{
		"tenant_id": "acme", "lead_id": lead.ID, "solution_text": "bundle offer",
	}, &sol)

	callTool(t, session, "prospect_update_solution_status", map[string]any{
		"tenant_id": "acme", "id": sol.ID, "status": "archived",
	}, &ok)
	if ok.OK {
		t.Error("invalid status accepted")
	}

	var stats CampaignStats
	callTool(t, session, "prospect_campaign_stats", map[string]any{"tenant_id": "acme"}, &stats)
	if stats.TotalLeads != 1 || stats.SolutionStats["pending"] != 1 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestMCP_ErrorsAreToolErrors(t *testing.T) {
	// WHAT: Validation failures come back as tool errors, not protocol errors.
	// WHY: Agents need the message to correct their call.
	session := mcpSession(t, newTestService(t))
	res := callTool(t, session, "prospect_create_client", map[string]any{
		"tenant_id": "acme", "email": "bad", "industry": "x", "location": "y",
	}, nil)
	if !res.IsError {
		t.Fatal("expected tool error for invalid email")
	}
	res = callTool(t, session, "prospect_campaign_stats", map[string]any{"tenant_id": "../etc"}, nil)
	if !res.IsError {
		t.Fatal("expected tool error for unsafe tenant")
	}
}
