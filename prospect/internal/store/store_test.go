package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/prospect/dbopen"
)

func openTestStore(t *testing.T, tenantID string) *Store {
	t.Helper()
	return openTestStoreAt(t, t.TempDir(), tenantID)
}

func openTestStoreAt(t *testing.T, root, tenantID string) *Store {
	t.Helper()
	s, err := Open(context.Background(), root, tenantID, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func str(s string) *string { return &s }

func TestOpen_CreatesSchema(t *testing.T) {
	// WHAT: Open creates <root>/<tenant>.db with every table.
	// WHY: Every operation assumes the schema exists.
	root := filepath.Join(t.TempDir(), "tenants")
	s := openTestStoreAt(t, root, "acme")

	if s.Path() != filepath.Join(root, "acme.db") {
		t.Fatalf("path = %q", s.Path())
	}
	db, err := dbopen.Open(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	for _, table := range []string{"clients", "industry_data", "leads", "solutions", "outreach_log", "ingest_log"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	root := t.TempDir()
	s := openTestStoreAt(t, root, "acme")
	ctx := context.Background()
	if _, err := s.AddLead(ctx, &Lead{CompanyName: "Initech"}); err != nil {
		t.Fatal(err)
	}

	s2 := openTestStoreAt(t, root, "acme")
	leads, err := s2.ListLeads(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(leads) != 1 {
		t.Fatalf("reopen lost data: %d leads", len(leads))
	}
}

func TestOpen_ConcurrentFirstAccess(t *testing.T) {
	// WHAT: Many callers opening and writing a tenant that does not exist yet all succeed.
	// WHY: Onboarding and a crawl can reach a new tenant at the same moment.
	root := t.TempDir()
	ctx := context.Background()
	const n = 40

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := Open(ctx, root, "acme", nil)
			if err != nil {
				errs <- err
				return
			}
			if _, err := s.AddLead(ctx, &Lead{CompanyName: fmt.Sprintf("Lead %d", i)}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent access: %v", err)
	}

	rows, err := openTestStoreAt(t, root, "acme").ListLeads(ctx, "", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != n {
		t.Fatalf("leads = %d, want %d", len(rows), n)
	}
}

func TestOpen_Unavailable(t *testing.T) {
	// WHAT: A root that cannot be created, or an unsafe tenant id, is a
	// storage-unavailable error.
	// WHY: It is the one failure surfaced to callers.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := Open(ctx, filepath.Join(blocker, "root"), "acme", nil); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("blocked root: err = %v", err)
	}
	if _, err := Open(ctx, dir, "../escape", nil); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("unsafe tenant: err = %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	// WHAT: Writes to tenant A are never visible through tenant B.
	root := t.TempDir()
	a := openTestStoreAt(t, root, "alpha")
	b := openTestStoreAt(t, root, "beta")
	ctx := context.Background()

	a.CreateClient(ctx, &ClientProfile{TenantID: "alpha", Email: "a@alpha.test"})
	a.AddIndustryEntry(ctx, &IndustryEntry{Source: "https://a.test", Content: "alpha content"})
	leadID, _ := a.AddLead(ctx, &Lead{CompanyName: "A Corp"})
	a.AddSolution(ctx, leadID, "pitch")
	a.LogOutreach(ctx, leadID, "hello")

	if c, _ := b.GetClient(ctx, "alpha"); c != nil {
		t.Error("tenant beta sees alpha's client")
	}
	if e, _ := b.QueryIndustryEntries(ctx, 10, nil); len(e) != 0 {
		t.Errorf("tenant beta sees %d entries", len(e))
	}
	if l, _ := b.ListLeads(ctx, "", 10); len(l) != 0 {
		t.Errorf("tenant beta sees %d leads", len(l))
	}
	if s, _ := b.ListSolutions(ctx, 0, ""); len(s) != 0 {
		t.Errorf("tenant beta sees %d solutions", len(s))
	}
	if o, _ := b.ListOutreach(ctx, 0, 10); len(o) != 0 {
		t.Errorf("tenant beta sees %d outreach rows", len(o))
	}
}

func TestCreateClient_ExactlyOnce(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	params := json.RawMessage(`{"budget": 5000, "channels": ["email", "linkedin"], "nested": {"x": null}}`)

	ok, err := s.CreateClient(ctx, &ClientProfile{
		TenantID: "acme", Email: "ops@acme.test", Industry: "SaaS", Location: "Paris",
		CampaignParameters: params,
	})
	if err != nil || !ok {
		t.Fatalf("first create: ok=%v err=%v", ok, err)
	}

	ok, err = s.CreateClient(ctx, &ClientProfile{
		TenantID: "acme", Email: "other@acme.test", Industry: "Retail", Location: "Lyon",
	})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if ok {
		t.Fatal("second create should return false")
	}

	c, err := s.GetClient(ctx, "acme")
	if err != nil || c == nil {
		t.Fatalf("get client: %v %v", c, err)
	}
	if c.Email != "ops@acme.test" || c.Industry != "SaaS" || c.Location != "Paris" {
		t.Errorf("original row changed: %+v", c)
	}
	if string(c.CampaignParameters) != string(params) {
		t.Errorf("campaign_parameters = %s, want verbatim %s", c.CampaignParameters, params)
	}
	if c.CreatedAt == 0 {
		t.Error("created_at not set")
	}
}

func TestCreateClient_EmptyParams(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	if ok, _ := s.CreateClient(ctx, &ClientProfile{TenantID: "acme"}); !ok {
		t.Fatal("create failed")
	}
	c, _ := s.GetClient(ctx, "acme")
	if string(c.CampaignParameters) != "{}" {
		t.Fatalf("campaign_parameters = %s, want {}", c.CampaignParameters)
	}

	if ok, _ := s.CreateClient(ctx, &ClientProfile{TenantID: "x", CampaignParameters: json.RawMessage(`{bad`)}); ok {
		t.Fatal("invalid JSON parameters should be rejected")
	}
}

func TestGetClient_NotFound(t *testing.T) {
	s := openTestStore(t, "acme")
	c, err := s.GetClient(context.Background(), "acme")
	if err != nil || c != nil {
		t.Fatalf("got %v, %v; want nil, nil", c, err)
	}
}

func TestAddIndustryEntry_Tags(t *testing.T) {
	// WHAT: Duplicate tags collapse, display order is preserved, empty set
	// is stored as absent.
	s := openTestStore(t, "acme")
	ctx := context.Background()

	id, err := s.AddIndustryEntry(ctx, &IndustryEntry{
		Source: "https://a.test", Title: str("A"), Content: "c",
		Tags: []string{"b", "a", "b", "", "c", "a"}, CrawledAt: str("2026-01-02T03:04:05Z"),
	})
	if err != nil {
		t.Fatal(err)
	}
	e, err := s.GetIndustryEntry(ctx, id)
	if err != nil || e == nil {
		t.Fatalf("get: %v %v", e, err)
	}
	if !slices.Equal(e.Tags, []string{"b", "a", "c"}) {
		t.Errorf("tags = %v", e.Tags)
	}
	if e.CrawledAt == nil || *e.CrawledAt != "2026-01-02T03:04:05Z" {
		t.Errorf("crawled_at = %v", e.CrawledAt)
	}

	id2, _ := s.AddIndustryEntry(ctx, &IndustryEntry{Source: "https://b.test", Content: "c", Tags: []string{}})
	e2, _ := s.GetIndustryEntry(ctx, id2)
	if e2.Tags != nil || e2.Title != nil {
		t.Errorf("untagged entry: tags=%v title=%v", e2.Tags, e2.Title)
	}

	if missing, err := s.GetIndustryEntry(ctx, 9999); err != nil || missing != nil {
		t.Errorf("missing entry: %v %v", missing, err)
	}
}

func TestQueryIndustryEntries_TagSemantics(t *testing.T) {
	// WHAT: e ∈ query(tags=T) iff e.tags ∩ T ≠ ∅; empty T applies no filter,
	// while T = {""} matches nothing.
	// WHY: Tag filtering is the store's main retrieval contract.
	s := openTestStore(t, "acme")
	ctx := context.Background()

	tagSets := [][]string{
		{"x"},
		{"y"},
		{"x", "y"},
		{"z"},
		nil,
	}
	for i, tags := range tagSets {
		if _, err := s.AddIndustryEntry(ctx, &IndustryEntry{
			Source: "https://s.test/" + string(rune('a'+i)), Content: "c", Tags: tags,
		}); err != nil {
			t.Fatal(err)
		}
	}

	requests := [][]string{{"x"}, {"y"}, {"x", "z"}, {"nope"}, {"x", "y", "z"}, nil, {}, {""}, {"", "x"}}
	for _, req := range requests {
		got, err := s.QueryIndustryEntries(ctx, 100, req)
		if err != nil {
			t.Fatalf("query %v: %v", req, err)
		}
		want := 0
		for _, tags := range tagSets {
			if len(req) == 0 || intersects(tags, req) {
				want++
			}
		}
		if len(got) != want {
			t.Errorf("query %v: got %d entries, want %d", req, len(got), want)
		}
		for _, e := range got {
			if len(req) > 0 && !intersects(e.Tags, req) {
				t.Errorf("query %v returned entry with tags %v", req, e.Tags)
			}
		}
	}
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

func TestQueryIndustryEntries_NewestFirstAndLimit(t *testing.T) {
	s := openTestStore(t, "acme")
	fixed := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		id, _ := s.AddIndustryEntry(ctx, &IndustryEntry{Source: "https://s.test", Content: "c"})
		ids = append(ids, id)
	}
	got, err := s.QueryIndustryEntries(ctx, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("limit: got %d", len(got))
	}
	// Same created_at: id breaks the tie.
	for i, e := range got {
		if e.ID != ids[len(ids)-1-i] {
			t.Errorf("position %d: id %d, want %d", i, e.ID, ids[len(ids)-1-i])
		}
	}

	def, _ := s.QueryIndustryEntries(ctx, 0, nil)
	if len(def) != 5 {
		t.Errorf("default limit: got %d", len(def))
	}
}

func TestSalesScenario(t *testing.T) {
	// WHAT: Two entries tagged sales_statistics / sales_trends; tag query
	// returns only the first, keyword search returns both.
	s := openTestStore(t, "acme")
	ctx := context.Background()

	id1, _ := s.AddIndustryEntry(ctx, &IndustryEntry{
		Source: "https://stats.test", Title: str("Sales Statistics 2026"), Content: "numbers",
		Tags: []string{"sales_statistics"},
	})
	id2, _ := s.AddIndustryEntry(ctx, &IndustryEntry{
		Source: "https://trends.test", Title: str("Trends"), Content: "B2B SALES are shifting",
		Tags: []string{"sales_trends"},
	})

	got, err := s.QueryIndustryEntries(ctx, 10, []string{"sales_statistics"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != id1 {
		t.Fatalf("tag query: %+v", got)
	}

	found, err := s.SearchIndustryEntries(ctx, "sales", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 || found[0].ID != id2 || found[1].ID != id1 {
		t.Fatalf("search: got %d results", len(found))
	}

	filtered, _ := s.SearchIndustryEntries(ctx, "sales", []string{"sales_trends"})
	if len(filtered) != 1 || filtered[0].ID != id2 {
		t.Fatalf("search with tags: %+v", filtered)
	}
}

func TestSearchIndustryEntries_LiteralWildcards(t *testing.T) {
	// WHAT: % and _ in a keyword match literally.
	s := openTestStore(t, "acme")
	ctx := context.Background()
	s.AddIndustryEntry(ctx, &IndustryEntry{Source: "a", Content: "growth of 50% this year"})
	s.AddIndustryEntry(ctx, &IndustryEntry{Source: "b", Content: "growth of 50 units"})
	s.AddIndustryEntry(ctx, &IndustryEntry{Source: "c", Content: "snake_case wins"})
	s.AddIndustryEntry(ctx, &IndustryEntry{Source: "d", Content: "snakeXcase loses"})

	if got, _ := s.SearchIndustryEntries(ctx, "50%", nil); len(got) != 1 || got[0].Source != "a" {
		t.Errorf("50%%: %d results", len(got))
	}
	if got, _ := s.SearchIndustryEntries(ctx, "snake_case", nil); len(got) != 1 || got[0].Source != "c" {
		t.Errorf("snake_case: %d results", len(got))
	}
}

func TestMalformedTags(t *testing.T) {
	// WHAT: An unparsable stored tag collection is treated as empty.
	// WHY: Never propagated to the caller.
	s := openTestStore(t, "acme")
	ctx := context.Background()
	good, _ := s.AddIndustryEntry(ctx, &IndustryEntry{Source: "good", Content: "c", Tags: []string{"x"}})
	bad, _ := s.AddIndustryEntry(ctx, &IndustryEntry{Source: "bad", Content: "c", Tags: []string{"x"}})

	db, err := dbopen.Open(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`UPDATE industry_data SET tags = '["x", ' WHERE id = ?`, bad); err != nil {
		t.Fatal(err)
	}
	db.Close()

	got, err := s.QueryIndustryEntries(ctx, 10, []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != good {
		t.Fatalf("tag query with malformed row: %+v", got)
	}

	all, err := s.QueryIndustryEntries(ctx, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("unfiltered: got %d", len(all))
	}
	for _, e := range all {
		if e.ID == bad && e.Tags != nil {
			t.Errorf("malformed tags read back as %v, want nil", e.Tags)
		}
	}
}

func TestTagsContain(t *testing.T) {
	tests := []struct {
		raw  any
		tag  string
		want bool
	}{
		{nil, "x", false},
		{`["x","y"]`, "x", true},
		{[]byte(`["x","y"]`), "y", true},
		{`["x"]`, "z", false},
		{`not json`, "x", false},
		{`"x"`, "x", false},
		{`[1, "x"]`, "x", false},
		{``, "x", false},
		{int64(3), "x", false},
	}
	for _, tt := range tests {
		if got := TagsContain(tt.raw, tt.tag); got != tt.want {
			t.Errorf("TagsContain(%v, %q) = %v, want %v", tt.raw, tt.tag, got, tt.want)
		}
	}
}

func TestEncodeDecodeTags(t *testing.T) {
	if EncodeTags(nil) != nil || EncodeTags([]string{""}) != nil {
		t.Fatal("empty sets should encode to nil")
	}
	enc := EncodeTags([]string{"b", "a", "b"})
	if enc == nil || *enc != `["b","a"]` {
		t.Fatalf("encode = %v", enc)
	}
	dec, err := DecodeTags(enc)
	if err != nil || !slices.Equal(dec, []string{"b", "a"}) {
		t.Fatalf("decode = %v, %v", dec, err)
	}
	if _, err := DecodeTags(str("{")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestUpdateLead(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	id, _ := s.AddLead(ctx, &Lead{CompanyName: "Initech", Website: "https://initech.test", ContactInfo: "bill@initech.test", Details: "tps"})

	ok, err := s.UpdateLead(ctx, id, map[string]any{"bogus": 1})
	if err != nil || ok {
		t.Fatalf("bogus update: ok=%v err=%v", ok, err)
	}
	before, _ := s.GetLead(ctx, id)

	ok, err = s.UpdateLead(ctx, id, map[string]any{"details": "x", "created_at": 0, "id": 42})
	if err != nil || !ok {
		t.Fatalf("details update: ok=%v err=%v", ok, err)
	}
	after, _ := s.GetLead(ctx, id)
	if after.Details != "x" {
		t.Errorf("details = %q", after.Details)
	}
	if after.CompanyName != before.CompanyName || after.Website != before.Website ||
		after.ContactInfo != before.ContactInfo || after.CreatedAt != before.CreatedAt || after.ID != id {
		t.Errorf("other fields changed: before %+v after %+v", before, after)
	}

	ok, _ = s.UpdateLead(ctx, id, map[string]any{"website": nil, "contact_info": 12})
	if !ok {
		t.Fatal("multi-field update failed")
	}
	after, _ = s.GetLead(ctx, id)
	if after.Website != "" || after.ContactInfo != "12" {
		t.Errorf("website=%q contact_info=%q", after.Website, after.ContactInfo)
	}

	// company_name is NOT NULL: the statement fails and nothing changes.
	ok, err = s.UpdateLead(ctx, id, map[string]any{"company_name": nil, "details": "y"})
	if err != nil || ok {
		t.Fatalf("null company_name: ok=%v err=%v", ok, err)
	}
	after, _ = s.GetLead(ctx, id)
	if after.Details != "x" {
		t.Errorf("failed update was partially applied: details=%q", after.Details)
	}
}

func TestSolutionStatus(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	leadID, _ := s.AddLead(ctx, &Lead{CompanyName: "Initech"})
	solID, err := s.AddSolution(ctx, leadID, "automate TPS reports")
	if err != nil {
		t.Fatal(err)
	}

	sols, _ := s.ListSolutions(ctx, leadID, "")
	if len(sols) != 1 || sols[0].Status != StatusPending {
		t.Fatalf("default status: %+v", sols)
	}

	if ok, _ := s.UpdateSolutionStatus(ctx, solID, "archived"); ok {
		t.Fatal("archived should be rejected")
	}
	sols, _ = s.ListSolutions(ctx, 0, StatusPending)
	if len(sols) != 1 {
		t.Fatal("status changed after invalid update")
	}

	// Every valid status is reachable from every other.
	for _, from := range validStatuses {
		for _, to := range validStatuses {
			s.UpdateSolutionStatus(ctx, solID, from)
			ok, err := s.UpdateSolutionStatus(ctx, solID, to)
			if err != nil || !ok {
				t.Fatalf("%s -> %s: ok=%v err=%v", from, to, ok, err)
			}
			got, _ := s.ListSolutions(ctx, leadID, to)
			if len(got) != 1 {
				t.Fatalf("%s -> %s not applied", from, to)
			}
		}
	}
}

func TestListSolutions_Filters(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	l1, _ := s.AddLead(ctx, &Lead{CompanyName: "A"})
	l2, _ := s.AddLead(ctx, &Lead{CompanyName: "B"})
	s1, _ := s.AddSolution(ctx, l1, "a1")
	s2, _ := s.AddSolution(ctx, l1, "a2")
	s.AddSolution(ctx, l2, "b1")
	s.UpdateSolutionStatus(ctx, s2, StatusSent)

	all, _ := s.ListSolutions(ctx, 0, "")
	if len(all) != 3 {
		t.Fatalf("all: %d", len(all))
	}
	byLead, _ := s.ListSolutions(ctx, l1, "")
	if len(byLead) != 2 || byLead[0].ID != s2 || byLead[1].ID != s1 {
		t.Fatalf("by lead newest first: %+v", byLead)
	}
	both, _ := s.ListSolutions(ctx, l1, StatusPending)
	if len(both) != 1 || both[0].ID != s1 {
		t.Fatalf("lead+status: %+v", both)
	}
}

func TestUnknownLead(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	if _, err := s.AddSolution(ctx, 404, "x"); !errors.Is(err, ErrUnknownLead) {
		t.Fatalf("solution: err = %v", err)
	}
	if _, err := s.LogOutreach(ctx, 404, "x"); !errors.Is(err, ErrUnknownLead) {
		t.Fatalf("outreach: err = %v", err)
	}
}

func TestOutreachResponse(t *testing.T) {
	// WHAT: response and updated_at are set together; the record leaves
	// the pending list.
	s := openTestStore(t, "acme")
	ctx := context.Background()
	leadID, _ := s.AddLead(ctx, &Lead{CompanyName: "Initech"})
	oid, err := s.LogOutreach(ctx, leadID, "hello")
	if err != nil {
		t.Fatal(err)
	}

	pending, _ := s.PendingOutreach(ctx)
	if len(pending) != 1 || pending[0].Response != nil || pending[0].UpdatedAt != nil {
		t.Fatalf("before: %+v", pending)
	}
	if pending[0].CompanyName != "Initech" {
		t.Errorf("company_name = %q", pending[0].CompanyName)
	}

	ok, err := s.UpdateOutreachResponse(ctx, oid, "interested")
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	pending, _ = s.PendingOutreach(ctx)
	if len(pending) != 0 {
		t.Fatalf("still pending: %+v", pending)
	}
	hist, _ := s.ListOutreach(ctx, leadID, 10)
	if len(hist) != 1 || hist[0].Response == nil || *hist[0].Response != "interested" || hist[0].UpdatedAt == nil {
		t.Fatalf("after: %+v", hist[0])
	}

	ok, _ = s.UpdateOutreachResponse(ctx, oid, "signed")
	hist, _ = s.ListOutreach(ctx, 0, 10)
	if !ok || *hist[0].Response != "signed" {
		t.Fatalf("second update should overwrite: %+v", hist[0])
	}
}

func TestListOutreach_ExcludesOrphans(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	leadID, _ := s.AddLead(ctx, &Lead{CompanyName: "Initech"})
	s.LogOutreach(ctx, leadID, "hello")

	db, err := dbopen.Open(s.Path(), dbopen.WithoutForeignKeys(), dbopen.WithMaxOpenConns(1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO outreach_log (lead_id, message_sent, sent_at) VALUES (999, 'orphan', 1)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	hist, _ := s.ListOutreach(ctx, 0, 10)
	if len(hist) != 1 || hist[0].MessageSent != "hello" {
		t.Fatalf("orphan not excluded: %+v", hist)
	}
	pending, _ := s.PendingOutreach(ctx)
	if len(pending) != 1 {
		t.Fatalf("orphan in pending: %d", len(pending))
	}
}

func TestListLeads_JoinRows(t *testing.T) {
	// WHAT: A lead with n solutions yields n rows; a lead with none yields
	// one row with nil status.
	// WHY: The join is not deduplicated; callers rely on that shape.
	s := openTestStore(t, "acme")
	ctx := context.Background()
	l1, _ := s.AddLead(ctx, &Lead{CompanyName: "Two Solutions"})
	s.AddLead(ctx, &Lead{CompanyName: "No Solution"})
	s1, _ := s.AddSolution(ctx, l1, "a")
	s.AddSolution(ctx, l1, "b")
	s.UpdateSolutionStatus(ctx, s1, StatusApproved)

	rows, err := s.ListLeads(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].CompanyName != "No Solution" || rows[0].SolutionStatus != nil {
		t.Errorf("newest lead first with nil status: %+v", rows[0])
	}

	approved, _ := s.ListLeads(ctx, StatusApproved, 10)
	if len(approved) != 1 || approved[0].ID != l1 || *approved[0].SolutionID != s1 {
		t.Fatalf("approved filter: %+v", approved)
	}
	pending, _ := s.ListLeads(ctx, StatusPending, 10)
	if len(pending) != 1 || *pending[0].SolutionStatus != StatusPending {
		t.Fatalf("pending filter: %+v", pending)
	}
}

func TestCampaignStats(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()

	empty, err := s.CampaignStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if empty.TotalLeads != 0 || len(empty.SolutionStats) != 0 || empty.Responses != 0 {
		t.Fatalf("empty stats: %+v", empty)
	}

	var leads []int64
	for _, name := range []string{"A", "B", "C"} {
		id, _ := s.AddLead(ctx, &Lead{CompanyName: name})
		leads = append(leads, id)
	}
	s.AddSolution(ctx, leads[0], "p")
	sol, _ := s.AddSolution(ctx, leads[1], "q")
	s.UpdateSolutionStatus(ctx, sol, StatusApproved)
	oid, _ := s.LogOutreach(ctx, leads[0], "hi")
	s.UpdateOutreachResponse(ctx, oid, "yes")

	st, err := s.CampaignStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalLeads != 3 || st.TotalOutreach != 1 || st.Responses != 1 {
		t.Errorf("stats = %+v", st)
	}
	if len(st.SolutionStats) != 2 || st.SolutionStats["pending"] != 1 || st.SolutionStats["approved"] != 1 {
		t.Errorf("solution_stats = %v", st.SolutionStats)
	}
}

func TestExportAll(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()

	ex, err := s.ExportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ex.Client != nil || ex.CampaignStats == nil {
		t.Fatalf("empty export: %+v", ex)
	}

	s.CreateClient(ctx, &ClientProfile{TenantID: "acme", Email: "ops@acme.test", CampaignParameters: json.RawMessage(`{"a":1}`)})
	s.AddIndustryEntry(ctx, &IndustryEntry{Source: "https://a.test", Content: "c", Tags: []string{"t"}})
	lead, _ := s.AddLead(ctx, &Lead{CompanyName: "Initech"})
	s.AddSolution(ctx, lead, "pitch")
	s.LogOutreach(ctx, lead, "hello")

	ex, err = s.ExportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ex.Client == nil || ex.Client.Email != "ops@acme.test" {
		t.Errorf("client: %+v", ex.Client)
	}
	if len(ex.IndustryData) != 1 || len(ex.Leads) != 1 || len(ex.Solutions) != 1 || len(ex.OutreachHistory) != 1 {
		t.Errorf("collections: %d %d %d %d", len(ex.IndustryData), len(ex.Leads), len(ex.Solutions), len(ex.OutreachHistory))
	}
	if ex.CampaignStats.TotalLeads != 1 {
		t.Errorf("stats: %+v", ex.CampaignStats)
	}

	b, err := json.Marshal(ex)
	if err != nil {
		t.Fatal(err)
	}
	var keys map[string]json.RawMessage
	json.Unmarshal(b, &keys)
	for _, k := range []string{"client_info", "industry_data", "leads", "solutions", "outreach_history", "campaign_stats"} {
		if _, ok := keys[k]; !ok {
			t.Errorf("export JSON missing %q", k)
		}
	}
}

func TestIngestLog(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	entryID := int64(7)

	if err := s.InsertIngestLog(ctx, &IngestLogEntry{ID: "l1", BatchID: "b1", URL: "https://a.test", Status: IngestPersisted, EntryID: &entryID, CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertIngestLog(ctx, &IngestLogEntry{ID: "l2", BatchID: "b1", URL: "https://b.test", Status: IngestFetchError, Error: "http 500", CreatedAt: 2}); err != nil {
		t.Fatal(err)
	}

	hist, err := s.IngestHistory(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].ID != "l2" || hist[0].EntryID != nil || hist[1].EntryID == nil || *hist[1].EntryID != 7 {
		t.Fatalf("history: %+v", hist)
	}
}

func TestMigrate_AddsColumns(t *testing.T) {
	// WHAT: A tenant file created before title/tags/crawled_at existed is
	// upgraded in place on Open.
	root := t.TempDir()
	db, err := dbopen.Open(filepath.Join(root, "legacy.db"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`CREATE TABLE industry_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT, source TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '', pain_points TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL);
		INSERT INTO industry_data (source, content, created_at) VALUES ('old', 'legacy', 1);`)
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	s := openTestStoreAt(t, root, "legacy")
	got, err := s.QueryIndustryEntries(context.Background(), 10, []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("legacy row has no tags: %+v", got)
	}
	all, _ := s.QueryIndustryEntries(context.Background(), 10, nil)
	if len(all) != 1 || all[0].Title != nil {
		t.Fatalf("legacy row: %+v", all)
	}
}

func TestCancelledContext(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.AddLead(ctx, &Lead{CompanyName: "x"}); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}
