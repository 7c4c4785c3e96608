package prospect

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names, in order.
var exportSheets = []string{"Client", "Industry", "Leads", "Solutions", "Outreach", "Stats"}

// ExportXLSX writes the ExportAll snapshot of tenantID as an Excel workbook
// with one sheet per collection.
func (svc *Service) ExportXLSX(ctx context.Context, tenantID string, w io.Writer) error {
	exp, err := svc.ExportAll(ctx, tenantID)
	if err != nil {
		return err
	}
	f, err := buildWorkbook(exp)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx: write: %w", err)
	}
	return nil
}

func buildWorkbook(exp *Export) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), exportSheets[0]); err != nil {
		f.Close()
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	for _, name := range exportSheets[1:] {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("xlsx: new sheet %s: %w", name, err)
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("xlsx: header style: %w", err)
	}

	sw := &sheetWriter{f: f, headerStyle: headerStyle}

	sw.table("Client", []string{"Tenant ID", "Email", "Industry", "Location", "Campaign Parameters", "Created At"})
	if c := exp.Client; c != nil {
		sw.row("Client", c.TenantID, c.Email, c.Industry, c.Location, string(c.CampaignParameters), msTime(c.CreatedAt))
	}

	sw.table("Industry", []string{"ID", "Source", "Title", "Tags", "Pain Points", "Content", "Crawled At", "Created At"})
	for _, e := range exp.IndustryData {
		sw.row("Industry", e.ID, e.Source, deref(e.Title), strings.Join(e.Tags, ", "),
			e.PainPoints, e.Content, deref(e.CrawledAt), msTime(e.CreatedAt))
	}

	sw.table("Leads", []string{"ID", "Company", "Website", "Contact", "Details", "Solution ID", "Solution Status", "Created At"})
	for _, l := range exp.Leads {
		var solID any
		if l.SolutionID != nil {
			solID = *l.SolutionID
		}
		sw.row("Leads", l.ID, l.CompanyName, l.Website, l.ContactInfo, l.Details,
			solID, deref(l.SolutionStatus), msTime(l.CreatedAt))
	}

	sw.table("Solutions", []string{"ID", "Lead ID", "Status", "Solution", "Generated At"})
	for _, s := range exp.Solutions {
		sw.row("Solutions", s.ID, s.LeadID, s.Status, s.SolutionText, msTime(s.GeneratedAt))
	}

	sw.table("Outreach", []string{"ID", "Lead ID", "Company", "Message", "Sent At", "Response", "Updated At"})
	for _, o := range exp.OutreachHistory {
		var updated any
		if o.UpdatedAt != nil {
			updated = msTime(*o.UpdatedAt)
		}
		sw.row("Outreach", o.ID, o.LeadID, o.CompanyName, o.MessageSent, msTime(o.SentAt), deref(o.Response), updated)
	}

	sw.table("Stats", []string{"Metric", "Value"})
	if st := exp.CampaignStats; st != nil {
		sw.row("Stats", "total_leads", st.TotalLeads)
		sw.row("Stats", "total_outreach", st.TotalOutreach)
		sw.row("Stats", "responses", st.Responses)
		statuses := make([]string, 0, len(st.SolutionStats))
		for k := range st.SolutionStats {
			statuses = append(statuses, k)
		}
		sort.Strings(statuses)
		for _, k := range statuses {
			sw.row("Stats", "solutions_"+k, st.SolutionStats[k])
		}
	}

	if sw.err != nil {
		f.Close()
		return nil, sw.err
	}
	f.SetActiveSheet(0)
	return f, nil
}

// sheetWriter appends rows per sheet and keeps the first error.
type sheetWriter struct {
	f           *excelize.File
	headerStyle int
	next        map[string]int
	err         error
}

func (sw *sheetWriter) table(sheet string, headers []string) {
	if sw.next == nil {
		sw.next = map[string]int{}
	}
	vals := make([]any, len(headers))
	for i, h := range headers {
		vals[i] = h
	}
	sw.row(sheet, vals...)
	if sw.err != nil {
		return
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		sw.err = err
		return
	}
	if err := sw.f.SetCellStyle(sheet, "A1", last, sw.headerStyle); err != nil {
		sw.err = fmt.Errorf("xlsx: style %s: %w", sheet, err)
		return
	}
	if err := sw.f.SetPanes(sheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		sw.err = fmt.Errorf("xlsx: freeze %s: %w", sheet, err)
	}
}

func (sw *sheetWriter) row(sheet string, vals ...any) {
	if sw.err != nil {
		return
	}
	sw.next[sheet]++
	cell, err := excelize.CoordinatesToCellName(1, sw.next[sheet])
	if err != nil {
		sw.err = err
		return
	}
	if err := sw.f.SetSheetRow(sheet, cell, &vals); err != nil {
		sw.err = fmt.Errorf("xlsx: %s row %d: %w", sheet, sw.next[sheet], err)
	}
}

func msTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
