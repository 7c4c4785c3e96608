package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/prospect/observability"
	"github.com/hazyhaar/prospect/prospect"
	"github.com/hazyhaar/prospect/shield"
)

// routes holds what the HTTP surface needs besides the Service.
type routes struct {
	svc       *prospect.Service
	events    *observability.EventLogger // nil disables /api/events
	logger    *slog.Logger
	webhook   http.Handler // onboarding channel; nil disables the route
	mcp       http.Handler // streamable MCP handler; nil disables the route
	limiter   *shield.RateLimiter
	startedAt time.Time
}

func newRouter(rt *routes) chi.Router {
	r := chi.NewRouter()
	for _, mw := range shield.APIStack(rt.logger) {
		r.Use(mw)
	}
	limit := func(h http.HandlerFunc) http.Handler {
		if rt.limiter == nil {
			return h
		}
		return rt.limiter.Middleware(h)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]any{
			"status": "ok",
			"uptime": time.Since(rt.startedAt).Round(time.Second).String(),
		})
	})

	if rt.webhook != nil {
		r.Method(http.MethodPost, "/webhook/onboarding", limit(rt.webhook.ServeHTTP))
	}
	if rt.mcp != nil {
		r.Handle("/mcp", rt.mcp)
	}

	if rt.events != nil {
		r.Get("/api/events", func(w http.ResponseWriter, r *http.Request) {
			evs, err := rt.events.Recent(r.Context(), r.URL.Query().Get("type"), queryInt(r, "limit", 50))
			respond(w, r, evs, err)
		})
	}

	svc := rt.svc
	r.Post("/api/clients", func(w http.ResponseWriter, r *http.Request) {
		var p prospect.ClientProfile
		if !decode(w, r, &p) {
			return
		}
		created, err := svc.CreateClient(r.Context(), &p)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !created {
			writeError(w, 409, fmt.Errorf("client %q already exists", p.TenantID))
			return
		}
		writeJSON(w, 201, map[string]string{"tenant_id": p.TenantID})
	})

	r.Route("/api/tenants/{tenantID}", func(r chi.Router) {
		r.Get("/client", func(w http.ResponseWriter, r *http.Request) {
			c, err := svc.GetClient(r.Context(), tenant(r))
			respond(w, r, c, err)
		})

		// Industry corpus.
		r.Get("/industry", func(w http.ResponseWriter, r *http.Request) {
			entries, err := svc.QueryIndustryEntries(r.Context(), tenant(r), queryInt(r, "limit", 10), queryList(r, "tags"))
			respond(w, r, entries, err)
		})
		r.Get("/industry/search", func(w http.ResponseWriter, r *http.Request) {
			entries, err := svc.SearchIndustryEntries(r.Context(), tenant(r), r.URL.Query().Get("q"), queryList(r, "tags"))
			respond(w, r, entries, err)
		})
		r.Post("/industry", func(w http.ResponseWriter, r *http.Request) {
			var e prospect.IndustryEntry
			if !decode(w, r, &e) {
				return
			}
			id, err := svc.AddIndustryEntry(r.Context(), tenant(r), &e)
			created(w, r, id, err)
		})
		r.Get("/industry/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			e, err := svc.GetIndustryEntry(r.Context(), tenant(r), id)
			respond(w, r, e, err)
		})
		r.Method(http.MethodPost, "/crawl", limit(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				URLs []string `json:"urls"`
				Tags []string `json:"tags"`
			}
			if !decode(w, r, &req) {
				return
			}
			res, err := svc.Crawl(r.Context(), tenant(r), req.URLs, req.Tags)
			respond(w, r, res, err)
		}))
		r.Get("/ingest-log", func(w http.ResponseWriter, r *http.Request) {
			rows, err := svc.IngestHistory(r.Context(), tenant(r), queryInt(r, "limit", 50))
			respond(w, r, rows, err)
		})

		// Leads.
		r.Post("/leads", func(w http.ResponseWriter, r *http.Request) {
			var l prospect.Lead
			if !decode(w, r, &l) {
				return
			}
			id, err := svc.AddLead(r.Context(), tenant(r), &l)
			created(w, r, id, err)
		})
		r.Get("/leads", func(w http.ResponseWriter, r *http.Request) {
			rows, err := svc.ListLeads(r.Context(), tenant(r), r.URL.Query().Get("status"), queryInt(r, "limit", 100))
			respond(w, r, rows, err)
		})
		r.Get("/leads/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			l, err := svc.GetLead(r.Context(), tenant(r), id)
			respond(w, r, l, err)
		})
		r.Patch("/leads/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			var fields map[string]any
			if !decode(w, r, &fields) {
				return
			}
			updated, err := svc.UpdateLead(r.Context(), tenant(r), id, fields)
			applied(w, r, updated, err)
		})

		// Solutions.
		r.Post("/leads/{id}/solutions", func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			var req struct {
				Text string `json:"solution_text"`
			}
			if !decode(w, r, &req) {
				return
			}
			sid, err := svc.AddSolution(r.Context(), tenant(r), id, req.Text)
			created(w, r, sid, err)
		})
		r.Get("/leads/{id}/solutions", func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			sols, err := svc.ListSolutions(r.Context(), tenant(r), id, r.URL.Query().Get("status"))
			respond(w, r, sols, err)
		})
		r.Get("/solutions", func(w http.ResponseWriter, r *http.Request) {
			sols, err := svc.ListSolutions(r.Context(), tenant(r), 0, r.URL.Query().Get("status"))
			respond(w, r, sols, err)
		})
		r.Put("/solutions/{id}/status", func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			var req struct {
				Status string `json:"status"`
			}
			if !decode(w, r, &req) {
				return
			}
			updated, err := svc.UpdateSolutionStatus(r.Context(), tenant(r), id, req.Status)
			applied(w, r, updated, err)
		})

		// Outreach.
		r.Post("/leads/{id}/outreach", func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			var req struct {
				Message string `json:"message"`
			}
			if !decode(w, r, &req) {
				return
			}
			oid, err := svc.LogOutreach(r.Context(), tenant(r), id, req.Message)
			created(w, r, oid, err)
		})
		r.Get("/leads/{id}/outreach", func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			recs, err := svc.ListOutreach(r.Context(), tenant(r), id, queryInt(r, "limit", 0))
			respond(w, r, recs, err)
		})
		r.Get("/outreach", func(w http.ResponseWriter, r *http.Request) {
			recs, err := svc.ListOutreach(r.Context(), tenant(r), 0, queryInt(r, "limit", 0))
			respond(w, r, recs, err)
		})
		r.Get("/outreach/pending", func(w http.ResponseWriter, r *http.Request) {
			recs, err := svc.PendingOutreach(r.Context(), tenant(r))
			respond(w, r, recs, err)
		})
		r.Put("/outreach/{id}/response", func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			var req struct {
				Response string `json:"response"`
			}
			if !decode(w, r, &req) {
				return
			}
			updated, err := svc.UpdateOutreachResponse(r.Context(), tenant(r), id, req.Response)
			applied(w, r, updated, err)
		})

		// Reporting.
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			st, err := svc.CampaignStats(r.Context(), tenant(r))
			respond(w, r, st, err)
		})
		r.Get("/export", func(w http.ResponseWriter, r *http.Request) {
			exp, err := svc.ExportAll(r.Context(), tenant(r))
			respond(w, r, exp, err)
		})
		r.Get("/export.xlsx", func(w http.ResponseWriter, r *http.Request) {
			id := tenant(r)
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".xlsx"))
			if err := svc.ExportXLSX(r.Context(), id, w); err != nil {
				w.Header().Del("Content-Disposition")
				writeServiceError(w, r, err)
			}
		})
	})

	return r
}

func tenant(r *http.Request) string {
	return chi.URLParam(r, "tenantID")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, 400, fmt.Errorf("invalid id %q", chi.URLParam(r, "id")))
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, 400, fmt.Errorf("invalid JSON body: %w", err))
		return false
	}
	return true
}

// respond writes v, or 404 when v is a nil pointer.
func respond[T any](w http.ResponseWriter, r *http.Request, v T, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if isNil(v) {
		writeError(w, 404, errors.New("not found"))
		return
	}
	writeJSON(w, 200, v)
}

func isNil(v any) bool {
	switch x := v.(type) {
	case *prospect.Client:
		return x == nil
	case *prospect.IndustryEntry:
		return x == nil
	case *prospect.Lead:
		return x == nil
	}
	return false
}

func created(w http.ResponseWriter, r *http.Request, id int64, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, 201, map[string]int64{"id": id})
}

// applied reports the outcome of an update. A rejected field or status
// value is a 400.
func applied(w http.ResponseWriter, r *http.Request, ok bool, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, 400, errors.New("update rejected"))
		return
	}
	writeJSON(w, 200, map[string]bool{"ok": true})
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		shield.GetLogger(r.Context()).Error("api: request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, code, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, prospect.ErrInvalidInput), errors.Is(err, prospect.ErrInvalidProfile):
		return 400
	case errors.Is(err, prospect.ErrUnknownLead):
		return 404
	case errors.Is(err, prospect.ErrStorageUnavailable):
		return 503
	default:
		return 500
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// queryList accepts both repeated keys and comma-separated values.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
