// Package kit holds the transport-neutral endpoint type shared by the HTTP
// and MCP surfaces, plus request-scoped context keys.
package kit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Endpoint is one service operation with its request already decoded.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first one is outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs each call at debug level and failures at warn level, tagged
// with the operation name and the tenant/trace ids found in ctx.
func Logging(logger *slog.Logger, op string) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			log := logger.With(
				"op", op,
				"transport", GetTransport(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			if tid := GetTenantID(ctx); tid != "" {
				log = log.With("tenant_id", tid)
			}
			if trace := GetTraceID(ctx); trace != "" {
				log = log.With("trace_id", trace)
			}
			if err != nil {
				log.Warn("kit: endpoint failed", "error", err)
			} else {
				log.Debug("kit: endpoint ok")
			}
			return resp, err
		}
	}
}

// Recover turns a panic inside the endpoint into an error so one bad call
// cannot take the server down.
func Recover(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (resp any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("kit: endpoint panic", "panic", r, "stack", string(debug.Stack()))
					resp, err = nil, fmt.Errorf("internal error: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}
