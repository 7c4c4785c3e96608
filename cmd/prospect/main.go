// Command prospect serves the per-client prospecting store over HTTP and MCP,
// runs the onboarding conversation behind a webhook, and crawls industry
// pages from the command line:
//
//	prospect                                  serve (PORT, default 8085)
//	prospect crawl -tenant acme -tags a,b URL...
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/prospect/channels"
	"github.com/hazyhaar/prospect/dbopen"
	"github.com/hazyhaar/prospect/horosafe"
	"github.com/hazyhaar/prospect/observability"
	"github.com/hazyhaar/prospect/onboarding"
	"github.com/hazyhaar/prospect/prospect"
	"github.com/hazyhaar/prospect/shield"
)

const version = "0.3.0"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using environment")
	}

	logger := newLogger(env("LOG_LEVEL", "info"))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(os.Args) > 1 && os.Args[1] == "crawl" {
		svc, err := prospect.New(cfg, logger)
		if err != nil {
			slog.Error("prospect service", "error", err)
			os.Exit(1)
		}
		err = runCrawl(ctx, svc, os.Args[2:], os.Stdout)
		svc.Close()
		if err != nil {
			slog.Error("crawl", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, logger); err != nil {
		slog.Error("server", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *prospect.Config, logger *slog.Logger) error {
	port := env("PORT", "8085")

	secret := env("WEBHOOK_SECRET", "")
	if secret == "" {
		slog.Warn("WEBHOOK_SECRET not set, onboarding webhook accepts unsigned requests")
	} else if err := horosafe.ValidateSecret([]byte(secret)); err != nil {
		return err
	}

	var (
		opts   []prospect.ServiceOption
		events *observability.EventLogger
	)
	if path := env("EVENTS_DB", ""); path != "" {
		eventsDB, err := openEvents(path)
		if err != nil {
			return fmt.Errorf("events db: %w", err)
		}
		defer eventsDB.Close()
		events = observability.NewEventLogger(eventsDB, observability.WithLogger(logger))
		opts = append(opts, prospect.WithEvents(events))
		retention, _ := strconv.Atoi(env("EVENTS_RETENTION_DAYS", "90"))
		go cleanupEvents(ctx, events, retention)
	}

	svc, err := prospect.New(cfg, logger, opts...)
	if err != nil {
		return fmt.Errorf("prospect service: %w", err)
	}
	defer svc.Close()

	// MCP over streamable HTTP.
	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "prospect", Version: version}, nil)
	svc.RegisterMCP(mcpSrv)
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil)

	// Onboarding conversation behind the webhook channel.
	wh := channels.NewWebhook("onboarding", channels.WebhookConfig{Secret: secret})
	defer wh.Close()
	bot := onboarding.New(svc, logger, onboarding.WithProductName(env("BOT_NAME", "Prospect")))
	go channels.Serve(ctx, wh, bot.HandleMessage, logger)

	rate, _ := strconv.Atoi(env("RATE_LIMIT", "30"))
	r := newRouter(&routes{
		svc:       svc,
		events:    events,
		logger:    logger,
		webhook:   wh,
		mcp:       mcpHandler,
		limiter:   shield.NewRateLimiter(rate, time.Minute),
		startedAt: time.Now(),
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute, // crawl batches run inside the request
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", port, "data_dir", cfg.DataDir, "fetch_mode", cfg.Fetch.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func openEvents(path string) (*sql.DB, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll())
	if err != nil {
		return nil, err
	}
	if err := observability.Init(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// cleanupEvents drops business events older than days, once at start and
// then daily.
func cleanupEvents(ctx context.Context, events *observability.EventLogger, days int) {
	if days <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if n, err := events.Cleanup(ctx, days); err != nil {
			slog.Warn("events cleanup", "error", err)
		} else if n > 0 {
			slog.Info("events cleanup", "deleted", n, "retention_days", days)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runCrawl implements "prospect crawl". It prints the batch result as JSON.
func runCrawl(ctx context.Context, svc *prospect.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("crawl", flag.ContinueOnError)
	tenantID := fs.String("tenant", "", "tenant id (required)")
	tags := fs.String("tags", "", "comma-separated tags attached to every entry")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tenantID == "" || fs.NArg() == 0 {
		return errors.New("usage: prospect crawl -tenant ID [-tags a,b] URL...")
	}

	var tagList []string
	for _, t := range strings.Split(*tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tagList = append(tagList, t)
		}
	}

	res, err := svc.Crawl(ctx, *tenantID, fs.Args(), tagList)
	if res != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res); encErr != nil && err == nil {
			err = encErr
		}
	}
	return err
}

// loadConfig reads CONFIG_FILE when set, then applies environment overrides.
func loadConfig() (*prospect.Config, error) {
	cfg := &prospect.Config{}
	if path := env("CONFIG_FILE", ""); path != "" {
		c, err := prospect.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	applyEnv(cfg, os.Getenv)
	return cfg, nil
}

func applyEnv(cfg *prospect.Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.DataDir, "DATA_DIR")
	set(&cfg.Fetch.Mode, "FETCH_MODE")
	set(&cfg.Fetch.BrowserURL, "BROWSER_URL")
	set(&cfg.LLM.Endpoint, "LLM_ENDPOINT")
	set(&cfg.LLM.APIKey, "LLM_API_KEY")
	set(&cfg.LLM.Model, "LLM_MODEL")
	set(&cfg.LLM.APIVersion, "LLM_API_VERSION")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
