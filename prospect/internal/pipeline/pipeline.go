// Package pipeline runs the fetch → normalize → persist workflow for a batch
// of URLs against one tenant store.
//
// URLs are processed sequentially and independently: a failed fetch or
// normalization is logged to ingest_log and skipped, the batch continues.
// Only context cancellation and storage unavailability stop a batch.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/prospect/extract"
	"github.com/hazyhaar/prospect/idgen"
	"github.com/hazyhaar/prospect/prospect/internal/fetch"
	"github.com/hazyhaar/prospect/prospect/internal/store"
)

// PreviewLen is the number of runes kept in BatchItem.Preview.
const PreviewLen = 200

// PlaceholderPainPoints is stored when no extractor is configured or the
// extractor fails.
const PlaceholderPainPoints = "Pain point extraction pending"

// Fetcher retrieves raw page bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Normalizer turns raw HTML into a title and main text.
type Normalizer interface {
	Normalize(raw []byte, sourceURL string) (*extract.Document, error)
}

// PainPointExtractor derives pain-point text from normalized content.
type PainPointExtractor interface {
	Extract(ctx context.Context, text string) (string, error)
}

// EntryWriter is the subset of the tenant store the pipeline writes to.
type EntryWriter interface {
	AddIndustryEntry(ctx context.Context, e *store.IndustryEntry) (int64, error)
	InsertIngestLog(ctx context.Context, e *store.IngestLogEntry) error
}

// Placeholder is a PainPointExtractor that always returns
// PlaceholderPainPoints.
type Placeholder struct{}

// Extract implements PainPointExtractor.
func (Placeholder) Extract(context.Context, string) (string, error) {
	return PlaceholderPainPoints, nil
}

// Stage is a step of the per-URL state machine.
type Stage string

const (
	StageFetching    Stage = "fetching"
	StageNormalizing Stage = "normalizing"
	StagePersisting  Stage = "persisting"
	StagePersisted   Stage = "persisted"
)

// BatchItem is one successfully ingested URL.
type BatchItem struct {
	ID         int64    `json:"id"`
	Source     string   `json:"source"`
	Title      *string  `json:"title"`
	Preview    string   `json:"preview"`
	PainPoints string   `json:"pain_points"`
	Tags       []string `json:"tags"`
}

// BatchResult lists the persisted URLs of a batch in input order.
type BatchResult struct {
	BatchID string       `json:"batch_id"`
	Items   []*BatchItem `json:"items"`
	Failed  int          `json:"failed"`
}

// Pipeline ingests URL batches.
type Pipeline struct {
	fetcher    Fetcher
	normalizer Normalizer
	painPoints PainPointExtractor
	logger     *slog.Logger
	newID      idgen.Generator
	newBatchID idgen.Generator
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithIDGenerator sets the generator for ingest log row ids.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(p *Pipeline) { p.newID = gen }
}

// WithBatchIDGenerator sets the generator for batch ids.
func WithBatchIDGenerator(gen idgen.Generator) Option {
	return func(p *Pipeline) { p.newBatchID = gen }
}

// WithClock sets the time source for crawled_at and durations.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline. A nil extractor stores the placeholder.
func New(f Fetcher, n Normalizer, pp PainPointExtractor, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if pp == nil {
		pp = Placeholder{}
	}
	p := &Pipeline{
		fetcher:    f,
		normalizer: n,
		painPoints: pp,
		logger:     logger,
		newID:      idgen.Default,
		newBatchID: idgen.Prefixed("batch_", idgen.UUIDv7()),
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// stageError marks the stage a URL failed in.
type stageError struct {
	stage Stage
	err   error
}

func (e *stageError) Error() string { return string(e.stage) + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// Run ingests urls into w, tagging every entry with tags. The result holds
// the persisted URLs in input order. On cancellation or storage failure
// Run returns what was persisted so far together with the error.
func (p *Pipeline) Run(ctx context.Context, w EntryWriter, urls []string, tags []string) (*BatchResult, error) {
	tags = store.NormalizeTags(tags)
	res := &BatchResult{BatchID: p.newBatchID(), Items: []*BatchItem{}}
	log := p.logger.With("batch_id", res.BatchID)
	log.Info("pipeline: batch started", "urls", len(urls), "tags", tags)

	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			log.Info("pipeline: batch cancelled", "persisted", len(res.Items), "failed", res.Failed)
			return res, err
		}

		start := p.now()
		item, err := p.ingest(ctx, w, u, tags)
		entry := &store.IngestLogEntry{
			ID:         p.newID(),
			BatchID:    res.BatchID,
			URL:        u,
			DurationMs: p.now().Sub(start).Milliseconds(),
		}

		if err != nil {
			res.Failed++
			entry.Status, entry.Error = failureStatus(err), err.Error()
			p.writeLog(ctx, w, log, entry)
			log.Warn("pipeline: url failed", "url", u, "error", err)
			if fatal(err) {
				return res, errors.Unwrap(err)
			}
			continue
		}

		entry.Status = store.IngestPersisted
		entry.EntryID = &item.ID
		p.writeLog(ctx, w, log, entry)
		res.Items = append(res.Items, item)
		log.Info("pipeline: url persisted", "url", u, "entry_id", item.ID, "duration_ms", entry.DurationMs)
	}

	log.Info("pipeline: batch done", "persisted", len(res.Items), "failed", res.Failed)
	return res, nil
}

func (p *Pipeline) ingest(ctx context.Context, w EntryWriter, url string, tags []string) (*BatchItem, error) {
	page, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &stageError{StageFetching, err}
	}

	base := page.URL
	if base == "" {
		base = url
	}
	doc, err := p.normalizer.Normalize(page.Body, base)
	if err != nil {
		return nil, &stageError{StageNormalizing, err}
	}

	painPoints, err := p.painPoints.Extract(ctx, doc.Text)
	if err != nil {
		p.logger.Warn("pipeline: pain point extraction failed", "url", url, "error", err)
		painPoints = PlaceholderPainPoints
	}

	crawledAt := p.now().UTC().Format(time.RFC3339)
	e := &store.IndustryEntry{
		Source:     url,
		Title:      doc.Title,
		Content:    doc.Text,
		PainPoints: painPoints,
		Tags:       tags,
		CrawledAt:  &crawledAt,
	}
	id, err := w.AddIndustryEntry(ctx, e)
	if err != nil {
		return nil, &stageError{StagePersisting, err}
	}

	return &BatchItem{
		ID:         id,
		Source:     url,
		Title:      doc.Title,
		Preview:    extract.Preview(doc.Text, PreviewLen),
		PainPoints: painPoints,
		Tags:       e.Tags,
	}, nil
}

// writeLog records a URL outcome. It runs even after cancellation so the
// last URL's outcome is not lost.
func (p *Pipeline) writeLog(ctx context.Context, w EntryWriter, log *slog.Logger, e *store.IngestLogEntry) {
	if err := w.InsertIngestLog(context.WithoutCancel(ctx), e); err != nil {
		log.Warn("pipeline: ingest log write failed", "url", e.URL, "error", err)
	}
}

func failureStatus(err error) string {
	var se *stageError
	if !errors.As(err, &se) {
		return store.IngestStoreError
	}
	switch se.stage {
	case StageFetching:
		return store.IngestFetchError
	case StageNormalizing:
		return store.IngestNormalizeError
	default:
		return store.IngestStoreError
	}
}

// fatal reports whether a URL failure must stop the batch.
func fatal(err error) bool {
	var se *stageError
	return errors.As(err, &se) && se.stage == StagePersisting &&
		errors.Is(se.err, store.ErrStorageUnavailable)
}
