package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"NewsRAG/internal/domain"
	"NewsRAG/internal/ports"
	"NewsRAG/internal/textnorm"
)

const (
	// DefaultBatchSize bounds how many articles are embedded between progress logs.
	DefaultBatchSize       = 50
	defaultPageLimit       = 2
	defaultInitialDaysBack = 7
	dateLayout             = "2006-01-02"
)

var (
	// ErrMalformedArticle marks an article without id or without both title and summary.
	ErrMalformedArticle = errors.New("malformed article")
	// ErrEmptyText marks an article whose normalized text is empty.
	ErrEmptyText = errors.New("empty document text")
)

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Source  ports.NewsSource
	Store   ports.DocumentStore
	Encoder ports.Encoder
	Logger  *slog.Logger

	Themes          []string
	BatchSize       int
	PageLimit       int
	InitialDaysBack int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Pipeline implements the article-ingestion workflow.
type Pipeline struct {
	source  ports.NewsSource
	store   ports.DocumentStore
	encoder ports.Encoder
	logger  *slog.Logger

	themes          []string
	batchSize       int
	pageLimit       int
	initialDaysBack int
	now             func() time.Time
}

// NewPipeline constructs the ingestion component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:          deps.Source,
		store:           deps.Store,
		encoder:         deps.Encoder,
		logger:          deps.Logger,
		themes:          deps.Themes,
		batchSize:       deps.BatchSize,
		pageLimit:       deps.PageLimit,
		initialDaysBack: deps.InitialDaysBack,
		now:             deps.Now,
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.batchSize < 1 {
		p.batchSize = DefaultBatchSize
	}
	if p.pageLimit < 1 {
		p.pageLimit = defaultPageLimit
	}
	if p.initialDaysBack < 1 {
		p.initialDaysBack = defaultInitialDaysBack
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// CollectAndStore fetches every theme for the last daysBack days and stores new articles.
// Source and per-article failures are logged and counted; the returned error is non-nil
// only when ctx is cancelled.
func (p *Pipeline) CollectAndStore(ctx context.Context, themes []string, daysBack int) (domain.CollectReport, error) {
	if len(themes) == 0 {
		themes = p.themes
	}
	if daysBack < 0 {
		daysBack = 0
	}

	now := p.now()
	report := domain.CollectReport{
		RunID:     uuid.NewString(),
		DateFrom:  now.AddDate(0, 0, -daysBack).Format(dateLayout),
		DateTo:    now.Format(dateLayout),
		StartedAt: now,
	}
	log := p.logger.With("run_id", report.RunID)
	log.Info("collection started", "themes", len(themes), "date_from", report.DateFrom, "date_to", report.DateTo)

	for _, theme := range themes {
		if err := ctx.Err(); err != nil {
			report.Duration = p.now().Sub(now)
			return report, err
		}

		articles, err := p.source.FetchArticles(ctx, ports.FetchRequest{
			Keyword:   theme,
			DateFrom:  report.DateFrom,
			DateTo:    report.DateTo,
			PageLimit: p.pageLimit,
		})
		if err != nil {
			report.SourceErrs++
			log.Warn("news source failed", "theme", theme, "kept", len(articles), "error", err)
		}
		log.Info("theme fetched", "theme", theme, "articles", len(articles))

		for i := range articles {
			articles[i].Theme = theme
		}

		res := p.save(ctx, log.With("theme", theme), articles)
		report.Fetched += len(articles)
		report.Rejected += res.Rejected
		report.Skipped += res.Skipped
		report.Failed += res.Failed
		report.Total += res.Stored
		report.PerTheme = append(report.PerTheme, domain.ThemeCount{
			Theme:   theme,
			Fetched: len(articles),
			Stored:  res.Stored,
		})
		log.Info("theme stored", "theme", theme, "stored", res.Stored, "skipped", res.Skipped, "rejected", res.Rejected, "failed", res.Failed)
	}

	report.Duration = p.now().Sub(now)
	log.Info("collection finished",
		"total_stored", report.Total,
		"fetched", report.Fetched,
		"skipped", report.Skipped,
		"rejected", report.Rejected,
		"failed", report.Failed,
		"source_errors", report.SourceErrs,
	)

	return report, ctx.Err()
}

// SaveNewsData stores articles that are not yet in the store. Calling it twice with
// the same articles stores nothing the second time.
func (p *Pipeline) SaveNewsData(ctx context.Context, articles []domain.Article) domain.SaveResult {
	return p.save(ctx, p.logger, articles)
}

func (p *Pipeline) save(ctx context.Context, log *slog.Logger, articles []domain.Article) domain.SaveResult {
	var result domain.SaveResult

	valid := make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		if !article.Valid() {
			result.Rejected++
			log.Warn("article rejected", "article_id", article.ID, "error", ErrMalformedArticle)
			continue
		}
		valid = append(valid, article)
	}

	batches := (len(valid) + p.batchSize - 1) / p.batchSize
	for b := 0; b < batches; b++ {
		if ctx.Err() != nil {
			log.Warn("save interrupted", "batch", b+1, "batches", batches, "error", ctx.Err())
			return result
		}

		start := b * p.batchSize
		end := min(start+p.batchSize, len(valid))
		log.Debug("batch started", "batch", b+1, "batches", batches, "size", end-start)

		for _, article := range valid[start:end] {
			stored, err := p.saveOne(ctx, article)
			switch {
			case err != nil:
				result.Failed++
				log.Error("article not stored", "article_id", article.ID, "error", err)
			case !stored:
				result.Skipped++
				log.Debug("article already stored", "article_id", article.ID)
			default:
				result.Stored++
			}
		}

		log.Info("batch stored", "batch", b+1, "batches", batches, "size", end-start, "stored_so_far", result.Stored)
	}

	return result
}

// saveOne reports false without error when the id is already stored.
func (p *Pipeline) saveOne(ctx context.Context, article domain.Article) (bool, error) {
	existing, err := p.store.GetByIDs(ctx, []string{article.ID})
	if err != nil {
		return false, fmt.Errorf("check existing: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	text := textnorm.Normalize(article.PreferredSummary() + "\n" + article.Reason)
	if text == "" {
		return false, ErrEmptyText
	}

	embedding, err := p.encoder.Encode(ctx, text)
	if err != nil {
		return false, fmt.Errorf("encode text: %w", err)
	}

	err = p.store.Upsert(ctx, domain.Document{
		ID:        article.ID,
		Text:      text,
		Embedding: embedding,
		Metadata:  domain.MetadataFor(article),
	})
	if err != nil {
		return false, fmt.Errorf("upsert document: %w", err)
	}

	return true, nil
}

// DeleteOldDocuments removes documents published before now minus days.
// Undated documents are never removed. Failures are logged and reported as zero.
func (p *Pipeline) DeleteOldDocuments(ctx context.Context, days int) int {
	cutoff := p.now().AddDate(0, 0, -days).Format(dateLayout)

	metas, err := p.store.ScanMetadata(ctx)
	if err != nil {
		p.logger.Error("retention scan failed", "cutoff", cutoff, "error", err)
		return 0
	}

	var expired []string
	for _, m := range metas {
		if m.Metadata.PublishedAt != "" && m.Metadata.PublishedAt < cutoff {
			expired = append(expired, m.ID)
		}
	}
	if len(expired) == 0 {
		p.logger.Info("retention sweep found nothing to delete", "cutoff", cutoff)
		return 0
	}

	if err := p.store.Delete(ctx, expired); err != nil {
		p.logger.Error("retention delete failed", "cutoff", cutoff, "candidates", len(expired), "error", err)
		return 0
	}

	p.logger.Info("retention sweep finished", "cutoff", cutoff, "deleted", len(expired))
	return len(expired)
}

// CollectInitialData runs the startup backfill and then logs what the store holds.
func (p *Pipeline) CollectInitialData(ctx context.Context) (domain.CollectReport, domain.Diagnostics, error) {
	p.logger.Info("initial collection started", "days_back", p.initialDaysBack)

	report, err := p.CollectAndStore(ctx, nil, p.initialDaysBack)
	if err != nil {
		return report, domain.Diagnostics{}, fmt.Errorf("initial collection: %w", err)
	}

	diag, err := p.Diagnose(ctx)
	if err != nil {
		return report, diag, fmt.Errorf("diagnose store: %w", err)
	}

	return report, diag, nil
}

// Diagnose counts stored documents by published date and by theme.
func (p *Pipeline) Diagnose(ctx context.Context) (domain.Diagnostics, error) {
	metas, err := p.store.ScanMetadata(ctx)
	if err != nil {
		return domain.Diagnostics{}, fmt.Errorf("scan metadata: %w", err)
	}

	diag := domain.Diagnostics{
		Total:   len(metas),
		ByDate:  make(map[string]int),
		ByTheme: make(map[string]int),
	}
	for _, m := range metas {
		if date := domain.DatePart(m.Metadata.PublishedAt); date != "" {
			diag.ByDate[date]++
		} else {
			diag.Undated++
		}
		theme := m.Metadata.Theme
		if theme == "" {
			theme = "(none)"
		}
		diag.ByTheme[theme]++
	}

	p.logger.Info("store diagnostics", "total", diag.Total, "dates", len(diag.ByDate), "undated", diag.Undated)
	for date, n := range diag.ByDate {
		p.logger.Debug("documents by date", "date", date, "count", n)
	}
	for theme, n := range diag.ByTheme {
		p.logger.Debug("documents by theme", "theme", theme, "count", n)
	}

	return diag, nil
}
