package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/cardpricer/internal/cache"
	"github.com/ppiankov/cardpricer/internal/extract"
	"github.com/ppiankov/cardpricer/internal/model"
	"github.com/ppiankov/cardpricer/internal/price"
	"github.com/ppiankov/cardpricer/internal/table"
	"github.com/ppiankov/cardpricer/internal/worker"
)

// ErrCardNotFound is returned by Explain when no card has the given name
var ErrCardNotFound = errors.New("card not found")

// Pipeline orchestrates load, extraction, table assembly and pricing
type Pipeline struct {
	config       *model.Config
	loader       *Loader
	fetcher      *Fetcher
	processor    *extract.Processor
	renderer     *Renderer
	coefficients *price.Coefficients
	logger       *zap.Logger
	now          func() time.Time
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	fetcher := NewFetcher(cfg.HTTP, logger)
	if c := cache.New(cfg.Cache); c != nil {
		fetcher.WithCache(c, cfg.Cache.DiskTTL)
	}

	return &Pipeline{
		config:    cfg,
		loader:    NewLoader(cfg.Data),
		fetcher:   fetcher,
		processor: extract.NewProcessor(cfg.Extraction, extract.DefaultRules()),
		renderer:  NewRenderer(cfg.Output.Top),
		logger:    logger,
		now:       time.Now,
	}
}

// WithCoefficients prices with c instead of fitting a new model
func (p *Pipeline) WithCoefficients(c *price.Coefficients) *Pipeline {
	p.coefficients = c
	return p
}

// Fetcher returns the downloader used for URL sources
func (p *Pipeline) Fetcher() *Fetcher {
	return p.fetcher
}

// RunResult contains everything one pricing run produced
type RunResult struct {
	Report       *model.Report
	Table        *table.Table
	Coefficients *price.Coefficients
}

// Source resolves an empty source to the configured path or URL
func (p *Pipeline) Source(source string) string {
	if source != "" {
		return source
	}
	if p.config.Data.Path != "" {
		return p.config.Data.Path
	}
	return p.config.Data.URL
}

// IsURL reports whether source is downloaded rather than read from disk
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// LoadCards reads and filters the card database at source
func (p *Pipeline) LoadCards(ctx context.Context, source string) ([]model.Card, error) {
	if !IsURL(source) {
		return p.loader.LoadFile(source)
	}

	result, err := p.fetcher.FetchWithRetry(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	p.logger.Info("card database downloaded",
		zap.String("url", result.FinalURL),
		zap.Int("bytes", len(result.Body)),
		zap.Bool("cached", result.FromCache))

	return p.loader.Parse(result.Body)
}

// ProcessCards runs every card through the mechanics pipeline. Accepted
// cards and rejections keep the input order whatever the worker count.
func (p *Pipeline) ProcessCards(ctx context.Context, cards []model.Card) ([]model.ProcessedCard, []model.Rejection, model.RejectionStats, error) {
	workers := p.config.Concurrency.Workers
	if workers <= 1 {
		return p.processor.ProcessAll(cards)
	}

	stats := model.NewRejectionStats()
	stats.Total = len(cards)

	results, err := worker.ProcessCards(ctx, cards, p.processor, workers)
	if err != nil {
		return nil, nil, stats, err
	}

	var accepted []model.ProcessedCard
	var rejected []model.Rejection
	for _, r := range results {
		if r.Rejection != nil {
			stats.Record(*r.Rejection)
			rejected = append(rejected, *r.Rejection)
			continue
		}
		accepted = append(accepted, *r.Processed)
	}
	stats.Accepted = len(accepted)

	return accepted, rejected, stats, nil
}

// Run prices the card database at source
func (p *Pipeline) Run(ctx context.Context, source string) (*RunResult, error) {
	source = p.Source(source)
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID), zap.String("source", source))

	// 1. Load
	cards, err := p.LoadCards(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	logger.Info("cards loaded", zap.Int("cards", len(cards)))

	// 2. Extract mechanics
	processed, rejections, stats, err := p.ProcessCards(ctx, cards)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	for _, r := range rejections {
		logger.Debug("card rejected",
			zap.String("card", r.Name),
			zap.String("reason", string(r.Reason)),
			zap.String("detail", r.Detail))
	}
	logger.Info("mechanics extracted",
		zap.Int("accepted", stats.Accepted),
		zap.Int("rejected", stats.Rejected()))

	// 3. Assemble the feature table
	columns := p.config.Pricing.Columns
	if p.coefficients != nil {
		columns = p.coefficients.Columns
	}
	tbl := table.Build(processed, columns)

	// 4. Fit or apply, then rank
	result, err := price.Price(tbl, p.coefficients)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	logger.Info("cards priced",
		zap.Int("rows", tbl.Len()),
		zap.Int("columns", tbl.Width()),
		zap.Bool("refitted", result.Refitted))

	report := &model.Report{
		RunID:        runID,
		Source:       source,
		GeneratedAt:  p.now().UTC(),
		Strict:       p.config.Extraction.Strict,
		ChargeMode:   p.config.Extraction.ChargeMode,
		PriceColumn:  p.config.Pricing.PriceColumn,
		Refitted:     result.Refitted,
		Stats:        stats,
		Rejections:   rejections,
		Coefficients: result.Coefficients.Entries(),
		Cards:        price.Rank(tbl, result),
		Principles:   model.DefaultPrinciples(),
	}

	return &RunResult{
		Report:       report,
		Table:        tbl,
		Coefficients: result.Coefficients,
	}, nil
}

// PriceSource runs the pipeline and returns only the report
func (p *Pipeline) PriceSource(ctx context.Context, source string) (*model.Report, error) {
	result, err := p.Run(ctx, source)
	if err != nil {
		return nil, err
	}
	return result.Report, nil
}

// Explain traces every card named name through the mechanics pipeline.
// Names match case-insensitively.
func (p *Pipeline) Explain(ctx context.Context, source string, name string) ([]*extract.Explanation, error) {
	cards, err := p.LoadCards(ctx, p.Source(source))
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	var out []*extract.Explanation
	for _, card := range cards {
		if !strings.EqualFold(card.Name, name) {
			continue
		}
		exp, err := p.processor.Explain(card)
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrCardNotFound, name)
	}
	return out, nil
}

// RenderReport writes the configured report files and a summary to w
func (p *Pipeline) RenderReport(report *model.Report, jsonPath string, mdPath string, w io.Writer) error {
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		p.logger.Info("wrote JSON report", zap.String("path", jsonPath))
	}

	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		p.logger.Info("wrote Markdown report", zap.String("path", mdPath))
	}

	return p.renderer.RenderSummary(w, report)
}
