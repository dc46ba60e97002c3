package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/cardpricer/internal/model"
)

// Pricer prices a single card database
type Pricer interface {
	PriceSource(ctx context.Context, source string) (*model.Report, error)
}

// PriceJob prices one card database, given as a file path or URL
type PriceJob struct {
	Index  int
	Source string
	Pricer Pricer
}

// Execute executes the price job
func (j *PriceJob) Execute(ctx context.Context) Result {
	report, err := j.Pricer.PriceSource(ctx, j.Source)
	return &PriceResult{
		Index:  j.Index,
		Source: j.Source,
		Report: report,
		Error:  err,
	}
}

// PriceResult is the outcome of a price job
type PriceResult struct {
	Index  int
	Source string
	Report *model.Report
	Error  error
}

// GetError returns the error from the price result
func (r *PriceResult) GetError() error {
	return r.Error
}

// BatchProcessor prices several card databases concurrently
type BatchProcessor struct {
	pricer      Pricer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(pricer Pricer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		pricer:      pricer,
		concurrency: concurrency,
	}
}

// ProcessSources prices every source; results follow the input order and
// a failing source does not stop the others
func (b *BatchProcessor) ProcessSources(ctx context.Context, sources []string) []*PriceResult {
	if len(sources) == 0 {
		return []*PriceResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, source := range sources {
		pool.Submit(&PriceJob{
			Index:  i,
			Source: source,
			Pricer: b.pricer,
		})
	}

	results := make([]*PriceResult, len(sources))
	for _, r := range pool.Wait() {
		pr := r.(*PriceResult)
		results[pr.Index] = pr
	}

	for i, r := range results {
		if r == nil {
			results[i] = &PriceResult{Index: i, Source: sources[i], Error: fmt.Errorf("not processed: %w", context.Cause(ctx))}
		}
	}
	return results
}

// ProcessFile reads sources from a file and prices them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*PriceResult, error) {
	sources, err := ReadSourcesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	return b.ProcessSources(ctx, sources), nil
}

// ReadSourcesFromFile reads one path or URL per line, skipping blanks,
// comments and duplicates
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return sources, nil
}
