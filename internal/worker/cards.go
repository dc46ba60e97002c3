package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ppiankov/cardpricer/internal/model"
)

// CardProcessor turns one raw card into features or a rejection
type CardProcessor interface {
	Process(card model.Card) (*model.ProcessedCard, *model.Rejection, error)
}

// CardJob processes a single card
type CardJob struct {
	Index     int
	Card      model.Card
	Processor CardProcessor
}

// Execute executes the card job
func (j *CardJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &CardResult{Index: j.Index, Error: err}
	}
	processed, rejection, err := j.Processor.Process(j.Card)
	return &CardResult{
		Index:     j.Index,
		Processed: processed,
		Rejection: rejection,
		Error:     err,
	}
}

// CardResult is the outcome of a card job
type CardResult struct {
	Index     int
	Processed *model.ProcessedCard
	Rejection *model.Rejection
	Error     error
}

// GetError returns the fatal error of the job, if any
func (r *CardResult) GetError() error {
	return r.Error
}

// ProcessCards fans cards out over a pool and returns the results in input
// order. The first fatal error cancels the remaining jobs.
func ProcessCards(ctx context.Context, cards []model.Card, p CardProcessor, workers int) ([]*CardResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := NewPool(ctx, workers)
	pool.Start()

	for i, card := range cards {
		pool.Submit(&CardJob{Index: i, Card: card, Processor: &cancelOnError{p, cancel}})
	}

	raw := pool.Wait()

	results := make([]*CardResult, 0, len(raw))
	for _, r := range raw {
		results = append(results, r.(*CardResult))
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})

	// report the earliest fatal card rather than the first to finish
	for _, r := range results {
		if r.Error != nil && !errors.Is(r.Error, context.Canceled) {
			return nil, r.Error
		}
	}
	if err := ctx.Err(); err != nil || len(results) != len(cards) {
		if err == nil {
			err = context.Canceled
		}
		return nil, fmt.Errorf("processed %d of %d cards: %w", len(results), len(cards), err)
	}

	return results, nil
}

type cancelOnError struct {
	CardProcessor
	cancel context.CancelFunc
}

func (c *cancelOnError) Process(card model.Card) (*model.ProcessedCard, *model.Rejection, error) {
	processed, rejection, err := c.CardProcessor.Process(card)
	if err != nil {
		c.cancel()
	}
	return processed, rejection, err
}
