package graph

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

// ErrAlreadyProcessed is returned by Processor.Process when title turns out
// to be another name of a page the crawl already stored, typically after a
// redirect. The returned id is still the canonical one.
var ErrAlreadyProcessed = errors.New("page already processed")

// Processor handles a single page of the crawl.
type Processor interface {
	// Canonical maps a queued title onto the identity the crawl tracks it by.
	Canonical(title string) string
	// Process fetches and extracts title. It returns the canonical id of the
	// page and the link targets discovered on it.
	Process(ctx context.Context, title string) (string, []string, error)
}

// CrawlResult summarizes a scheduler run.
type CrawlResult struct {
	Processed       []string `json:"processed"`
	Failed          []string `json:"failed,omitempty"`
	Remaining       int      `json:"remaining"`
	BudgetExhausted bool     `json:"budget_exhausted"`
	Cancelled       bool     `json:"cancelled,omitempty"`
}

// Scheduler walks the wiki breadth first from the seed roster. Every popped
// page that was not processed before counts against the budget, whether or
// not it could be fetched. A title that only redirects onto a processed page
// gives its slot back.
type Scheduler struct {
	processor Processor
	seeds     []string
	budget    int
}

type NewSchedulerParams struct {
	Processor Processor
	Seeds     []string
	// Budget is the maximum number of pages processed. Zero or less means
	// no pages are processed at all.
	Budget int
}

func NewScheduler(params NewSchedulerParams) *Scheduler {
	return &Scheduler{
		processor: params.Processor,
		seeds:     params.Seeds,
		budget:    params.Budget,
	}
}

// Run processes the queue until it is empty, the budget is spent or ctx is
// cancelled. Cancellation is checked between pages.
func (s *Scheduler) Run(ctx context.Context) CrawlResult {
	var result CrawlResult

	queue := make([]string, 0, len(s.seeds))
	queued := make(map[string]struct{})
	processed := make(map[string]struct{})
	enqueue := func(title string) {
		key := wiki.NormalizeTitle(title)
		if key == "" {
			return
		}
		if _, ok := queued[key]; ok {
			return
		}
		if _, ok := processed[s.processor.Canonical(key)]; ok {
			return
		}
		queued[key] = struct{}{}
		queue = append(queue, key)
	}
	for _, seed := range s.seeds {
		enqueue(seed)
	}

	count := 0
	for len(queue) > 0 && count < s.budget {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			logger.Warn("[Crawl] Crawl cancelled", "processed", count, "err", err)
			break
		}

		title := queue[0]
		queue = queue[1:]
		canonical := s.processor.Canonical(title)
		if _, ok := processed[canonical]; ok {
			continue
		}
		count++

		logger.Info("[Crawl] Processing page", "title", title, "count", count, "budget", s.budget)
		id, targets, err := s.processor.Process(ctx, title)
		if errors.Is(err, ErrAlreadyProcessed) {
			count--
			processed[canonical] = struct{}{}
			if id != "" {
				processed[id] = struct{}{}
			}
			logger.Debug("[Crawl] Page already processed", "title", title, "id", id)
			continue
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				result.Cancelled = true
				break
			}
			logger.Warn("[Crawl] Failed to process page", "title", title, "err", err)
			result.Failed = append(result.Failed, title)
			processed[canonical] = struct{}{}
			continue
		}
		if id == "" {
			id = canonical
		}
		processed[canonical] = struct{}{}
		processed[id] = struct{}{}
		result.Processed = append(result.Processed, id)

		for _, target := range targets {
			enqueue(target)
		}
	}

	result.Remaining = len(queue)
	result.BudgetExhausted = count >= s.budget && len(queue) > 0
	if result.BudgetExhausted {
		logger.Info("[Crawl] Page budget exhausted", "budget", s.budget, "remaining", result.Remaining)
	}
	return result
}
