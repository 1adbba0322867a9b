// Package scheduler fans page candidates out to a bounded worker pool and
// collects every result, whatever order the workers finish in.
package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/djvutailor/internal/encoder"
	"github.com/local/djvutailor/internal/metrics"
	"github.com/local/djvutailor/internal/page"
)

// Classifier decides the page kind and the encoder input paths for a
// candidate. Satisfied by *classify.Classifier.
type Classifier interface {
	Classify(cand page.Candidate) (page.Kind, error)
	Paths(cand page.Candidate, kind page.Kind) []string
}

// Options configures a scheduler run.
type Options struct {
	// Workers is the number of pages converted concurrently. Values
	// below 1 are treated as 1.
	Workers int
	// TempDir receives the per-page artifacts; must exist and be writable.
	TempDir string
	// OnProgress, when set, is called once per finished candidate
	// (succeeded, failed or skipped). Calls may come from any worker.
	OnProgress func()
}

// Scheduler runs classify+encode for each candidate as an independent unit
// of work on a fixed-size pool.
type Scheduler struct {
	classifier Classifier
	encoders   map[page.Kind]encoder.PageEncoder
	opts       Options
}

func New(classifier Classifier, encoders map[page.Kind]encoder.PageEncoder, opts Options) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Scheduler{classifier: classifier, encoders: encoders, opts: opts}
}

// Outcome is the full account of one run: one Result per dispatched job
// (failures included) plus the count of unsupported candidates that were
// skipped before dispatch.
type Outcome struct {
	Results []page.Result
	Skipped int
}

// Successes returns the results that produced an artifact.
func (o Outcome) Successes() []page.Result {
	out := make([]page.Result, 0, len(o.Results))
	for _, r := range o.Results {
		if r.Err == nil {
			out = append(out, r)
		}
	}
	return out
}

// Failures returns the results whose unit of work failed.
func (o Outcome) Failures() []page.Result {
	var out []page.Result
	for _, r := range o.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Run converts all candidates and returns once every in-flight unit of work
// has finished. A failing page never aborts or blocks the others; its error
// is recorded on its own Result and collection continues until the pool
// drains.
func (s *Scheduler) Run(ctx context.Context, candidates []page.Candidate) Outcome {
	feed := make(chan page.Candidate)
	results := make(chan page.Result)
	var skipped atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for cand := range feed {
				if res, ok := s.convert(ctx, id, cand); ok {
					results <- res
				} else {
					skipped.Add(1)
				}
				if s.opts.OnProgress != nil {
					s.opts.OnProgress()
				}
			}
		}(i)
	}

	go func() {
		for _, cand := range candidates {
			feed <- cand
		}
		close(feed)
		wg.Wait()
		close(results)
	}()

	var outcome Outcome
	for res := range results {
		outcome.Results = append(outcome.Results, res)
	}
	outcome.Skipped = int(skipped.Load())

	log.Info().
		Int("pages", len(outcome.Results)).
		Int("failed", len(outcome.Failures())).
		Int("skipped", outcome.Skipped).
		Msg("page conversion finished")
	return outcome
}

// convert is one unit of work: classify, then encode with the matching
// pipeline. Returns ok=false for candidates skipped as unsupported.
func (s *Scheduler) convert(ctx context.Context, worker int, cand page.Candidate) (page.Result, bool) {
	start := time.Now()

	kind, err := s.classifier.Classify(cand)
	if err != nil {
		metrics.IncPage(kind.String(), "error")
		return page.Result{Candidate: cand, Err: err}, true
	}
	if kind == page.Unsupported {
		metrics.IncPage(kind.String(), "skipped")
		return page.Result{}, false
	}

	job := page.Job{
		Candidate:  cand,
		Kind:       kind,
		Inputs:     s.classifier.Paths(cand, kind),
		OutputPath: filepath.Join(s.opts.TempDir, cand.Stem()+".djvu"),
	}

	log.Debug().Int("worker", worker).Str("page", cand.Name).Stringer("kind", kind).Msg("converting page")

	if err := s.encoders[kind].Encode(ctx, job); err != nil {
		log.Error().Str("page", cand.Name).Stringer("kind", kind).Err(err).Msg("page conversion failed")
		metrics.IncPage(kind.String(), "error")
		return page.Result{Candidate: cand, Err: err}, true
	}

	metrics.IncPage(kind.String(), "ok")
	metrics.ObservePage(kind.String(), time.Since(start))
	return page.Result{Candidate: cand, OutputPath: job.OutputPath}, true
}
