// Package assembler merges finished page artifacts back into input order
// and produces the combined multi-page document.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/local/djvutailor/internal/command"
	"github.com/local/djvutailor/internal/page"
)

// Tool that bundles single-page documents into one multi-page file.
const toolCombine = "djvm"

// ErrNoPages means a run finished with zero successful pages. It is a
// user-facing terminal condition, not a crash; no output file is written or
// removed when it is returned.
var ErrNoPages = errors.New("no pages produced")

// Assembler drives the external multi-page combiner.
type Assembler struct {
	runner command.Runner
}

func New(runner command.Runner) *Assembler {
	return &Assembler{runner: runner}
}

// Assemble sorts the successful results by their original discovery index
// and combines their artifacts into outputFile with a single djvm call.
// Completion order never influences page order here. A pre-existing output
// file is replaced, but only once at least one page is about to be written.
func (a *Assembler) Assemble(ctx context.Context, outputFile string, results []page.Result) error {
	pages := make([]page.Result, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			pages = append(pages, r)
		}
	}
	if len(pages) == 0 {
		return ErrNoPages
	}

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Candidate.Index < pages[j].Candidate.Index
	})

	if _, err := os.Stat(outputFile); err == nil {
		log.Debug().Str("output", outputFile).Msg("removing old output file")
		if err := os.Remove(outputFile); err != nil {
			return fmt.Errorf("remove old output file: %w", err)
		}
	}

	args := make([]string, 0, len(pages)+2)
	args = append(args, "-c", outputFile)
	for _, p := range pages {
		args = append(args, p.OutputPath)
	}

	if _, _, err := a.runner.Run(ctx, nil, toolCombine, args...); err != nil {
		return err
	}

	log.Info().Str("output", outputFile).Int("pages", len(pages)).Msg("document assembled")
	return nil
}
