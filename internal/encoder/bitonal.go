package encoder

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/local/djvutailor/internal/command"
	"github.com/local/djvutailor/internal/page"
)

// Bitonal encodes a single 1-bit page with cjb2.
type Bitonal struct {
	runner command.Runner
	params Params
}

func (b *Bitonal) Encode(ctx context.Context, job page.Job) error {
	if len(job.Inputs) != 1 {
		return fmt.Errorf("bitonal page %s: want one input, got %d", job.Candidate.Name, len(job.Inputs))
	}

	log.Debug().Str("page", job.Candidate.Name).Msg("encoding bitonal page")

	_, _, err := b.runner.Run(ctx, nil, toolBitonalEncode,
		"-dpi", strconv.Itoa(b.params.Resolution),
		"-losslevel", strconv.Itoa(b.params.LossLevel),
		job.Inputs[0], job.OutputPath,
	)
	return err
}
