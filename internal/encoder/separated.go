package encoder

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/local/djvutailor/internal/command"
	"github.com/local/djvutailor/internal/page"
)

// Separated encodes a foreground/background layer pair with csepdjvu.
type Separated struct {
	runner command.Runner
	params Params
}

// Encode converts the background layer to a PNM raster and the foreground
// layer to a run-length mask, then feeds csepdjvu a single stdin stream of
// mask bytes followed by raster bytes. That byte order is the csepdjvu
// separated-page protocol, not a stylistic choice.
func (s *Separated) Encode(ctx context.Context, job page.Job) error {
	if len(job.Inputs) != 2 {
		return fmt.Errorf("separated page %s: want foreground and background inputs, got %d", job.Candidate.Name, len(job.Inputs))
	}
	foreground, background := job.Inputs[0], job.Inputs[1]

	log.Debug().Str("page", job.Candidate.Name).Msg("encoding separated page")

	raster, _, err := s.runner.Run(ctx, nil, toolRasterConvert, background)
	if err != nil {
		return err
	}

	fgPNM, _, err := s.runner.Run(ctx, nil, toolRasterConvert, foreground)
	if err != nil {
		return err
	}
	mask, _, err := s.runner.Run(ctx, fgPNM, toolRunLengthEncode)
	if err != nil {
		return err
	}

	combined := make([]byte, 0, len(mask)+len(raster))
	combined = append(combined, mask...)
	combined = append(combined, raster...)

	_, _, err = s.runner.Run(ctx, combined, toolSeparatedEncode,
		"-d", strconv.Itoa(s.params.Resolution),
		"-q", s.params.Quality,
		"-", job.OutputPath,
	)
	return err
}
