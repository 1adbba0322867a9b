package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/djvutailor/internal/command"
	"github.com/local/djvutailor/internal/page"
)

// Photo encodes a single continuous-tone (grayscale or RGB) page with c44.
type Photo struct {
	runner  command.Runner
	params  Params
	tempDir string
}

// Encode converts the source to PNM and stages it in a job-scoped temporary
// file, because c44 reads a named file rather than stdin. The temporary file
// is removed on every exit path, encoder failure included.
func (p *Photo) Encode(ctx context.Context, job page.Job) error {
	if len(job.Inputs) != 1 {
		return fmt.Errorf("photo page %s: want one input, got %d", job.Candidate.Name, len(job.Inputs))
	}

	log.Debug().Str("page", job.Candidate.Name).Msg("encoding photo page")

	raster, _, err := p.runner.Run(ctx, nil, toolRasterConvert, job.Inputs[0])
	if err != nil {
		return err
	}

	tmpPath := filepath.Join(p.tempDir, fmt.Sprintf("djvu_temp_%s.pnm", uuid.New().String()))
	if err := os.WriteFile(tmpPath, raster, 0o644); err != nil {
		return fmt.Errorf("stage raster for %s: %w", job.Candidate.Name, err)
	}
	defer os.Remove(tmpPath)

	_, _, err = p.runner.Run(ctx, nil, toolPhotoEncode,
		"-dpi", strconv.Itoa(p.params.Resolution),
		"-slice", p.params.Quality,
		tmpPath, job.OutputPath,
	)
	return err
}
