// Package encoder turns one classified page into a single-page DjVu
// artifact, driving the external DjVuLibre and netpbm tools through a
// command.Runner.
package encoder

import (
	"context"

	"github.com/local/djvutailor/internal/command"
	"github.com/local/djvutailor/internal/page"
)

// External tools, by role.
const (
	toolRasterConvert   = "tifftopnm"    // source image -> PNM stream
	toolRunLengthEncode = "pbmtodjvurle" // bitonal PNM stream -> RLE mask
	toolSeparatedEncode = "csepdjvu"     // mask+raster stream -> page
	toolBitonalEncode   = "cjb2"         // bitonal source file -> page
	toolPhotoEncode     = "c44"          // raster file -> page
)

// Params carries the encoder tuning knobs shared by all page kinds.
type Params struct {
	// Resolution of the input scans, in DPI.
	Resolution int
	// LossLevel is the cjb2 lossiness for bitonal pages.
	LossLevel int
	// Quality is the comma-separated quality/slice spec for the
	// continuous-tone layers (csepdjvu -q, c44 -slice).
	Quality string
}

// PageEncoder produces the artifact at job.OutputPath. Any failure of an
// underlying tool is returned as a *command.Error, unchanged: no retry, no
// fallback to another kind.
type PageEncoder interface {
	Encode(ctx context.Context, job page.Job) error
}

// NewSet builds one encoder per encodable page kind. tempDir must be an
// existing writable directory; the photo path stages its intermediate
// raster there.
func NewSet(r command.Runner, p Params, tempDir string) map[page.Kind]PageEncoder {
	return map[page.Kind]PageEncoder{
		page.Separated: &Separated{runner: r, params: p},
		page.Bitonal:   &Bitonal{runner: r, params: p},
		page.Photo:     &Photo{runner: r, params: p, tempDir: tempDir},
	}
}
