package page

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind identifies which encoding pipeline a page goes through.
type Kind int

const (
	// Unsupported marks a candidate that matches no recognized pixel
	// format; it is skipped, never encoded.
	Unsupported Kind = iota
	// Separated pages have a foreground/background image pair.
	Separated
	// Bitonal pages are single 1-bit images.
	Bitonal
	// Photo pages are single 8-bit grayscale or 24-bit RGB images.
	Photo
)

func (k Kind) String() string {
	switch k {
	case Separated:
		return "separated"
	case Bitonal:
		return "bitonal"
	case Photo:
		return "photo"
	default:
		return "unsupported"
	}
}

// Candidate is one raster file discovered in the input directory. Index is
// the position in lexicographic discovery order and is the sole ordering key
// for final assembly.
type Candidate struct {
	Name  string
	Index int
}

// Stem returns the candidate name without its extension.
func (c Candidate) Stem() string {
	return strings.TrimSuffix(c.Name, filepath.Ext(c.Name))
}

// Job is one page conversion unit. It is owned by exactly one worker;
// OutputPath is derived from the page stem so concurrent jobs never collide.
type Job struct {
	Candidate  Candidate
	Kind       Kind
	Inputs     []string
	OutputPath string
}

// Result is produced exactly once per dispatched Job.
type Result struct {
	Candidate  Candidate
	OutputPath string
	Err        error
}

// Discover lists the raster page candidates of inputDir in lexicographic
// name order. Subdirectories (including foreground/ and background/) and
// files without a recognized raster extension are excluded here, before
// classification ever sees them.
func Discover(inputDir string) ([]Candidate, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !HasRasterExt(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	candidates := make([]Candidate, len(names))
	for i, n := range names {
		candidates[i] = Candidate{Name: n, Index: i}
	}
	return candidates, nil
}

// HasRasterExt reports whether name carries a supported raster extension.
func HasRasterExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".tif" || ext == ".tiff"
}
