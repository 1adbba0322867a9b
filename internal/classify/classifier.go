package classify

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/local/djvutailor/internal/page"
)

// Fixed subdirectory names holding the layer pair of a separated page.
const (
	ForegroundDir = "foreground"
	BackgroundDir = "background"
)

// Classifier decides which encoding pipeline a page candidate belongs to.
type Classifier struct {
	inputDir string
}

func New(inputDir string) *Classifier {
	return &Classifier{inputDir: inputDir}
}

// Classify determines the page kind for a candidate. A foreground/background
// pair always wins over a same-named top-level image. Candidates whose pixel
// format matches no recognized kind come back as page.Unsupported with a nil
// error; only genuine I/O failures return an error.
func (c *Classifier) Classify(cand page.Candidate) (page.Kind, error) {
	fg := filepath.Join(c.inputDir, ForegroundDir, cand.Name)
	bg := filepath.Join(c.inputDir, BackgroundDir, cand.Name)
	if fileExists(fg) && fileExists(bg) {
		return page.Separated, nil
	}

	path := filepath.Join(c.inputDir, cand.Name)
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return page.Unsupported, fmt.Errorf("detect file type of %s: %w", cand.Name, err)
	}
	if !mtype.Is("image/tiff") {
		log.Debug().Str("page", cand.Name).Str("mime", mtype.String()).Msg("not a TIFF, skipping")
		return page.Unsupported, nil
	}

	meta, err := readTIFFMeta(path)
	if err != nil {
		log.Debug().Str("page", cand.Name).Err(err).Msg("unreadable TIFF header, skipping")
		return page.Unsupported, nil
	}

	switch {
	case meta.palette:
		return page.Unsupported, nil
	case meta.samplesPerPixel == 1 && meta.uniformBits(1):
		return page.Bitonal, nil
	case meta.samplesPerPixel == 1 && meta.uniformBits(8):
		return page.Photo, nil
	case meta.samplesPerPixel == 3 && meta.uniformBits(8):
		return page.Photo, nil
	default:
		log.Debug().Str("page", cand.Name).Uint16("samples", meta.samplesPerPixel).Msg("unrecognized pixel format, skipping")
		return page.Unsupported, nil
	}
}

// Paths returns the encoder input paths for a candidate of the given kind:
// the foreground then background layer for separated pages, the single
// top-level image otherwise.
func (c *Classifier) Paths(cand page.Candidate, kind page.Kind) []string {
	if kind == page.Separated {
		return []string{
			filepath.Join(c.inputDir, ForegroundDir, cand.Name),
			filepath.Join(c.inputDir, BackgroundDir, cand.Name),
		}
	}
	return []string{filepath.Join(c.inputDir, cand.Name)}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// tiffMeta is the slice of the TIFF header that classification keys on.
type tiffMeta struct {
	bitsPerSample   []uint16
	samplesPerPixel uint16
	palette         bool
}

func (m tiffMeta) uniformBits(bits uint16) bool {
	if len(m.bitsPerSample) == 0 {
		// BitsPerSample defaults to 1 when the tag is absent.
		return bits == 1
	}
	for _, b := range m.bitsPerSample {
		if b != bits {
			return false
		}
	}
	return true
}

// TIFF tag and field-type constants, per TIFF 6.0.
const (
	tagBitsPerSample   = 258
	tagPhotometric     = 262
	tagSamplesPerPixel = 277

	typeShort = 3
	typeLong  = 4

	photometricPalette = 3
)

// readTIFFMeta walks the first IFD of a TIFF file and extracts the pixel
// format tags. Decoding libraries normalize 1-bit images to an 8-bit color
// model, so the raw header is the only place the true bit depth survives.
func readTIFFMeta(path string) (tiffMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return tiffMeta{}, err
	}
	defer f.Close()

	var header [8]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return tiffMeta{}, fmt.Errorf("short TIFF header: %w", err)
	}

	var order binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		order = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		order = binary.BigEndian
	default:
		return tiffMeta{}, fmt.Errorf("bad TIFF byte-order mark %q", header[:2])
	}
	if order.Uint16(header[2:4]) != 42 {
		return tiffMeta{}, fmt.Errorf("bad TIFF magic")
	}

	ifdOffset := order.Uint32(header[4:8])
	if _, err := f.Seek(int64(ifdOffset), io.SeekStart); err != nil {
		return tiffMeta{}, err
	}

	var countBuf [2]byte
	if _, err := io.ReadFull(f, countBuf[:]); err != nil {
		return tiffMeta{}, fmt.Errorf("short IFD: %w", err)
	}
	n := int(order.Uint16(countBuf[:]))

	entries := make([]byte, n*12)
	if _, err := io.ReadFull(f, entries); err != nil {
		return tiffMeta{}, fmt.Errorf("short IFD entries: %w", err)
	}

	meta := tiffMeta{samplesPerPixel: 1}
	for i := 0; i < n; i++ {
		e := entries[i*12 : i*12+12]
		tag := order.Uint16(e[0:2])
		ftype := order.Uint16(e[2:4])
		count := order.Uint32(e[4:8])

		switch tag {
		case tagSamplesPerPixel:
			if v, ok := scalarValue(order, e, ftype); ok {
				meta.samplesPerPixel = uint16(v)
			}
		case tagPhotometric:
			if v, ok := scalarValue(order, e, ftype); ok && v == photometricPalette {
				meta.palette = true
			}
		case tagBitsPerSample:
			bits, err := shortValues(f, order, e, ftype, count)
			if err != nil {
				return tiffMeta{}, err
			}
			meta.bitsPerSample = bits
		}
	}
	return meta, nil
}

// scalarValue reads a count-1 SHORT or LONG stored inline in an IFD entry.
func scalarValue(order binary.ByteOrder, entry []byte, ftype uint16) (uint32, bool) {
	switch ftype {
	case typeShort:
		return uint32(order.Uint16(entry[8:10])), true
	case typeLong:
		return order.Uint32(entry[8:12]), true
	default:
		return 0, false
	}
}

// shortValues reads a SHORT array, following the value offset when the array
// does not fit in the entry's four value bytes.
func shortValues(f *os.File, order binary.ByteOrder, entry []byte, ftype uint16, count uint32) ([]uint16, error) {
	if ftype != typeShort || count == 0 || count > 16 {
		return nil, fmt.Errorf("unexpected BitsPerSample layout (type %d, count %d)", ftype, count)
	}
	raw := make([]byte, count*2)
	if count*2 <= 4 {
		copy(raw, entry[8:8+count*2])
	} else {
		off := order.Uint32(entry[8:12])
		if _, err := f.ReadAt(raw, int64(off)); err != nil {
			return nil, fmt.Errorf("read BitsPerSample array: %w", err)
		}
	}
	vals := make([]uint16, count)
	for i := range vals {
		vals[i] = order.Uint16(raw[i*2 : i*2+2])
	}
	return vals, nil
}
