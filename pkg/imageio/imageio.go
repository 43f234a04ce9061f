// Package imageio writes rendered images in the formats the CLI and web server offer.
package imageio

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/image/bmp"
)

// ErrUnsupportedFormat is returned for file extensions with no encoder
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Supported formats, named by their file extension
const (
	FormatPNG     = "png"
	FormatBMP     = "bmp"
	FormatPPM     = "ppm"
	FormatPPMZstd = "ppm.zst"
	FormatPPMSnap = "ppm.sz"
)

// Formats lists every supported format
var Formats = []string{FormatPNG, FormatBMP, FormatPPM, FormatPPMZstd, FormatPPMSnap}

// FormatFromPath picks the format from the file extension, including the
// compressed ".ppm.zst" and ".ppm.sz" forms
func FormatFromPath(path string) (string, error) {
	name := strings.ToLower(filepath.Base(path))
	// Longest suffix first so "ppm.zst" wins over a bare "zst"
	for _, format := range []string{FormatPPMZstd, FormatPPMSnap, FormatPNG, FormatBMP, FormatPPM} {
		if strings.HasSuffix(name, "."+format) {
			return format, nil
		}
	}
	return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, filepath.Ext(path), strings.Join(Formats, ", "))
}

// Save writes img to path in the format implied by its extension, creating parent directories
func Save(path string, img image.Image) (err error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	return Encode(file, format, img)
}

// Encode writes img to w in the given format
func Encode(w io.Writer, format string, img image.Image) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatPPM:
		return writePPM(w, img)
	case FormatPPMZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		if err := writePPM(enc, img); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	case FormatPPMSnap:
		stream := snappy.NewBufferedWriter(w)
		if err := writePPM(stream, img); err != nil {
			stream.Close()
			return err
		}
		return stream.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// writePPM writes the plain-text P3 format: a header, then one "r g b" line per pixel in raster order
func writePPM(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	out := bufio.NewWriter(w)

	fmt.Fprintf(out, "P3\n%d %d\n255\n", bounds.Dx(), bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			fmt.Fprintf(out, "%d %d %d\n", r>>8, g>>8, b>>8)
		}
	}

	return out.Flush()
}
