// Package bitmap turns read back frames into image files and compares them against reference images.
package bitmap

import (
	"bufio"
	"image"
	"image/color"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

const (
	FormatBMP = "bmp"
	FormatPPM = "ppm"
)

// FromPixels wraps tightly packed 8 bit RGBA pixels without copying them.
func FromPixels(width, height int, pixels []byte) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid image size %dx%d", width, height)
	}
	if len(pixels) != width*height*4 {
		return nil, errors.Errorf("%d bytes of pixel data for a %dx%d image, want %d", len(pixels), width, height, width*height*4)
	}
	return &image.NRGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}

// Encode writes img in the given format. Bitmaps always carry 32 bits per pixel, ppm drops alpha.
func Encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case FormatBMP:
		return errors.Wrap(encodeBMP32(w, img), "bmp encoding")
	case FormatPPM:
		return errors.Wrap(ppm.Encode(w, toRGBA(img)), "ppm encoding")
	default:
		return errors.Errorf("unknown image format %q, expected %q or %q", format, FormatBMP, FormatPPM)
	}
}

// WriteFile creates or overwrites path with img.
func WriteFile(path string, img image.Image, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	bw := bufio.NewWriter(f)
	if err := Encode(bw, img, format); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to write output file")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "failed to close output file")
	}
	log.Printf("Wrote %dx%d %s image to %s", img.Bounds().Dx(), img.Bounds().Dy(), format, path)
	return nil
}

// Decode reads an image in the given format.
func Decode(r io.Reader, format string) (image.Image, error) {
	switch format {
	case FormatBMP:
		img, err := bmp.Decode(r)
		return img, errors.Wrap(err, "bmp decoding")
	case FormatPPM:
		img, err := ppm.Decode(r)
		return img, errors.Wrap(err, "ppm decoding")
	default:
		return nil, errors.Errorf("unknown image format %q", format)
	}
}

// ReadFile decodes the image at path, the format follows from the file extension.
func ReadFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image")
	}
	defer f.Close()
	return Decode(bufio.NewReader(f), FormatOf(path))
}

// FormatOf maps a file extension to an image format, defaulting to bmp.
func FormatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".ppm") {
		return FormatPPM
	}
	return FormatBMP
}

// Compare counts the pixels of img where any non-premultiplied channel differs from ref by more than tolerance.
func Compare(ref image.Image, img image.Image, tolerance uint8) (int, error) {
	rb, ib := ref.Bounds(), img.Bounds()
	if rb.Dx() != ib.Dx() || rb.Dy() != ib.Dy() {
		return 0, errors.Errorf("reference is %dx%d, image is %dx%d", rb.Dx(), rb.Dy(), ib.Dx(), ib.Dy())
	}
	mismatches := 0
	for y := 0; y < rb.Dy(); y++ {
		for x := 0; x < rb.Dx(); x++ {
			a := color.NRGBAModel.Convert(ref.At(rb.Min.X+x, rb.Min.Y+y)).(color.NRGBA)
			b := color.NRGBAModel.Convert(img.At(ib.Min.X+x, ib.Min.Y+y)).(color.NRGBA)
			if diff(a.R, b.R) > tolerance || diff(a.G, b.G) > tolerance ||
				diff(a.B, b.B) > tolerance || diff(a.A, b.A) > tolerance {
				mismatches++
			}
		}
	}
	return mismatches, nil
}

func diff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
