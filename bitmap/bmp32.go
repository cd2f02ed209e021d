package bitmap

import (
	"encoding/binary"
	"image"
	"image/draw"
	"io"

	"github.com/pkg/errors"
)

const (
	bmpFileHeaderLen = 14
	bmpV4HeaderLen   = 108
	biBitFields      = 3
	lcsSRGB          = 0x73524742
)

// bmpV4Header is the file header followed by a BITMAPV4HEADER, laid out as written to disk.
type bmpV4Header struct {
	SigBM         [2]byte
	FileSize      uint32
	Reserved      [2]uint16
	PixOffset     uint32
	DIBHeaderSize uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	ImageSize     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ColorsUsed    uint32
	ColorsImp     uint32
	RedMask       uint32
	GreenMask     uint32
	BlueMask      uint32
	AlphaMask     uint32
	CSType        uint32
	Endpoints     [9]int32
	Gamma         [3]uint32
}

// encodeBMP32 writes img with 32 bits per pixel in BGRA order, bottom-up rows. Alpha is kept even for opaque
// images so the file has the same per pixel layout as the framebuffer.
func encodeBMP32(w io.Writer, img image.Image) error {
	src := toNRGBA(img)
	width, height := src.Rect.Dx(), src.Rect.Dy()
	imageSize := uint32(width * height * 4)
	h := bmpV4Header{
		SigBM:         [2]byte{'B', 'M'},
		FileSize:      bmpFileHeaderLen + bmpV4HeaderLen + imageSize,
		PixOffset:     bmpFileHeaderLen + bmpV4HeaderLen,
		DIBHeaderSize: bmpV4HeaderLen,
		Width:         int32(width),
		Height:        int32(height),
		Planes:        1,
		BitCount:      32,
		Compression:   biBitFields,
		ImageSize:     imageSize,
		RedMask:       0x00ff0000,
		GreenMask:     0x0000ff00,
		BlueMask:      0x000000ff,
		AlphaMask:     0xff000000,
		CSType:        lcsSRGB,
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return errors.Wrap(err, "failed to write bmp header")
	}
	row := make([]byte, width*4)
	for y := height - 1; y >= 0; y-- {
		p := src.Pix[y*src.Stride : y*src.Stride+width*4]
		for i := 0; i < len(p); i += 4 {
			row[i+0], row[i+1], row[i+2], row[i+3] = p[i+2], p[i+1], p[i+0], p[i+3]
		}
		if _, err := w.Write(row); err != nil {
			return errors.Wrap(err, "failed to write bmp pixels")
		}
	}
	return nil
}

// toNRGBA returns img itself if it already is an NRGBA image starting at the origin, else a converted copy.
func toNRGBA(img image.Image) *image.NRGBA {
	if m, ok := img.(*image.NRGBA); ok && m.Rect.Min == (image.Point{}) {
		return m
	}
	b := img.Bounds()
	m := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(m, m.Rect, img, b.Min, draw.Src)
	return m
}

// toRGBA converts img to the premultiplied RGBA layout ppm encodes.
func toRGBA(img image.Image) *image.RGBA {
	if m, ok := img.(*image.RGBA); ok {
		return m
	}
	b := img.Bounds()
	m := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(m, m.Rect, img, b.Min, draw.Src)
	return m
}
