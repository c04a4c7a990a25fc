// Package texture provides image decoding and heightmap sampling for baked
// terrain tiles.
package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/tiff"

	// Color tiles from the preprocessing pipeline are PNG or JPEG.
	_ "image/jpeg"
	_ "image/png"
)

// Decode decodes tile image data. GeoTIFF exports go through the TIFF
// decoder; everything else through the registered stdlib decoders.
func Decode(data []byte, path string) (image.Image, error) {
	lower := strings.ToLower(path)

	var img image.Image
	var err error
	if strings.HasSuffix(lower, ".tif") || strings.HasSuffix(lower, ".tiff") {
		img, err = tiff.Decode(bytes.NewReader(data))
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// ImageToRGBA converts any image.Image to *image.RGBA for GPU upload.
func ImageToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r16, g16, b16, a16 := img.At(x, y).RGBA()
			rgba.SetRGBA(x, y, color.RGBA{
				R: uint8(r16 >> 8),
				G: uint8(g16 >> 8),
				B: uint8(b16 >> 8),
				A: uint8(a16 >> 8),
			})
		}
	}
	return rgba
}

// HeightField holds normalized elevation samples extracted from a heightmap
// tile. The bake pipeline rescales elevation to the full 16-bit range, so a
// sample of 0 is the global minimum elevation and 1 the global maximum.
type HeightField struct {
	Width   int
	Height  int
	Samples []float32 // row-major, len = Width*Height, each in [0,1]
}

// NewHeightField extracts normalized samples from a decoded heightmap image.
// Gray16 is the native format; other models fall back to 16-bit luminance.
func NewHeightField(img image.Image) *HeightField {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	hf := &HeightField{
		Width:   w,
		Height:  h,
		Samples: make([]float32, w*h),
	}

	if g16, ok := img.(*image.Gray16); ok {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := g16.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
				v := uint16(g16.Pix[i])<<8 | uint16(g16.Pix[i+1])
				hf.Samples[y*w+x] = float32(v) / 65535.0
			}
		}
		return hf
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// Luminance over 16-bit channels.
			lum := (299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000
			hf.Samples[y*w+x] = float32(lum) / 65535.0
		}
	}
	return hf
}

// At returns the sample at integer coordinates, clamped to the field.
func (h *HeightField) At(x, y int) float32 {
	if h.Width == 0 || h.Height == 0 {
		return 0
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= h.Width {
		x = h.Width - 1
	}
	if y >= h.Height {
		y = h.Height - 1
	}
	return h.Samples[y*h.Width+x]
}

// Sample returns the bilinearly interpolated sample at normalized
// coordinates u, v in [0,1].
func (h *HeightField) Sample(u, v float32) float32 {
	if h.Width == 0 || h.Height == 0 {
		return 0
	}

	fx := u * float32(h.Width-1)
	fy := v * float32(h.Height-1)
	x0, y0 := int(fx), int(fy)
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	s00 := h.At(x0, y0)
	s10 := h.At(x0+1, y0)
	s01 := h.At(x0, y0+1)
	s11 := h.At(x0+1, y0+1)

	south := s00*(1-tx) + s10*tx
	north := s01*(1-tx) + s11*tx
	return south*(1-ty) + north*ty
}
