package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"golang.org/x/image/tiff"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.SetRGBA(1, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	img, err := Decode(encodePNG(t, src), "img/level_0/tiles/tile_000_000.png")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds() != src.Bounds() {
		t.Errorf("bounds %v, want %v", img.Bounds(), src.Bounds())
	}
}

func TestDecodeTIFF(t *testing.T) {
	src := image.NewGray16(image.Rect(0, 0, 3, 3))
	src.SetGray16(2, 2, color.Gray16{Y: 0xffff})

	var buf bytes.Buffer
	if err := tiff.Encode(&buf, src, nil); err != nil {
		t.Fatalf("encode tiff: %v", err)
	}

	img, err := Decode(buf.Bytes(), "dem/level_0/tiles/tile_000_000.tif")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	r, _, _, _ := img.At(2, 2).RGBA()
	if r != 0xffff {
		t.Errorf("sample at (2,2) = %#x, want 0xffff", r)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte("not an image"), "broken.png"); err == nil {
		t.Error("expected error decoding garbage data")
	}
}

func TestHeightFieldNormalization(t *testing.T) {
	src := image.NewGray16(image.Rect(0, 0, 2, 2))
	src.SetGray16(0, 0, color.Gray16{Y: 0})
	src.SetGray16(1, 0, color.Gray16{Y: 0xffff})
	src.SetGray16(0, 1, color.Gray16{Y: 0x8000})
	src.SetGray16(1, 1, color.Gray16{Y: 0x4000})

	hf := NewHeightField(src)
	if hf.Width != 2 || hf.Height != 2 {
		t.Fatalf("field %dx%d, want 2x2", hf.Width, hf.Height)
	}

	tests := []struct {
		x, y int
		want float32
	}{
		{0, 0, 0},
		{1, 0, 1},
		{0, 1, float32(0x8000) / 65535.0},
		{1, 1, float32(0x4000) / 65535.0},
	}
	for _, tt := range tests {
		if got := hf.At(tt.x, tt.y); math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("At(%d,%d) = %f, want %f", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestHeightFieldSampleBilinear(t *testing.T) {
	src := image.NewGray16(image.Rect(0, 0, 2, 1))
	src.SetGray16(0, 0, color.Gray16{Y: 0})
	src.SetGray16(1, 0, color.Gray16{Y: 0xffff})

	hf := NewHeightField(src)
	if got := hf.Sample(0.5, 0); math.Abs(float64(got)-0.5) > 1e-3 {
		t.Errorf("Sample(0.5, 0) = %f, want 0.5", got)
	}
	if got := hf.Sample(0, 0); got != 0 {
		t.Errorf("Sample(0, 0) = %f, want 0", got)
	}
	if got := hf.Sample(1, 0); got != 1 {
		t.Errorf("Sample(1, 0) = %f, want 1", got)
	}
}

func TestHeightFieldAtClamps(t *testing.T) {
	src := image.NewGray16(image.Rect(0, 0, 2, 2))
	src.SetGray16(1, 1, color.Gray16{Y: 0xffff})

	hf := NewHeightField(src)
	if got := hf.At(5, 5); got != 1 {
		t.Errorf("At(5,5) = %f, want clamped corner sample 1", got)
	}
	if got := hf.At(-3, 0); got != 0 {
		t.Errorf("At(-3,0) = %f, want 0", got)
	}
}

func TestImageToRGBA(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.SetGray(0, 0, color.Gray{Y: 128})

	rgba := ImageToRGBA(gray)
	c := rgba.RGBAAt(0, 0)
	if c.R != 128 || c.G != 128 || c.B != 128 || c.A != 255 {
		t.Errorf("converted pixel %+v, want gray 128 opaque", c)
	}

	// Already-RGBA images pass through without copying.
	src := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if ImageToRGBA(src) != src {
		t.Error("expected RGBA input to be returned as-is")
	}
}
