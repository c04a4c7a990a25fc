// Package debug holds developer-facing capture helpers for the viewer.
package debug

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// Screenshots writes framebuffer readbacks as timestamped PNGs under a
// fixed output directory.
type Screenshots struct {
	dir    string
	prefix string
}

// NewScreenshots returns a writer that stores captures under dir with
// filenames "<prefix>_<timestamp>.png".
func NewScreenshots(dir, prefix string) *Screenshots {
	return &Screenshots{dir: dir, prefix: prefix}
}

// Capture writes one RGBA framebuffer readback (width*height*4 bytes)
// as a PNG and returns the written path. GL delivers rows bottom-up, so
// the rows are flipped during the copy.
func (s *Screenshots) Capture(pixels []byte, width, height int) (string, error) {
	if len(pixels) != width*height*4 {
		return "", fmt.Errorf("pixel data size mismatch: expected %d, got %d",
			width*height*4, len(pixels))
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("creating screenshot directory: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * rowSize
		dst := y * img.Stride
		copy(img.Pix[dst:dst+rowSize], pixels[src:src+rowSize])
	}

	name := fmt.Sprintf("%s_%s.png", s.prefix, time.Now().Format("20060102_150405"))
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating screenshot file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return "", fmt.Errorf("encoding screenshot: %w", err)
	}

	return path, nil
}
