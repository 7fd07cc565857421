package cli

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"

	"github.com/gogpu/reproject/backend/software"
)

// frameDumper writes presented frames as lossless WebP files.
type frameDumper struct {
	dir   string
	scale float64
}

func newFrameDumper(dir string, scale float64) (*frameDumper, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("dump scale must be positive, got %v", scale)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &frameDumper{dir: dir, scale: scale}, nil
}

func (d *frameDumper) path(tick int) string {
	return filepath.Join(d.dir, fmt.Sprintf("frame-%04d.webp", tick))
}

// dump encodes img for tick and returns the file path.
func (d *frameDumper) dump(tick int, img *software.Image) (string, error) {
	var out image.Image = img.ToNRGBA()
	if d.scale != 1 {
		b := out.Bounds()
		w := max(1, int(float64(b.Dx())*d.scale))
		h := max(1, int(float64(b.Dy())*d.scale))
		scaled := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), out, b, draw.Src, nil)
		out = scaled
	}

	path := d.path(tick)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := nativewebp.Encode(f, out, nil); err != nil {
		return "", fmt.Errorf("WebP encode: %w", err)
	}
	return path, f.Close()
}
