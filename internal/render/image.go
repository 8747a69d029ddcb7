package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/mikequentel/memeboard/internal/model"
)

// Largest canvas an image is fitted into.
const (
	MaxWidth  = 800
	MaxHeight = 600
)

// maxImageBytes bounds what Decode will read from an upload.
const maxImageBytes = 20 << 20

// MaxPixels bounds the decoded size of an image. Compressed formats can
// declare far more pixels than their byte size suggests.
const MaxPixels = 40_000_000

// Fit scales w x h down to fit within MaxWidth x MaxHeight, preserving the
// aspect ratio. Images that already fit are left alone.
func Fit(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= MaxWidth && h <= MaxHeight {
		return w, h
	}
	ratio := math.Min(float64(MaxWidth)/float64(w), float64(MaxHeight)/float64(h))
	fw := int(math.Round(float64(w) * ratio))
	fh := int(math.Round(float64(h) * ratio))
	return max(fw, 1), max(fh, 1)
}

// Decode reads a PNG, JPEG, GIF or WebP image and shrinks it to its fitted
// canvas size. The header is checked against MaxPixels before any pixel
// data is decoded. Any failure is returned as a *model.ImageLoadError
// naming source.
func Decode(r io.Reader, source string) (image.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImageBytes+1))
	if err != nil {
		return nil, &model.ImageLoadError{Source: source, Err: err}
	}
	if len(data) > maxImageBytes {
		return nil, &model.ImageLoadError{Source: source, Err: fmt.Errorf("image larger than %d bytes", maxImageBytes)}
	}
	if len(data) == 0 {
		return nil, &model.ImageLoadError{Source: source, Err: errors.New("empty image")}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &model.ImageLoadError{Source: source, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &model.ImageLoadError{Source: source, Err: errors.New("image has no pixels")}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, &model.ImageLoadError{Source: source, Err: fmt.Errorf("image is %dx%d, over %d pixels", cfg.Width, cfg.Height, MaxPixels)}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &model.ImageLoadError{Source: source, Err: err}
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, &model.ImageLoadError{Source: source, Err: errors.New("image has no pixels")}
	}
	return Shrink(img), nil
}

// Shrink scales img down to its Fit size. Images that already fit are
// returned as is.
func Shrink(img image.Image) image.Image {
	b := img.Bounds()
	w, h := Fit(b.Dx(), b.Dy())
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// DecodeFile opens and decodes an image file.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &model.ImageLoadError{Source: path, Err: err}
	}
	defer f.Close()
	return Decode(f, path)
}
