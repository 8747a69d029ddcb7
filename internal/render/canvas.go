package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/gogpu/gg"

	"github.com/mikequentel/memeboard/internal/model"
)

// outlineSteps is how many offset copies make up a text outline.
const outlineSteps = 16

// Canvas is a Surface backed by a gg software context.
type Canvas struct {
	dc    *gg.Context
	fonts *Fonts
}

var _ Surface = (*Canvas)(nil)

// NewCanvas creates a w x h canvas drawing text with fonts.
func NewCanvas(w, h int, fonts *Fonts) (*Canvas, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("canvas size %dx%d", w, h)
	}
	return &Canvas{dc: gg.NewContext(w, h), fonts: fonts}, nil
}

func (c *Canvas) Width() int  { return c.dc.Width() }
func (c *Canvas) Height() int { return c.dc.Height() }

func (c *Canvas) Clear() { c.dc.Clear() }

func (c *Canvas) DrawImage(img image.Image) {
	c.dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
		DstWidth:      float64(c.dc.Width()),
		DstHeight:     float64(c.dc.Height()),
		Interpolation: gg.InterpBilinear,
		Opacity:       1,
		BlendMode:     gg.BlendNormal,
	})
}

// DrawText outlines s by stamping it around a circle of half the stroke
// width in the stroke color, then draws the fill on top.
func (c *Canvas) DrawText(s string, x, y, size float64, fill, stroke string, strokeWidth float64) {
	c.dc.SetFont(c.fonts.Face(size))
	r := strokeWidth / 2
	if r > 0 {
		c.dc.SetHexColor(stroke)
		for i := 0; i < outlineSteps; i++ {
			a := 2 * math.Pi * float64(i) / outlineSteps
			c.dc.DrawStringAnchored(s, x+r*math.Cos(a), y+r*math.Sin(a), 0.5, 0.5)
		}
	}
	c.dc.SetHexColor(fill)
	c.dc.DrawStringAnchored(s, x, y, 0.5, 0.5)
}

func (c *Canvas) MeasureText(s string, size float64) float64 {
	return c.fonts.MeasureText(s, size)
}

func (c *Canvas) Image() image.Image { return c.dc.Image() }

// EncodePNG writes the canvas as PNG. Failures are *model.CanvasExportError.
func (c *Canvas) EncodePNG(w io.Writer) error {
	if err := c.dc.EncodePNG(w); err != nil {
		return &model.CanvasExportError{Err: err}
	}
	return nil
}

// PNG returns the encoded canvas.
func (c *Canvas) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Canvas) Close() error { return c.dc.Close() }

// DataURI embeds PNG bytes as a self-contained URL.
func DataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

// RenderPNG draws sc on a fresh w x h canvas and returns it PNG encoded.
// Failures are *model.CanvasExportError.
func RenderPNG(sc Scene, w, h int, fonts *Fonts) ([]byte, error) {
	c, err := NewCanvas(w, h, fonts)
	if err != nil {
		return nil, &model.CanvasExportError{Err: err}
	}
	defer c.Close()
	Draw(c, sc)
	return c.PNG()
}
