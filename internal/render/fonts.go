package render

import (
	"fmt"
	"os"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

// Fonts hands out faces of one font at arbitrary pixel sizes. Faces are
// cached per size. Safe for concurrent use.
type Fonts struct {
	source *text.FontSource

	mu    sync.Mutex
	faces map[float64]text.Face
}

// LoadFonts loads a TTF/OTF file, or the bundled Go Regular font when path
// is empty.
func LoadFonts(path string) (*Fonts, error) {
	data := goregular.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		data = b
	}
	src, err := text.NewFontSource(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Fonts{source: src, faces: make(map[float64]text.Face)}, nil
}

// Face returns the face for size pixels.
func (f *Fonts) Face(size float64) text.Face {
	f.mu.Lock()
	defer f.mu.Unlock()
	face, ok := f.faces[size]
	if !ok {
		face = f.source.Face(size)
		f.faces[size] = face
	}
	return face
}

// MeasureText implements editor.Measurer.
func (f *Fonts) MeasureText(s string, size float64) float64 {
	if s == "" {
		return 0
	}
	w, _ := text.Measure(s, f.Face(size))
	return w
}

func (f *Fonts) Name() string { return f.source.Name() }

func (f *Fonts) Close() error { return f.source.Close() }
