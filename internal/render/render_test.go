package render

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/mikequentel/memeboard/internal/editor"
	"github.com/mikequentel/memeboard/internal/model"
)

// recorder is a Surface that logs calls instead of drawing.
type recorder struct {
	calls []string
}

func (r *recorder) Clear()                { r.calls = append(r.calls, "clear") }
func (r *recorder) DrawImage(image.Image) { r.calls = append(r.calls, "image") }
func (r *recorder) DrawText(s string, x, y, size float64, fill, stroke string, w float64) {
	r.calls = append(r.calls, fmt.Sprintf("text %s @%v,%v size=%v fill=%s stroke=%s/%v", s, x, y, size, fill, stroke, w))
}
func (r *recorder) MeasureText(s string, size float64) float64 { return float64(len(s)) * size / 2 }

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDraw_Order(t *testing.T) {
	lines := []editor.TextLine{
		{Text: "top", X: 100, Y: 50, Size: 40, Color: "#ffffff"},
		{Text: "", X: 100, Y: 98, Size: 40, Color: "#ffffff"},
		{Text: "bottom", X: 100, Y: 146, Size: 60, Color: "#ff0000"},
	}
	r := &recorder{}
	Draw(r, Scene{Background: solid(2, 2, color.White), Lines: lines, Selected: 2})

	want := []string{
		"clear",
		"image",
		"text top @100,50 size=40 fill=#ffffff stroke=#000000/2",
		"text bottom @100,146 size=60 fill=#ff0000 stroke=#00ff00/4",
	}
	if strings.Join(r.calls, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls:\n%s\nwant:\n%s", strings.Join(r.calls, "\n"), strings.Join(want, "\n"))
	}
}

func TestDraw_NoBackground(t *testing.T) {
	r := &recorder{}
	Draw(r, Scene{Lines: []editor.TextLine{{Text: "x", Size: 40}}})
	if len(r.calls) != 0 {
		t.Errorf("drew without background: %v", r.calls)
	}
}

func TestSceneOf_HighlightOnlyWhenAsked(t *testing.T) {
	e := editor.New()
	e.SetCanvas(800, 600)
	e.SetInput("a\nb")
	e.Select(1)
	if sc := SceneOf(e, nil, true); sc.Selected != 1 {
		t.Errorf("highlight scene selected = %d", sc.Selected)
	}
	if sc := SceneOf(e, nil, false); sc.Selected != editor.None {
		t.Errorf("export scene selected = %d", sc.Selected)
	}
}

func TestStrokeWidth(t *testing.T) {
	tests := []struct {
		size     float64
		selected bool
		want     float64
	}{
		{20, false, 2},
		{100, false, 5},
		{30, true, 3},
		{90, true, 6},
	}
	for _, tt := range tests {
		if got := StrokeWidth(tt.size, tt.selected); got != tt.want {
			t.Errorf("StrokeWidth(%v, %v) = %v, want %v", tt.size, tt.selected, got, tt.want)
		}
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h   int
		ww, wh int
	}{
		{400, 300, 400, 300},
		{800, 600, 800, 600},
		{1600, 1200, 800, 600},
		{1000, 500, 800, 400},
		{600, 1200, 300, 600},
		{0, 10, 0, 0},
	}
	for _, tt := range tests {
		gw, gh := Fit(tt.w, tt.h)
		if gw != tt.ww || gh != tt.wh {
			t.Errorf("Fit(%d,%d) = %d,%d want %d,%d", tt.w, tt.h, gw, gh, tt.ww, tt.wh)
		}
	}
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(3, 2, color.Black)); err != nil {
		t.Fatal(err)
	}
	img, err := Decode(&buf, "ok.png")
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Errorf("bounds = %v", b)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(data), name)
			var le *model.ImageLoadError
			if !errors.As(err, &le) {
				t.Fatalf("err = %v, want ImageLoadError", err)
			}
			if le.Source != name {
				t.Errorf("source = %q", le.Source)
			}
		})
	}
}

// pngWithHeader encodes a tiny PNG and rewrites its IHDR to claim w x h.
func pngWithHeader(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	// signature(8) length(4) "IHDR"(4) then width and height.
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecode_TooManyPixels(t *testing.T) {
	data := pngWithHeader(t, 16000, 16000)
	_, err := Decode(bytes.NewReader(data), "huge.png")
	var le *model.ImageLoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want ImageLoadError", err)
	}
	if !strings.Contains(le.Err.Error(), "16000x16000") {
		t.Errorf("err = %v", le.Err)
	}
}

func TestDecode_ShrinksToCanvas(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(1600, 400, color.White)); err != nil {
		t.Fatal(err)
	}
	img, err := Decode(&buf, "wide.png")
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 800 || b.Dy() != 200 {
		t.Errorf("bounds = %v", b)
	}
}

func TestCanvas_EncodesFittedSize(t *testing.T) {
	fonts, err := LoadFonts("")
	if err != nil {
		t.Fatal(err)
	}
	bg := solid(1000, 500, color.RGBA{R: 200, A: 255})
	c, err := NewCanvas(800, 400, fonts)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	Draw(c, Scene{
		Background: bg,
		Lines:      []editor.TextLine{{Text: "Hello", X: 400, Y: 200, Size: 40, Color: "#ffffff"}},
		Selected:   editor.None,
	})
	data, err := c.PNG()
	if err != nil {
		t.Fatal(err)
	}
	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := out.Bounds(); b.Dx() != 800 || b.Dy() != 400 {
		t.Errorf("encoded bounds = %v, want 800x400", b)
	}
	if uri := DataURI(data); !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("DataURI prefix: %.30s", uri)
	}
}

func TestFonts_MeasureGrowsWithSize(t *testing.T) {
	fonts, err := LoadFonts("")
	if err != nil {
		t.Fatal(err)
	}
	small := fonts.MeasureText("meme", 20)
	large := fonts.MeasureText("meme", 80)
	if small <= 0 || large <= small {
		t.Errorf("measure 20=%v 80=%v", small, large)
	}
	if fonts.MeasureText("", 40) != 0 {
		t.Error("empty string has width")
	}
}
