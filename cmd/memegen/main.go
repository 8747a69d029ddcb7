package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/mikequentel/memeboard/internal/editor"
	"github.com/mikequentel/memeboard/internal/render"
	"github.com/mikequentel/memeboard/internal/syndicate"
	"github.com/mikequentel/memeboard/internal/templates"
)

// Flags
var (
	inFile    = flag.String("in", "", "background image file (png, jpeg, gif, webp)")
	gallery   = flag.String("gallery", "", "HTML template gallery; with -template picks an image from it")
	tmplName  = flag.String("template", "", "template name inside -gallery")
	outFile   = flag.String("out", "meme.png", "output PNG file")
	textIn    = flag.String("text", "", `meme text; "\n" separates lines`)
	size      = flag.Float64("size", editor.DefaultSize, "text size in pixels (20-100)")
	colorFlag = flag.String("color", editor.DefaultColor, "text color, #rrggbb")
	positions = flag.String("pos", "", "per-line centers as x,y;x,y (defaults stack from the canvas center)")
	fontFile  = flag.String("font", "", "TTF/OTF font file (default Go Regular)")
	post      = flag.Bool("post", false, "also post the meme to X using X_* env vars")
	dryRun    = flag.Bool("dry-run", os.Getenv("DRY_RUN") == "1", "with -post, log instead of posting")
)

var rePoint = regexp.MustCompile(`^\s*(-?[0-9.]+)\s*,\s*(-?[0-9.]+)\s*$`)

// parsePositions reads "x,y;x,y". Empty entries keep the default position
// of that line.
func parsePositions(s string) ([]*editor.Point, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []*editor.Point
	for i, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			out = append(out, nil)
			continue
		}
		m := rePoint.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("position %d: %q is not x,y", i+1, part)
		}
		x, _ := strconv.ParseFloat(m[1], 64)
		y, _ := strconv.ParseFloat(m[2], 64)
		out = append(out, &editor.Point{X: x, Y: y})
	}
	return out, nil
}

// compose lays text over img the way the editor would and returns the
// exported PNG.
func compose(img image.Image, text string, size float64, color string, pos []*editor.Point, fonts *render.Fonts) ([]byte, error) {
	b := img.Bounds()
	w, h := render.Fit(b.Dx(), b.Dy())

	e := editor.New()
	e.SetCanvas(float64(w), float64(h))
	e.SetSize(size)
	if err := e.SetColor(color); err != nil {
		return nil, err
	}
	e.SetInput(text)
	for i, p := range pos {
		if p == nil || i >= len(e.Lines) {
			continue
		}
		e.Lines[i].X, e.Lines[i].Y = p.X, p.Y
	}
	return render.RenderPNG(render.SceneOf(e, img, false), w, h, fonts)
}

func loadBackground() (image.Image, error) {
	switch {
	case *inFile != "":
		return render.DecodeFile(*inFile)
	case *gallery != "" && *tmplName != "":
		f, err := os.Open(*gallery)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		dir := "."
		if i := strings.LastIndexAny(*gallery, `/\`); i >= 0 {
			dir = (*gallery)[:i]
		}
		c, err := templates.ParseGallery(f, dir)
		if err != nil {
			return nil, err
		}
		tf, err := c.Open(*tmplName)
		if err != nil {
			return nil, err
		}
		defer tf.Close()
		return render.Decode(tf, *tmplName)
	}
	return nil, fmt.Errorf("need -in, or -gallery with -template")
}

func main() {
	flag.Parse()
	log.SetFlags(0)

	img, err := loadBackground()
	if err != nil {
		log.Fatalf("background: %v", err)
	}
	pos, err := parsePositions(*positions)
	if err != nil {
		log.Fatalf("-pos: %v", err)
	}
	fonts, err := render.LoadFonts(*fontFile)
	if err != nil {
		log.Fatalf("font: %v", err)
	}
	defer fonts.Close()

	text := strings.ReplaceAll(*textIn, `\n`, "\n")
	png, err := compose(img, text, *size, *colorFlag, pos, fonts)
	if err != nil {
		log.Fatalf("compose: %v", err)
	}
	if err := os.WriteFile(*outFile, png, 0644); err != nil {
		log.Fatalf("write %s: %v", *outFile, err)
	}
	log.Printf("wrote %s (%d bytes)", *outFile, len(png))

	if !*post {
		return
	}
	creds := syndicate.Credentials{
		ConsumerKey:    os.Getenv("X_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("X_CONSUMER_SECRET"),
		AccessToken:    os.Getenv("X_ACCESS_TOKEN"),
		AccessSecret:   os.Getenv("X_ACCESS_SECRET"),
	}
	// Allow posting without creds in dry-run mode
	if missing := creds.Missing(); len(missing) > 0 && !*dryRun {
		log.Fatalf("missing required env var: %s", strings.Join(missing, ", "))
	}
	id, err := syndicate.New(creds, *dryRun, nil).Post(context.Background(), text, png)
	if err != nil {
		log.Fatalf("post: %v", err)
	}
	if *dryRun {
		fmt.Println("DRY RUN ✅ (no network calls)")
		fmt.Printf("Would post:\n---\n%s\n---\n", syndicate.FormatStatus(text))
		return
	}
	log.Printf("Posted tweet ID %s", id)
}
