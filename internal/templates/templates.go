// Package templates is the catalog of stock meme images.
package templates

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mikequentel/memeboard/internal/model"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

type Template struct {
	Name  string `json:"name"` // file name inside the catalog directory
	Title string `json:"title"`
}

// Catalog lists the templates found in Dir.
type Catalog struct {
	Dir   string
	Items []Template
}

// LoadDir lists image files in dir, sorted by name. A missing directory is
// an empty catalog.
func LoadDir(dir string) (*Catalog, error) {
	c := &Catalog{Dir: dir}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		c.Items = append(c.Items, Template{Name: e.Name(), Title: titleOf(e.Name())})
	}
	sort.Slice(c.Items, func(i, j int) bool { return c.Items[i].Name < c.Items[j].Name })
	return c, nil
}

// ParseGallery reads template entries from an HTML page: every img inside
// an element with class template-gallery. Image sources are resolved to
// file names relative to dir; entries outside dir or with unknown image
// types are skipped.
func ParseGallery(r io.Reader, dir string) (*Catalog, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse gallery: %w", err)
	}
	c := &Catalog{Dir: dir}
	seen := map[string]bool{}
	doc.Find(".template-gallery img").Each(func(i int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			return
		}
		name, ok := nameFromSrc(src)
		if !ok || seen[name] {
			return
		}
		seen[name] = true
		title := strings.TrimSpace(img.AttrOr("alt", ""))
		if title == "" {
			title = titleOf(name)
		}
		c.Items = append(c.Items, Template{Name: name, Title: title})
	})
	return c, nil
}

// nameFromSrc turns "/Assets/leaping%20kitty.jpg" into "leaping kitty.jpg".
func nameFromSrc(src string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || !imageExts[strings.ToLower(path.Ext(name))] {
		return "", false
	}
	return name, true
}

func titleOf(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.TrimSpace(base)
}

// Lookup returns the template named name.
func (c *Catalog) Lookup(name string) (Template, bool) {
	for _, t := range c.Items {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

// Open opens the image file of a catalog entry. Names not in the catalog
// are rejected before touching the filesystem.
func (c *Catalog) Open(name string) (*os.File, error) {
	t, ok := c.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("template %q: %w", name, model.ErrNotFound)
	}
	return os.Open(filepath.Join(c.Dir, t.Name))
}
