package templates

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikequentel/memeboard/internal/model"
)

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"smiling kitty.jpg", "Kitty_1.jpg", "notes.txt", "b.PNG"} {
		os.WriteFile(filepath.Join(dir, name), []byte("img"), 0644)
	}
	os.Mkdir(filepath.Join(dir, "sub.png"), 0755)

	c, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, it := range c.Items {
		names = append(names, it.Name)
	}
	if strings.Join(names, "|") != "Kitty_1.jpg|b.PNG|smiling kitty.jpg" {
		t.Errorf("names = %v", names)
	}
	if c.Items[0].Title != "Kitty 1" {
		t.Errorf("title = %q", c.Items[0].Title)
	}
}

func TestLoadDir_Missing(t *testing.T) {
	c, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Items) != 0 {
		t.Errorf("items = %v", c.Items)
	}
}

const gallery = `<html><body>
<div class="template-gallery">
  <div class="template-item"><img src="/Assets/Kitty_1.jpg" alt="Template 1" class="template-thumbnail"></div>
  <div class="template-item"><img src="/Assets/leaping%20kitty.jpg" class="template-thumbnail"></div>
  <div class="template-item"><img src="https://cdn.example.com/remote.jpg" alt="remote"></div>
  <div class="template-item"><img src="/Assets/readme.txt"></div>
  <div class="template-item"><img src="/Assets/Kitty_1.jpg" alt="dup"></div>
</div>
<img src="/Assets/outside.jpg">
</body></html>`

func TestParseGallery(t *testing.T) {
	c, err := ParseGallery(strings.NewReader(gallery), "Assets")
	if err != nil {
		t.Fatal(err)
	}
	want := []Template{
		{Name: "Kitty_1.jpg", Title: "Template 1"},
		{Name: "leaping kitty.jpg", Title: "leaping kitty"},
	}
	if len(c.Items) != len(want) {
		t.Fatalf("items = %+v", c.Items)
	}
	for i, w := range want {
		if c.Items[i] != w {
			t.Errorf("item %d = %+v, want %+v", i, c.Items[i], w)
		}
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "cat.png"), []byte("meow"), 0644)
	os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("no"), 0644)
	c, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	f, err := c.Open("cat.png")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "meow" {
		t.Errorf("data = %q", data)
	}

	for _, name := range []string{"secret.txt", "../cat.png", "missing.png"} {
		if _, err := c.Open(name); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("Open(%q) err = %v, want ErrNotFound", name, err)
		}
	}
}
