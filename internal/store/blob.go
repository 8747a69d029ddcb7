package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mikequentel/memeboard/internal/model"
)

// BlobStore stores uploaded files and returns a URL they can be fetched from.
type BlobStore interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// DirBlobs stores blobs as files under Dir, served at BaseURL.
type DirBlobs struct {
	Dir     string
	BaseURL string
}

var errBadBlobPath = errors.New("blob path escapes the blob directory")

// cleanBlobPath validates a slash-separated relative blob name.
func cleanBlobPath(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return "", errBadBlobPath
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errBadBlobPath
	}
	return clean, nil
}

// Upload writes data to Dir/name, replacing it atomically. Failures are
// *model.PersistenceWriteError.
func (b DirBlobs) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &model.PersistenceWriteError{Op: "upload " + name, Err: err}
	}
	clean, err := cleanBlobPath(name)
	if err != nil {
		return "", &model.PersistenceWriteError{Op: "upload " + name, Err: err}
	}
	dst := filepath.Join(b.Dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", &model.PersistenceWriteError{Op: "upload " + name, Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", &model.PersistenceWriteError{Op: "upload " + name, Err: err}
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", &model.PersistenceWriteError{Op: "upload " + name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &model.PersistenceWriteError{Op: "upload " + name, Err: err}
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", &model.PersistenceWriteError{Op: "upload " + name, Err: err}
	}
	return b.URL(clean), nil
}

// URL returns where a stored blob is served.
func (b DirBlobs) URL(name string) string {
	segs := strings.Split(name, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(b.BaseURL, "/"), strings.Join(segs, "/"))
}
