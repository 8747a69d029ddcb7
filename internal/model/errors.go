package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotSignedIn = errors.New("not signed in")
	ErrNoImage     = errors.New("no image loaded")
	ErrNotFound    = errors.New("not found")
)

// ExportGuidance is shown when a canvas cannot be rasterized.
const ExportGuidance = "upload the image from your device instead of using a remote template"

// ImageLoadError reports an image that could not be read or decoded.
type ImageLoadError struct {
	Source string
	Err    error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("load image %s: %v", e.Source, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }

// AuthError reports a rejected email or code. Msg is safe to show to users.
type AuthError struct {
	Msg string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// PersistenceWriteError reports a failed transaction or blob upload.
type PersistenceWriteError struct {
	Op  string
	Err error
}

func (e *PersistenceWriteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceWriteError) Unwrap() error { return e.Err }

// CanvasExportError reports a canvas that could not be encoded.
type CanvasExportError struct {
	Err error
}

func (e *CanvasExportError) Error() string {
	return fmt.Sprintf("export canvas: %v (%s)", e.Err, ExportGuidance)
}

func (e *CanvasExportError) Unwrap() error { return e.Err }
