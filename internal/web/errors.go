package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mikequentel/memeboard/internal/auth"
	"github.com/mikequentel/memeboard/internal/model"
)

// badRequest is a client error whose message is safe to show.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

// classify maps an error to a status code and a user-facing message.
func classify(err error) (int, string) {
	var (
		authErr   *model.AuthError
		imgErr    *model.ImageLoadError
		exportErr *model.CanvasExportError
		writeErr  *model.PersistenceWriteError
		bad       badRequest
	)
	switch {
	case errors.Is(err, model.ErrNotSignedIn), errors.Is(err, auth.ErrSessionNotFound):
		return http.StatusUnauthorized, "Please sign in first."
	case errors.As(err, &authErr):
		return http.StatusBadRequest, authErr.Msg
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "This editor belongs to someone else."
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "Not found."
	case errors.Is(err, model.ErrNoImage):
		return http.StatusConflict, "Please select an image first."
	case errors.As(err, &imgErr):
		return http.StatusBadRequest, "Could not load that image."
	case errors.As(err, &exportErr):
		return http.StatusUnprocessableEntity, "Could not export the meme. Please " + model.ExportGuidance + "."
	case errors.As(err, &writeErr):
		return http.StatusBadGateway, "Could not save. Please try again."
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.msg
	}
	return http.StatusInternalServerError, "Something went wrong."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail writes err as a JSON error response. Server side failures are
// logged with the underlying cause.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status >= 500 {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	} else {
		s.log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeError(w, status, msg)
}

// decodeJSON reads a small JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return badRequest{"Malformed request body."}
	}
	return nil
}
