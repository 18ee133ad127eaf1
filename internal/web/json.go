package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/sweeney/focus-timer/internal/control"
	"github.com/sweeney/focus-timer/internal/status"
)

// maxBody bounds control request bodies.
const maxBody = 4 << 10

// ConfigRequest is the body accepted by /api/config and /api/start, either
// as JSON or as form fields with the same names. Values are raw text, as
// typed into a form.
type ConfigRequest struct {
	BlockMinutes string `json:"block_minutes"`
	Chunks       string `json:"chunks"`
	BreakMinutes string `json:"break_minutes"`
}

func (c ConfigRequest) empty() bool {
	return c.BlockMinutes == "" && c.Chunks == "" && c.BreakMinutes == ""
}

// ActionResponse is returned by every control endpoint.
type ActionResponse struct {
	Applied bool               `json:"applied"`
	Error   string             `json:"error,omitempty"`
	Status  *status.StatusJSON `json:"status,omitempty"`
}

func mediaType(r *http.Request) string {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt
}

func isMultipart(r *http.Request) bool {
	return mediaType(r) == "multipart/form-data"
}

func isForm(r *http.Request) bool {
	return mediaType(r) == "application/x-www-form-urlencoded" || isMultipart(r)
}

// decodeConfig reads a ConfigRequest from a form or JSON body. An empty body
// yields an empty request.
func decodeConfig(w http.ResponseWriter, r *http.Request) (ConfigRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if isForm(r) {
		parse := r.ParseForm
		if isMultipart(r) {
			parse = func() error { return r.ParseMultipartForm(maxBody) }
		}
		if err := parse(); err != nil {
			return ConfigRequest{}, fmt.Errorf("%w: %v", control.ErrBadInput, err)
		}
		return ConfigRequest{
			BlockMinutes: r.PostForm.Get("block_minutes"),
			Chunks:       r.PostForm.Get("chunks"),
			BreakMinutes: r.PostForm.Get("break_minutes"),
		}, nil
	}

	var req ConfigRequest
	if r.ContentLength == 0 {
		return req, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ConfigRequest{}, fmt.Errorf("%w: decode body: %v", control.ErrBadInput, err)
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// statusCode maps a command outcome to an HTTP status. A command that was
// queued but not answered in time gets 202: it may still be applied, so
// clients should re-read the status instead of retrying.
func statusCode(res control.Result, err error) int {
	switch {
	case errors.Is(err, control.ErrPending):
		return http.StatusAccepted
	case err != nil:
		return http.StatusServiceUnavailable
	case errors.Is(res.Err, control.ErrBadInput):
		return http.StatusBadRequest
	case res.Err != nil:
		return http.StatusUnprocessableEntity
	case !res.Applied:
		return http.StatusConflict
	}
	return http.StatusOK
}
