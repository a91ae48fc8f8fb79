package httpapi

import (
	"compress/gzip"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/c0deZ3R0/go-playlist-kit/errors"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.respondErr(w, r, http.StatusInternalServerError, "failed to marshal response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if h.options.CompressionEnabled && int64(len(body)) >= h.options.CompressionThreshold &&
		strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		w.WriteHeader(code)
		gz := gzip.NewWriter(w)
		defer gz.Close()
		_, _ = gz.Write(body)
		return
	}
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, code int, message string) {
	h.respond(w, r, code, errorBody{Error: message})
}

// respondError writes err with the status for its kind. Server-side failures
// are logged.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		h.logger.LogError(r.Context(), err, "request failed")
	}
	h.respond(w, r, code, errorBody{
		Error:     err.Error(),
		Kind:      string(errors.KindOf(err)),
		Retryable: errors.IsRetryable(err),
	})
}

// statusOf maps an error to an HTTP status.
func statusOf(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case stderrors.Is(err, errDecompressedTooLarge), stderrors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, errUnsupportedMedia), stderrors.Is(err, errUnsupportedEncoding):
		return http.StatusUnsupportedMediaType
	case stderrors.Is(err, errInvalidGzip), stderrors.Is(err, errReadBody):
		return http.StatusBadRequest
	}

	switch errors.KindOf(err) {
	case errors.KindPermissionDenied:
		return http.StatusForbidden
	case errors.KindNotFound, errors.KindItemNotFound:
		return http.StatusNotFound
	case errors.KindDuplicateItem, errors.KindAlreadyExists, errors.KindCapacityExceeded,
		errors.KindNothingToUndo, errors.KindNothingToRedo:
		return http.StatusConflict
	case errors.KindItemUnavailable, errors.KindInvalidPosition:
		return http.StatusUnprocessableEntity
	case errors.KindValidationFailure:
		return http.StatusBadRequest
	case errors.KindStorageFailure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
