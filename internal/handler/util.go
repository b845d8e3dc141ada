package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/internal/middleware"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

// maxBodyBytes bounds request bodies read by the JSON decoders.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind apperr.Kind, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"kind":  string(kind),
	})
}

// writeAppError maps err onto its HTTP status. Internal errors are logged
// and answered with a generic message.
func writeAppError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error, action string) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		var userID, role string
		if p := middleware.GetPrincipal(r.Context()); p != nil {
			userID, role = p.ID, p.Role
		}
		log.WithRequest(middleware.GetCorrelationID(r.Context()), userID, role).
			Error("failed to "+action, zap.Error(err))
	}
	writeError(w, status, kind, apperr.MessageOf(err))
}

// decodeJSON decodes the request body into v and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.KindInvalidPayload, err, "invalid request body")
	}
	return middleware.Validate(v)
}

// pathID returns the named URL parameter after checking it is a UUID.
func pathID(r *http.Request, name string) (string, error) {
	id := chi.URLParam(r, name)
	if err := middleware.ValidateID(id); err != nil {
		return "", err
	}
	return id, nil
}

// queryInt parses an integer query parameter, returning def when absent or
// malformed.
func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return def
}
