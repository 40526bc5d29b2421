package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/frontage-io/frontage"
)

// writeObject renders a resolved object with its metadata passed through
// verbatim. Absent metadata fields are omitted, never defaulted.
func writeObject(w http.ResponseWriter, obj *frontage.ResolvedObject, status int) {
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.CacheControl != "" {
		w.Header().Set("Cache-Control", obj.CacheControl)
	}
	if obj.Expires != nil {
		w.Header().Set("Expires", obj.Expires.UTC().Format(http.TimeFormat))
	}
	if obj.LastModified != nil {
		w.Header().Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(status)
	_, _ = w.Write(obj.Body)
}

// redirectWithQuery redirects to location with the request's original
// query string appended unchanged.
func redirectWithQuery(w http.ResponseWriter, r *http.Request, location string, code int) {
	if r.URL.RawQuery != "" {
		location += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, location, code)
}

// writePlainError is the hardcoded terminal response used when no error
// page object exists anywhere in a layer's fallback chain.
func writePlainError(w http.ResponseWriter, kind frontage.ErrorKind) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(kind.StatusCode())
	_, _ = w.Write([]byte(kind.FallbackText()))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

// writeError writes a JSON error response for the extension endpoints.
func writeError(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, map[string]string{"error": errCode, "message": message})
}
