package httpapi

import (
	"encoding/json"
	"net/http"
)

// errorKind classifies request failures so handlers and tests can branch on
// the kind instead of matching message strings.
type errorKind int

const (
	kindUnavailable errorKind = iota // model handle absent
	kindBadUpload                    // unreadable or malformed upload
	kindTranscribe                   // model invocation failed
)

type apiError struct {
	kind errorKind
	err  error
}

func (e *apiError) Error() string {
	return e.err.Error()
}

func (e *apiError) status() int {
	switch e.kind {
	case kindUnavailable:
		return http.StatusServiceUnavailable
	case kindBadUpload:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, e *apiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.status())
	_ = json.NewEncoder(w).Encode(map[string]string{"error": e.Error()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
