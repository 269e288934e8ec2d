package handlers

import (
	"encoding/json"
	"net/http"

	"trendcraft/internal/logging"
)

// errorResponse is the body of every non-2xx response
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper for error responses; server errors are logged
func respondWithError(w http.ResponseWriter, logger logging.Logger, code int, message string, err error) {
	if err != nil && code >= http.StatusInternalServerError {
		logger.Error("HTTP error",
			logging.Int("code", code),
			logging.String("message", message),
			logging.Error(err),
		)
	}
	respondWithJSON(w, code, errorResponse{Error: message})
}
