package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/attaboy/sportsbet/internal/domain"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// RespondError writes {"error": message}, taking the status from a wrapped
// domain.AppError. Server-side failures never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError {
		RespondJSON(w, appErr.Status, map[string]string{"error": appErr.Message})
		return
	}
	RespondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// DecodeJSON reads and decodes a JSON request body into dst. Bodies over
// 1 MiB are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
