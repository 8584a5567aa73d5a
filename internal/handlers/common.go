package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"fleetwear/internal/backend"
	"fleetwear/internal/logging"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// JSONResponse sends a JSON response
func JSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		lg := logging.Component("http")
		lg.Warn().Err(err).Msg("failed to encode JSON response")
	}
}

// JSONStatus sends a JSON response with a non-200 status.
func JSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

// JSONError sends a JSON error response
func JSONError(w http.ResponseWriter, message string, code int) {
	JSONStatus(w, code, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func parseID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// queryInt reads a positive integer query parameter bounded by max.
func queryInt(r *http.Request, name string, def, max int) int {
	if s := r.URL.Query().Get(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= max {
			return v
		}
	}
	return def
}

// backendError maps a fleet backend failure onto a response.
func backendError(w http.ResponseWriter, err error) {
	if errors.Is(err, backend.ErrUnauthorized) {
		JSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden {
		JSONError(w, "Forbidden by fleet backend", http.StatusForbidden)
		return
	}
	lg := logging.Component("http")
	lg.Error().Err(err).Msg("fleet backend request failed")
	JSONError(w, "Fleet backend unavailable", http.StatusBadGateway)
}
