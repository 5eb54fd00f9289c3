package util

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"school_grading/backend/internal/shared"
)

// JSONResponse structure for successful responses
type JSONResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// JSONError structure for error responses
type JSONError struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Fields  []shared.ValidationError `json:"fields,omitempty"`
}

// WriteJSON is a helper to write JSON responses. 2xx payloads are wrapped in
// the success envelope.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	var response interface{}
	if status >= 200 && status < 300 {
		response = JSONResponse{Success: true, Data: payload}
	} else {
		// Fallback for errors if WriteJSONError wasn't used
		response = JSONError{Success: false, Message: "Unknown error"}
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("error writing JSON response")
	}
}

// WriteJSONError is a helper to write standardized error JSON responses
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	writeError(w, status, JSONError{Success: false, Message: message})
}

func writeError(w http.ResponseWriter, status int, body JSONError) {
	if status >= http.StatusInternalServerError {
		log.Error().Int("status", status).Str("message", body.Message).Msg("HTTP error")
	} else {
		log.Debug().Int("status", status).Str("message", body.Message).Msg("HTTP error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("error writing JSON error response")
	}
}

// StatusOf maps an error class to its HTTP status
func StatusOf(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrPrecondition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HandleError translates a service error into the HTTP response. Field
// validation failures are listed; unclassified errors are not echoed.
func HandleError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	body := JSONError{Success: false, Message: shared.Message(err)}

	var fields shared.FieldErrors
	if errors.As(err, &fields) {
		body.Fields = fields
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("unhandled service error")
		body.Message = "Internal server error"
	}
	writeError(w, status, body)
}

// DecodeJSON reads the request body into dst. A malformed body is a
// validation error.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return shared.Invalidf("invalid request body: %v", err)
	}
	return nil
}

// ExtractToken extracts the token from the Authorization header (Bearer <token>)
func ExtractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header missing")
	}

	// Expect header: "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("invalid authorization header format")
	}

	return parts[1], nil
}

type identityKey struct{}

// WithIdentity returns ctx carrying id
func WithIdentity(ctx context.Context, id shared.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity placed by the identity middleware
func IdentityFrom(ctx context.Context) (shared.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(shared.Identity)
	return id, ok
}
