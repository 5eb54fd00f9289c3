package handlers

import (
	"net/http"

	"school_grading/backend/internal/gateway/util"
	"school_grading/backend/internal/shared"
)

// identity returns the caller identity put on the context by the middleware.
// Routes are only mounted behind the middleware, so a miss is a server bug.
func identity(r *http.Request) shared.Identity {
	id, _ := util.IdentityFrom(r.Context())
	return id
}

// IdentityHandler exposes the caller identity
type IdentityHandler struct{}

// Whoami handles GET /api/identity
// Echoes the identity extracted from the bearer token.
func (h *IdentityHandler) Whoami(w http.ResponseWriter, r *http.Request) {
	id, ok := util.IdentityFrom(r.Context())
	if !ok {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}
	util.WriteJSON(w, http.StatusOK, id)
}
