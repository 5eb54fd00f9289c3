package gateway

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"school_grading/backend/internal/gateway/util"
	"school_grading/backend/internal/shared"
)

// IdentityClaims are the claims an identity token carries
type IdentityClaims struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	SchoolID string `json:"school_id"`
	jwt.RegisteredClaims
}

// SignIdentity issues an HS256 identity token. The grading service only
// verifies tokens; this is for the seeder, local tooling and tests.
func SignIdentity(secret string, id shared.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		UserID:   id.UserID,
		Name:     id.Name,
		SchoolID: id.SchoolID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseIdentity verifies an HS256 token and returns the identity it names
func ParseIdentity(secret, tokenStr string) (shared.Identity, error) {
	claims := &IdentityClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return shared.Identity{}, err
	}
	if claims.UserID == "" || claims.SchoolID == "" {
		return shared.Identity{}, errors.New("token is missing user_id or school_id")
	}
	return shared.Identity{UserID: claims.UserID, Name: claims.Name, SchoolID: claims.SchoolID}, nil
}

// IdentityMiddleware rejects requests without a valid identity token and
// puts the identity on the request context.
func IdentityMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := util.ExtractToken(r)
			if err != nil {
				util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}

			id, err := ParseIdentity(secret, tokenStr)
			if err != nil {
				util.WriteJSONError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(util.WithIdentity(r.Context(), id)))
		})
	}
}
