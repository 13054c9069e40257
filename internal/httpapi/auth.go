package httpapi

import (
	"context"
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims this service consumes. Tokens are minted by
// the platform auth service and verified here against its RSA public key;
// Subject carries the user ID.
type Claims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type contextKey string

const claimsKey contextKey = "claims"

// roleRank orders roles by privilege. Unknown roles rank below guest so a
// token with a role this service has never heard of grants nothing.
func roleRank(role string) int {
	switch role {
	case "guest":
		return 1
	case "member":
		return 2
	case "admin":
		return 3
	case "service":
		return 4
	}
	return 0
}

// Authenticate verifies the request token and stores the parsed claims on
// the request context. Only RS256 is accepted.
func Authenticate(pubKey *rsa.PublicKey) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := requestToken(r)
			if raw == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing token")
				return
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
				return pubKey, nil
			})
			if err != nil || !token.Valid {
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

// RequireRole rejects requests whose role ranks below the given minimum.
// It must run after Authenticate.
func RequireRole(minimum string) func(http.Handler) http.Handler {
	want := roleRank(minimum)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if roleRank(claims.Role) < want {
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims returns the claims Authenticate stored, or nil on an
// unauthenticated request.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// requestToken pulls the bearer token from the Authorization header.
// Browsers cannot set headers on a websocket handshake, so the assist_token
// cookie is accepted as a fallback there.
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if cookie, err := r.Cookie("assist_token"); err == nil {
		return cookie.Value
	}
	return ""
}
