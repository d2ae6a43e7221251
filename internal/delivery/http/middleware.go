package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type profileIDKey struct{}

// AuthMiddleware validates the bearer token issued by the identity service
// and puts the stable profile id on the request context. Session lifecycle
// itself is the identity service's problem; only the profile id matters
// here.
func AuthMiddleware(secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			profileID, _ := claims["profile_id"].(string)
			if profileID == "" {
				http.Error(w, "token missing profile id", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), profileIDKey{}, profileID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProfileIDFromContext returns the authenticated profile id, or "" when the
// request skipped the auth middleware.
func ProfileIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(profileIDKey{}).(string)
	return id
}
