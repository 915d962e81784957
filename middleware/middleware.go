package middleware

import (
	"context"
	"net/http"
	"strings"

	"sprintsync/microservices/dashboard-service/clients"
	"sprintsync/microservices/dashboard-service/logging"
	"sprintsync/microservices/dashboard-service/utils"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// ClaimsFromContext returns the claims stored by JWTAuthMiddleware, or nil.
func ClaimsFromContext(ctx context.Context) *utils.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*utils.Claims)
	return claims
}

// JWTAuthMiddleware validates the bearer token and stores both the claims and
// the raw token in the request context. The raw token is forwarded on every
// task service call the request triggers.
func JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logging.Logger.Warnf("Event ID: JWT_AUTH_MISSING_HEADER, Description: Authorization header missing for request to %s %s", r.Method, r.URL.Path)
			http.Error(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := utils.ValidateToken(tokenStr)
		if err != nil {
			logging.Logger.Warnf("Event ID: JWT_AUTH_INVALID_TOKEN, Description: Invalid token provided for request to %s %s: %v", r.Method, r.URL.Path, err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		ctx = clients.WithToken(ctx, tokenStr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// EnableCORS mirrors the gateway's CORS policy for browser clients.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
