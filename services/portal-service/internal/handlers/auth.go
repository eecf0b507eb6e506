package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/healthband/portal/libs/auth"
)

type ctxKey int

const patientIDKey ctxKey = iota

// PatientIDFromContext returns the authenticated patient's ID, or "".
func PatientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(patientIDKey).(string)
	return id
}

// RequireAuth verifies the bearer token and threads the patient ID into
// the request context. RS256 tokens are verified against the issuer's
// JWKS when a client is configured; everything else falls back to the
// shared HS256 secret.
func RequireAuth(next http.Handler, jwtSecret string, jwksClient *auth.JWKSClient) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			respondFailure(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid Authorization header")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		var claims *auth.Claims
		var err error

		if jwksClient != nil {
			header, herr := auth.ParseHeader(token)
			if herr != nil {
				respondFailure(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
				return
			}
			if header.Alg == "RS256" && header.Kid != "" {
				pub, kerr := jwksClient.Get(header.Kid)
				if kerr != nil {
					respondFailure(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
					return
				}
				claims, err = auth.VerifyRS256(token, pub)
			} else {
				claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
			}
		} else {
			claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
		}
		if err != nil || claims.Sub == "" {
			respondFailure(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), patientIDKey, claims.Sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
