package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BTreeMap/HabitChat/internal/models"
)

type contextKey string

// userIDContextKey carries the authenticated user ID through the request.
const userIDContextKey contextKey = "habitchat.userID"

// authenticate wraps a handler with bearer-token verification. The token's
// subject claim becomes the user ID every store operation is scoped by, so a
// valid token can never read or write another user's data.
func (s *Server) authenticate(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.userFromRequest(r)
		if err != nil {
			slog.Warn("Server.authenticate: rejected request", "path", r.URL.Path, "error", err)
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid or missing bearer token"))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDContextKey, userID)))
	})
}

// userFromRequest extracts and verifies the bearer token, returning its
// subject.
func (s *Server) userFromRequest(r *http.Request) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", fmt.Errorf("no JWT secret configured")
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", fmt.Errorf("Authorization header is not a bearer token")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("token verification failed: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// userID returns the authenticated user for a request that passed
// authenticate.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDContextKey).(string)
	return id
}
