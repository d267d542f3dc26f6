// Copyright (C) 2025 Treddit <dev@treddit.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tredditapp/messaging/backend/models"
)

// Claims is the token payload issued by the account service. The messaging
// service trusts this identity; it never re-verifies credentials.
type Claims struct {
	UserID     int64  `json:"uid"`
	Username   string `json:"username"`
	Nickname   string `json:"nickname"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	IsAdmin    bool   `json:"is_admin"`
	IsVerified bool   `json:"is_verified"`
	jwt.RegisteredClaims
}

// User converts the claims to the display shape joined onto messages.
func (c *Claims) User() models.UserSummary {
	return models.UserSummary{
		ID:         c.UserID,
		Username:   c.Username,
		Nickname:   c.Nickname,
		AvatarURL:  c.AvatarURL,
		IsAdmin:    c.IsAdmin,
		IsVerified: c.IsVerified,
	}
}

type contextKey int

const claimsKey contextKey = iota

// NewAuthMiddleware verifies HS256 bearer tokens and attaches the caller's
// claims to the request context.
func NewAuthMiddleware(jwtSecret string, issuer string) func(http.Handler) http.Handler {
	keyFunc := func(*jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized: No authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims := &Claims{}
			if _, err := jwt.ParseWithClaims(parts[1], claims, keyFunc, opts...); err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			if claims.UserID <= 0 {
				http.Error(w, "Invalid token subject", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims attaches an identity to a context. Handler tests use it to
// bypass token parsing.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims extracts the caller's identity from the request context.
func GetClaims(r *http.Request) (*Claims, bool) {
	claims, ok := r.Context().Value(claimsKey).(*Claims)
	return claims, ok
}

// CORS middleware for handling cross-origin requests
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowedOrigins := []string{
			"https://treddit.app",
			"https://www.treddit.app",
			"http://localhost:3000", // Development
		}

		for _, allowed := range allowedOrigins {
			if origin == allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
