package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prowhq/billing/internal/contextkeys"
	"github.com/prowhq/billing/internal/handler"
)

// Auth creates a JWT authentication middleware. Tokens are issued by the
// platform's identity service and carry the organization the caller acts for.
func Auth(jwtSecret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "no token provided"})
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization header"})
				return
			}

			claims, err := verifyToken(parts[1], jwtSecret)
			if err != nil {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
				return
			}

			orgID, _ := claims["orgId"].(string)
			if orgID == "" {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "token has no organization"})
				return
			}
			email, _ := claims["email"].(string)
			role, _ := claims["role"].(string)

			// Store caller info in context using typed keys
			ctx := context.WithValue(r.Context(), contextkeys.OrgID, orgID)
			ctx = context.WithValue(ctx, contextkeys.UserEmail, email)
			ctx = context.WithValue(ctx, contextkeys.UserRole, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func verifyToken(tokenStr, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
