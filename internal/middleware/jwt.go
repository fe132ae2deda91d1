// Package middleware provides shared request processing: access-token
// validation, role enforcement, rate limiting and response caching.
// The booking engine itself never validates identity; these layers
// extract an opaque user id (plus display name and phone, when the
// token carries them) and hand it down to the handlers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the token's subject and profile claims into the
// request context.  The provided secret must match the one used when
// issuing tokens.  Handlers access the values via c.Get("user_id"),
// c.Get("username"), c.Get("phone") and c.Get("role").
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Parse with HS256 and our secret; reject any other
			// signing method.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			// Store identity claims in the context.  Type assertions
			// are left to downstream consumers.
			c.Set("user_id", claims["sub"])
			c.Set("username", claims["username"])
			c.Set("phone", claims["phone"])
			c.Set("role", claims["role"])
			return next(c)
		}
	}
}
