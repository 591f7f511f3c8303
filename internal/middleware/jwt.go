// Package middleware contains reusable HTTP middleware.  Identity
// arrives as a JWT minted by the accounts service; this service only
// verifies it and never issues tokens of its own.
package middleware

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the subject claim into the request context.  The
// secret must match the one the accounts service signs with.  Handlers
// behind this middleware read the caller via CurrentUserID.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

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

            c.Set("user_id", claims["sub"])
            return next(c)
        }
    }
}

// CurrentUserID extracts the authenticated user id stored by JWTAuth.
// Numeric claims arrive as float64 after JSON decoding; the other
// shapes cover tokens minted with explicit integer or string subjects.
func CurrentUserID(c echo.Context) (uint64, bool) {
    switch v := c.Get("user_id").(type) {
    case float64:
        return uint64(v), true
    case uint64:
        return v, true
    case int64:
        return uint64(v), true
    case string:
        id, err := strconv.ParseUint(v, 10, 64)
        return id, err == nil
    }
    return 0, false
}
