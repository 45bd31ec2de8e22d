package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

// Middleware rejects requests without a valid bearer token and stores the
// caller's id on the echo context.
func Middleware(tokens *Tokens) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(h, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			userID, err := tokens.Parse(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}

// UserID returns the id stored by Middleware.
func UserID(c echo.Context) (uint, bool) {
	uid, ok := c.Get(userIDKey).(uint)
	return uid, ok
}
