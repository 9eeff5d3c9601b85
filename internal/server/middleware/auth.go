package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AuthMiddleware requires the configured API key as a bearer token or in
// the X-API-Key header. Without a configured key every request passes.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		app := c.(*AppContext).App
		if app.APIKey == "" {
			return next(c)
		}

		token := c.Request().Header.Get("X-API-Key")
		if auth := c.Request().Header.Get("Authorization"); token == "" && strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(app.APIKey)) != 1 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		return next(c)
	}
}
