package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// corsMiddleware lets browser dashboards and producers call the API from anywhere.
// The headers go on every response, errors included, and OPTIONS is answered before routing.
func corsMiddleware(allowHeaders []string) echo.MiddlewareFunc {
	allowed := strings.Join(allowHeaders, ", ")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			h := ctx.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			h.Set(echo.HeaderAccessControlAllowHeaders, allowed)
			if ctx.Request().Method == http.MethodOptions {
				return ctx.String(http.StatusOK, "ok")
			}
			return next(ctx)
		}
	}
}
