package middleware

import (
	"github.com/labstack/echo/v4"
)

// VersionHeader stamps every response of a versioned group with the API
// version and the build that served it.
func VersionHeader(apiVersion, build string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-API-Version", apiVersion)
			if build != "" {
				c.Response().Header().Set("X-Build-Version", build)
			}
			c.Set("api_version", apiVersion)
			return next(c)
		}
	}
}
