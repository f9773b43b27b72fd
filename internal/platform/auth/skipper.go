package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass the session middleware. They are infrastructure
// endpoints that must answer without a bearer token.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// Skipper returns true for requests whose route should skip the session
// middleware.
func Skipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether path is a public infrastructure endpoint.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
