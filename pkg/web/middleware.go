package web

import "github.com/gofiber/fiber/v3"

// openPaths are reachable without authentication so probes keep working.
var openPaths = map[string]bool{
	"/":       true,
	"/health": true,
	"/livez":  true,
	"/readyz": true,
}

// APIKeyMiddleware rejects requests whose X-API-Key header does not match
// the configured key. An empty key disables authentication.
func APIKeyMiddleware(key string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if key == "" || openPaths[c.Path()] {
			return c.Next()
		}

		if c.Get("X-API-Key") != key {
			return unauthorized(c)
		}

		return c.Next()
	}
}
