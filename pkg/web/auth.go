package web

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v3"
)

// APIKeyHeader carries the shared secret on worker-facing requests.
const APIKeyHeader = "X-Loom-Key"

// SharedSecretAuth guards a route group with a shared secret compared in
// constant time. An empty secret disables the guard, for local development.
func SharedSecretAuth(secret string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		provided := c.Get(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return unauthorized(c)
		}

		return c.Next()
	}
}
