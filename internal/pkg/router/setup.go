package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers the API routes. limiterStorage may be nil, in
// which case the rate limiter keeps its counters in memory.
func InstallRouter(app *fiber.App, limiterStorage fiber.Storage, jwtSecret []byte) {
	setup(app, NewApiRouter(limiterStorage, jwtSecret))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
