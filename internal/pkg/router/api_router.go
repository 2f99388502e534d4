package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	apiv1 "github.com/ManuelReschke/CoachHub/internal/api/v1"
	"github.com/ManuelReschke/CoachHub/internal/pkg/cache"
	"github.com/ManuelReschke/CoachHub/internal/pkg/env"
	"github.com/ManuelReschke/CoachHub/internal/pkg/middleware"
)

// limiterRedisDB keeps rate-limit counters apart from the cache (DB 0).
const limiterRedisDB = 2

type ApiRouter struct {
	limiterStorage fiber.Storage
	jwtSecret      []byte
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT_MAX", 120),
		Expiration: time.Minute,
		Storage:    h.limiterStorage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too_many_requests",
				"message": "rate limit exceeded",
			})
		},
	}), middleware.JWTAuth(h.jwtSecret))

	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiv1.RegisterHandlers(v1, apiv1.NewAPIServer())
}

func NewApiRouter(limiterStorage fiber.Storage, jwtSecret []byte) *ApiRouter {
	return &ApiRouter{limiterStorage: limiterStorage, jwtSecret: jwtSecret}
}

// NewLimiterStorage returns redis-backed storage for the rate limiter so
// limits hold across instances. It connects to the configured cache server.
func NewLimiterStorage() fiber.Storage {
	opts := cache.Options()
	host := "localhost"
	port := 6379
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: opts.Password,
		Database: limiterRedisDB,
		Reset:    false,
	})
}
