package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/CoachHub/app/controllers"
	"github.com/ManuelReschke/CoachHub/app/repository"
	"github.com/ManuelReschke/CoachHub/internal/pkg/cache"
	"github.com/ManuelReschke/CoachHub/internal/pkg/database"
	"github.com/ManuelReschke/CoachHub/internal/pkg/env"
	"github.com/ManuelReschke/CoachHub/internal/pkg/mail"
	"github.com/ManuelReschke/CoachHub/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/CoachHub/internal/pkg/payment"
	"github.com/ManuelReschke/CoachHub/internal/pkg/router"
	"github.com/ManuelReschke/CoachHub/internal/pkg/subscription"
	"github.com/ManuelReschke/CoachHub/internal/pkg/sweeper"
)

func main() {
	app, sweeps := NewApplication()

	if err := sweeps.Start(); err != nil {
		log.Fatalf("[Main] Could not start sweeper: %v", err)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("[Main] Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sweeps.Stop(ctx)
		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Errorf("[Main] Shutdown error: %v", err)
		}
		_ = cache.Close()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *sweeper.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	secret := env.GetEnv("JWT_SECRET", "")
	if secret == "" {
		panic("JWT_SECRET must be set")
	}

	sender, err := mail.NewSenderFromEnv()
	if err != nil {
		panic(err)
	}

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()
	issuer := payment.NewIssuer(repos)
	svc := subscription.NewService(repos, issuer, sender, nil)
	sweeps := sweeper.NewManager(
		svc,
		cache.NewLeaser(cache.GetClient(), "coachhub:lease:"),
		sweeper.ConfigFromEnv(),
		sweeper.WithRecorder(counter.NewSweepCounters(cache.GetClient(), counter.SweepCountersKey)),
	)
	controllers.InitializeSubscriptionController(controllers.NewSubscriptionController(svc, issuer, sweeps))

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/coachhub to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); err == nil {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "CoachHub",
		BodyLimit: 1 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "changeme"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, router.NewLimiterStorage(), []byte(secret))

	return app, sweeps
}
