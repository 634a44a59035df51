package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/aggpay/aggpay/app/repository"
	"github.com/aggpay/aggpay/internal/pkg/cache"
	"github.com/aggpay/aggpay/internal/pkg/database"
	"github.com/aggpay/aggpay/internal/pkg/env"
	"github.com/aggpay/aggpay/internal/pkg/payment"
	"github.com/aggpay/aggpay/internal/pkg/router"
)

func main() {
	app := NewApplication()

	go startInstallmentSweep()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		log.Println("Shutting down...")
		if err := payment.CloseNotifications(); err != nil {
			log.Printf("Failed to drain notification hooks: %v", err)
		}
		if err := app.Shutdown(); err != nil {
			log.Printf("Server shutdown failed: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	app := fiber.New(fiber.Config{
		AppName:      "aggpay",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}

// startInstallmentSweep emails reminders for due installments once a day.
func startInstallmentSweep() {
	if !env.GetBool("INSTALLMENT_SWEEP_ENABLED", true) {
		return
	}

	service := payment.NewInstallmentService(payment.NewRepository(database.GetDB()))
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		notified, err := service.NotifyDue(context.Background())
		if err != nil {
			log.Printf("Installment sweep failed: %v", err)
			continue
		}
		if notified > 0 {
			log.Printf("Installment sweep sent %d reminders", notified)
		}
	}
}
