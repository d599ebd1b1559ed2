package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	api "github.com/jayenashar/livrequant-toy/internal/api/http"
	"github.com/jayenashar/livrequant-toy/internal/repository/postgres"
)

const healthMonitorInterval = 30 * time.Second

func main() {
	var app App
	var confFileName string

	flag.StringVar(&confFileName, "config", ".env", "")
	flag.Parse()

	if err := app.loadConfig(confFileName); err != nil {
		panic(err)
	}

	app.initLogger()

	if err := app.initLoki(); err != nil {
		panic(err)
	}

	if err := app.initTgBot(); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Pool = postgres.NewConnManager(*app.Config.DB, app.Logger)

	if err := app.Pool.Connect(ctx); err != nil {
		_ = app.Alert.Send(fmt.Sprintf("%s: fatal: %s", appName, err))
		app.Logger.WithError(err).Fatal("could not establish database connection")
	}

	orderRepo := postgres.NewOrderRepository(app.Pool, app.Logger)
	sessionRepo := postgres.NewSessionRepository(app.Pool, app.Config.DeviceValidationFailOpen, app.Logger)

	app.Fiber = fiber.New()

	middleware := api.NewMiddleware(app.Fiber, appName)
	middleware.UseMetrics()

	api.RegisterHTTPEndpoints(app.Fiber, orderRepo, sessionRepo, app.Logger)

	go app.monitorHealth(ctx, orderRepo)

	go func() {
		if err := app.Fiber.Listen(app.Config.HTTPAddr); err != nil {
			app.Logger.WithError(err).Error("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()

	app.Logger.Info("shutting down")

	if err := app.Fiber.Shutdown(); err != nil {
		app.Logger.WithError(err).Error("error shutting down http server")
	}

	app.Pool.Close()
}

// monitorHealth probes the ledger connection periodically. A failed
// probe may discard the pool; the next operation reconnects, so this
// only logs and alerts.
func (a *App) monitorHealth(ctx context.Context, orders postgres.OrderRepo) {
	ticker := time.NewTicker(healthMonitorInterval)
	defer ticker.Stop()

	healthy := true

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok := orders.CheckConnection(ctx)
			if ok == healthy {
				continue
			}

			healthy = ok
			if ok {
				a.Logger.Info("database connection recovered")
				_ = a.Alert.Send(fmt.Sprintf("%s: database connection recovered", appName))
			} else {
				a.Logger.Error("database connection unhealthy")
				_ = a.Alert.Send(fmt.Sprintf("%s: database connection unhealthy", appName))
			}
		}
	}
}
