package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/karakol/delivery/internal/dal/postgres"
	"github.com/karakol/delivery/internal/dal/rabbitmq"
	"github.com/karakol/delivery/internal/dal/redis"
	"github.com/karakol/delivery/internal/dal/uow"
	"github.com/karakol/delivery/internal/geo"
	"github.com/karakol/delivery/internal/jaeger"
	"github.com/karakol/delivery/internal/service/services/dispatchsvc"
	"github.com/karakol/delivery/internal/service/services/ordersvc"
	httptransport "github.com/karakol/delivery/internal/transport/http"
	dispatchworker "github.com/karakol/delivery/internal/worker/dispatch"
	outboxworker "github.com/karakol/delivery/internal/worker/outbox"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// App represents the application.
type App struct {
	orderSvc    *ordersvc.OrderService
	dispatchSvc *dispatchsvc.Service
	transport   *httptransport.HTTPTransport

	outboxWorker   *outboxworker.Worker
	dispatchWorker *dispatchworker.Worker

	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	redisClient    *redis.Client
	tracerProvider *sdktrace.TracerProvider
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	tracerProvider := jaeger.MustSetup()

	postgresClient := postgres.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()
	redisClient := redis.MustNewClient()

	uowFactory := uow.NewFactory(postgresClient)

	dispatchSvc := dispatchsvc.MustNewService(
		dispatchsvc.WithUnitOfWorkFactory(uowFactory),
		dispatchsvc.WithSnapshotCache(redisClient),
	)

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithUnitOfWorkFactory(uowFactory),
		ordersvc.WithDispatcher(dispatchSvc),
		ordersvc.WithDistanceProvider(geo.NewMatrixClient()),
		ordersvc.WithSnapshotCache(redisClient),
	)

	transport := httptransport.NewHTTPTransport(orderSvc, dispatchSvc)
	transport.RegisterRoutes()

	return &App{
		orderSvc:       orderSvc,
		dispatchSvc:    dispatchSvc,
		transport:      transport,
		outboxWorker:   outboxworker.NewWorker(uowFactory().Outbox(), rabbitClient),
		dispatchWorker: dispatchworker.NewWorker(uowFactory, dispatchSvc),
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
		redisClient:    redisClient,
		tracerProvider: tracerProvider,
	}
}

// Run starts the application and blocks until an interrupt signal arrives,
// then shuts everything down gracefully.
func (a *App) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.outboxWorker.Start(gctx)

		return nil
	})
	g.Go(func() error {
		a.dispatchWorker.Start(gctx)

		return nil
	})

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.transport.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	cancel()
	if err := g.Wait(); err != nil {
		slog.Error("Worker shutdown error", "error", err)
	}

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	}
	if err := a.redisClient.Close(); err != nil {
		slog.Error("Redis connection close error", "error", err)
	}
	a.postgresClient.Close()

	if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
