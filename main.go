// harvestbasket/main.go

package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/norun9/harvestbasket/cartstore"
	"github.com/norun9/harvestbasket/catalog"
	"github.com/norun9/harvestbasket/checkout"
	"github.com/norun9/harvestbasket/services"
)

const (
	serviceName     = "harvestbasket"
	shutdownTimeout = 10 * time.Second
	initTimeout     = 2 * time.Minute
)

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.Level = logrus.InfoLevel
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
}

func main() {
	var cfg config
	kong.Parse(&cfg,
		kong.Name(serviceName),
		kong.Description("Storefront API for the Harvest Basket organic grocery."),
	)
	log.SetLevel(cfg.logLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ----------------------------------------------------------------
	// 1) Initialize OpenTelemetry TracerProvider.
	if cfg.EnableTracing {
		tp, err := initTracerProvider(ctx, cfg.OTLPEndpoint)
		if err != nil {
			log.WithField("error", err).Fatal("failed to initialize tracer provider")
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.WithField("error", err).Warn("error shutting down tracer provider")
			}
		}()
		log.WithField("endpoint", cfg.OTLPEndpoint).Info("tracing enabled")
	}
	// ----------------------------------------------------------------

	// ----------------------------------------------------------------
	// 2) Open the cart backend and the session registry.
	backend, err := cfg.cartBackend(log)
	if err != nil {
		log.WithField("error", err).Fatal("failed to create cart backend")
	}
	defer backend.Close()

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	err = backend.Initialize(initCtx)
	cancel()
	if err != nil {
		log.WithField("error", err).WithField("backend", cfg.CartBackend).Fatal("failed to initialize cart backend")
	}

	carts, err := cartstore.NewRegistry(backend, cfg.CartNamespace, cfg.MaxSessions, log)
	if err != nil {
		log.WithField("error", err).Fatal("failed to create cart registry")
	}
	log.WithField("backend", cfg.CartBackend).WithField("namespace", carts.Namespace()).Info("cart store ready")
	// ----------------------------------------------------------------

	// ----------------------------------------------------------------
	// 3) Wire catalog, checkout and recommendations.
	cat := catalog.NewClient(cfg.BackendURL, cfg.BackendAnonKey, nil)
	payments := checkout.NewFunctionsClient(cfg.BackendURL, cfg.BackendAnonKey, nil)
	co := checkout.NewService(payments, cat,
		checkout.WithCurrency(cfg.Currency),
		checkout.WithDeliveryPolicy(cfg.deliveryPolicy()),
		checkout.WithLogger(log),
	)
	rec := services.NewRecommendationService(cat, log)
	storefront := services.NewStorefrontServer(log, carts, cat, co, rec)
	// ----------------------------------------------------------------

	// ----------------------------------------------------------------
	// 4) Start the gRPC health server.
	lis, err := net.Listen("tcp", ":"+cfg.HealthPort)
	if err != nil {
		log.WithField("error", err).Fatalf("failed to listen on :%s", cfg.HealthPort)
	}
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthpb.RegisterHealthServer(grpcServer, services.NewHealthCheckService(backend))
	go func() {
		log.Infof("health server listening on :%s", cfg.HealthPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.WithField("error", err).Error("health server stopped")
		}
	}()
	// ----------------------------------------------------------------

	// ----------------------------------------------------------------
	// 5) Serve the storefront API until a shutdown signal arrives.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           storefront.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		log.Info("received shutdown signal, initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithField("error", err).Warn("forcing HTTP connections closed")
			_ = httpServer.Close()
		}
		stopGRPC(grpcServer, shutdownTimeout)
	}()

	log.Infof("storefront listening on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithField("error", err).Fatal("failed to serve HTTP")
	}
	// ----------------------------------------------------------------
}

// stopGRPC stops gracefully, or hard once timeout passes with health watchers still attached.
func stopGRPC(s *grpc.Server, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.Stop()
	}
}

// initTracerProvider initializes an OpenTelemetry TracerProvider and sets up the OTLP exporter.
// Example endpoint: otel-collector:4317
func initTracerProvider(ctx context.Context, endpoint string) (*sdktrace.TracerProvider, error) {
	// 1) Configure OTLP gRPC exporter.
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create OTLP exporter")
	}

	// 2) Set up resource information (service name, version, etc.).
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("v1.0.0"),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create resource")
	}

	// 3) Build TracerProvider.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	// 4) Configure to use W3C Trace Context.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}
