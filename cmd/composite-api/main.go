package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"product-composite/internal/composite"
	"product-composite/internal/config"
	"product-composite/internal/facade"
	"product-composite/internal/httpapi"
	"product-composite/internal/kstream"
	"product-composite/internal/logger"
	"product-composite/internal/observability"
	"product-composite/internal/rabbit"
	"product-composite/internal/resilience"
)

const version = "1.0.0"

type eventPublisher interface {
	composite.Publisher
	Close() error
}

type nopPublisher struct{ composite.NopPublisher }

func (nopPublisher) Close() error { return nil }

func main() {
	cfg, envLoaded := config.Load()

	zl, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()
	if !envLoaded {
		zl.Debug("no .env file found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitTracing(ctx, zl, observability.TracingConfig{
		ServiceName: "product-composite",
		Version:     version,
	})

	var stats resilience.Stats = resilience.NopStats{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zl.Warn("redis unavailable, breaker stats will be dropped", "addr", cfg.RedisAddr, "error", err)
		}
		stats = resilience.NewRedisStats(rdb, zl)
	}

	publisher, err := newPublisher(cfg, zl)
	if err != nil {
		zl.Error("failed to set up event publisher", "broker", cfg.EventBroker, "error", err)
		os.Exit(1)
	}

	svc := composite.NewService(composite.Options{
		Products:             facade.NewProduct(facade.Options{BaseURL: cfg.Product.BaseURL, Timeout: cfg.Product.Timeout, Logger: zl}),
		Recommendations:      facade.NewRecommendation(facade.Options{BaseURL: cfg.Recommendation.BaseURL, Timeout: cfg.Recommendation.Timeout, Logger: zl}),
		Reviews:              facade.NewReview(facade.Options{BaseURL: cfg.Review.BaseURL, Timeout: cfg.Review.Timeout, Logger: zl}),
		ProductPolicy:        newPolicy(cfg, facade.DependencyProduct, cfg.Product, stats, zl),
		RecommendationPolicy: newPolicy(cfg, facade.DependencyRecommendation, cfg.Recommendation, stats, zl),
		ReviewPolicy:         newPolicy(cfg, facade.DependencyReview, cfg.Review, stats, zl),
		Publisher:            publisher,
		ServiceAddress:       cfg.ServiceAddress(),
		AggregateTimeout:     cfg.AggregateTimeout,
		Logger:               zl,
	})

	handler := httpapi.NewHandler(svc, svc.Policies(), zl)
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(handler, cfg.RateLimitRPS, cfg.RateLimitBurst),
	}

	l, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		zl.Error("failed to listen", "addr", cfg.HTTPAddr, "error", err)
		os.Exit(1)
	}

	zl.Info("product composite listening", "addr", cfg.HTTPAddr, "broker", cfg.EventBroker, "serviceAddress", cfg.ServiceAddress())
	if err := serve(ctx, server, l, cfg.ShutdownTimeout, zl, closeWith(publisher.Close), shutdownTracing); err != nil {
		zl.Error("server error", "error", err)
		os.Exit(1)
	}
	zl.Info("shutdown complete")
}

// serve runs srv on l until ctx is done, then drains in-flight requests and
// runs cleanup in order. It returns only once all of that has finished.
func serve(ctx context.Context, srv *http.Server, l net.Listener, timeout time.Duration, log logger.Logger, cleanup ...func(context.Context) error) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn("failed to drain http server", "error", err)
		}
		for _, fn := range cleanup {
			if err := fn(sctx); err != nil {
				log.Warn("shutdown step failed", "error", err)
			}
		}
	}()

	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

func closeWith(fn func() error) func(context.Context) error {
	return func(context.Context) error { return fn() }
}

func newPolicy(cfg config.Config, name string, dep config.Dependency, stats resilience.Stats, log logger.Logger) *resilience.Policy {
	return resilience.NewPolicy(resilience.Options{
		Name:    name,
		Timeout: dep.Timeout,
		Breaker: resilience.BreakerSettings{
			Window:        cfg.Breaker.Window,
			FailureRate:   cfg.Breaker.FailureRate,
			MinRequests:   cfg.Breaker.MinRequests,
			OpenCooldown:  cfg.Breaker.OpenCooldown,
			HalfOpenCalls: cfg.Breaker.HalfOpenCalls,
		},
		ReadAttempts: cfg.ReadRetryAttempts,
		ReadBackoff:  cfg.ReadRetryBackoff,
		Stats:        stats,
		Logger:       log,
	})
}

func newPublisher(cfg config.Config, log logger.Logger) (eventPublisher, error) {
	switch cfg.EventBroker {
	case "kafka":
		return kstream.NewPublisher(cfg.KafkaBroker, log), nil
	case "rabbitmq":
		p, err := rabbit.Dial(cfg.RabbitMQURL, log)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "none":
		return nopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown EVENT_BROKER %q", cfg.EventBroker)
	}
}
