package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"product-composite/internal/config"
	"product-composite/internal/kstream"
	"product-composite/internal/logger"
	"product-composite/internal/model"
)

// composite-events tails the entity topics and logs every event, which is
// handy to watch what the composite emits.
func main() {
	cfg, _ := config.Load()

	zl, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handle := func(_ context.Context, topic string, env kstream.Envelope) error {
		zl.Info("event received",
			"topic", topic,
			"type", env.Type,
			"key", env.Key,
			"createdAt", env.CreatedAt,
			"payload", string(env.Payload))
		return nil
	}

	var wg sync.WaitGroup
	for _, topic := range []string{model.ChannelProducts, model.ChannelRecommendations, model.ChannelReviews} {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			r := kstream.NewReader(cfg.KafkaBroker, topic, "composite-events")
			defer r.Close()
			zl.Info("consuming", "topic", topic, "broker", cfg.KafkaBroker)
			if err := kstream.Consume(ctx, r, handle, zl.With("topic", topic)); err != nil {
				zl.Error("consumer stopped", "topic", topic, "error", err)
			}
		}(topic)
	}
	wg.Wait()
}
