package main

import (
	"context"

	"rinkside/internal/booking"
	"rinkside/internal/directory"
	"rinkside/internal/events/handler"
	"rinkside/internal/events/repository"
	"rinkside/pkg/app"
	"rinkside/pkg/config"
	"rinkside/pkg/notify"
)

func main() {
	cfg := config.Load("scheduler")
	cfg.SetMongo()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoConnTimeout)
	defer cancel()
	if err := repository.EnsureIndexes(ctx, cfg); err != nil {
		cfg.Log.Fatal("Failed to ensure indexes", "error", err)
	}

	events := repository.NewMongoEventRepository(cfg)
	rules := repository.NewMongoRuleRepository(cfg)
	bookings := repository.NewMongoBookingRepository(cfg)
	locks := repository.NewMongoLockRepository(cfg)
	dir := directory.NewMongoDirectory(cfg)

	var notifier notify.Notifier = notify.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier, err := notify.NewKafkaNotifier(cfg)
		if err != nil {
			cfg.Log.Fatal("Failed to configure Kafka notifier", "error", err)
		}
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	} else {
		cfg.Log.Info("No Kafka brokers configured; scheduling decisions will not be published")
	}

	coordinator := booking.NewCoordinator(cfg, events, rules, bookings, locks, dir, notifier)

	application := app.NewApplication(cfg)
	application.SetApp(
		handler.NewEventHandler(coordinator, cfg.Log),
		handler.NewHealthHandler(cfg),
	)
	application.Run()
}
