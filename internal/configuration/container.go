package configuration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Flort/internal/analytics"
	"Flort/internal/db"
	"Flort/internal/escalation"
	"Flort/internal/event"
	"Flort/internal/feature"
	"Flort/internal/handler"
	"Flort/internal/hub"
	"Flort/internal/location"
	"Flort/internal/metrics"
	"Flort/internal/notification"
	"Flort/internal/repo"
	"Flort/internal/service"
	"Flort/internal/status"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Container struct {
	ConversationHandler handler.ConversationHandler
	NotificationHandler handler.NotificationHandler
	EscalationHandler   handler.EscalationHandler
	MonitorHandler      handler.MonitorHandler

	Hub           *hub.Hub
	Broker        *event.Broker
	Locations     *location.Registry
	Signal        *escalation.Signal
	Notifications *notification.Center
	Digest        *escalation.Digest
	Metrics       *metrics.Metrics
	Config        Config
	Logger        *zap.Logger

	// private - for cleanup
	mongoClient   *mongo.Database
	locationStore *location.PebbleStore
	stopDigest    context.CancelFunc
}

// NewLogger builds the process logger from the log section
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func BuildContainer(config *Config) (*Container, error) {
	logger, err := NewLogger(config.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	c := &Container{Config: *config, Logger: logger}
	if err := c.build(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build() error {
	cfg, logger := c.Config, c.Logger

	c.Metrics = metrics.New()
	c.Broker = event.NewBroker(logger, c.Metrics)
	gate := feature.New(cfg.Features, logger)

	var (
		messages      repo.MessageStore
		conversations repo.ConversationStore
	)
	if cfg.Mongo.Uri != "" {
		con, err := db.OpenConnection(cfg.Mongo.Uri, cfg.Mongo.Database)
		if err != nil {
			return fmt.Errorf("connect to mongo: %w", err)
		}
		c.mongoClient = con
		messages = repo.NewMessageRepository(con, logger)
		conversations = repo.NewConversationRepository(con, logger)
		logger.Info("using mongo storage", zap.String("database", cfg.Mongo.Database))
	} else {
		messages = repo.NewMemoryMessageStore()
		conversations = repo.NewMemoryConversationStore()
		logger.Warn("mongo uri not configured, conversations are kept in memory")
	}

	locationOpts := []location.Option{location.WithRecorder(c.Metrics)}
	if cfg.Storage.LocationsPath != "" {
		store, err := location.OpenPebbleStore(cfg.Storage.LocationsPath)
		if err != nil {
			return fmt.Errorf("open location store: %w", err)
		}
		c.locationStore = store
		locationOpts = append(locationOpts, location.WithPersister(store))
	}
	locations, err := location.NewRegistry(c.Broker.LocationChanged, logger, locationOpts...)
	if err != nil {
		return fmt.Errorf("load locations: %w", err)
	}
	c.Locations = locations

	statuses := status.NewStore(c.Broker.StatusUpdated, logger, status.WithFallbackCounter(c.Metrics))
	c.Signal = escalation.NewSignal(locations, statuses, c.Broker, c.Metrics, logger)
	c.Notifications = notification.NewCenter(gate, c.Broker, logger)
	tracker := analytics.NewTracker(gate, c.Metrics, logger)

	c.Digest, err = escalation.NewDigest(cfg.Escalation.DigestCron, c.Signal, c.Notifications, gate, logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.stopDigest = cancel
	c.Digest.Start(ctx)

	svc := service.NewConversationService(service.Dependencies{
		Messages:      messages,
		Conversations: conversations,
		Statuses:      statuses,
		Locations:     locations,
		Policy:        escalation.NewPolicy(cfg.Escalation.UnansweredThreshold, gate),
		Notifications: c.Notifications,
		Tracker:       tracker,
		Gate:          gate,
		Broker:        c.Broker,
		Logger:        logger,
	})

	c.Hub = hub.NewHub(c.Broker, cfg.Server.AllowedOrigins, logger)
	monitor := hub.NewMonitorService(c.Hub, c.Broker, locations, c.Signal, c.Notifications)

	c.ConversationHandler = handler.NewConversationHandler(svc)
	c.NotificationHandler = handler.NewNotificationHandler(c.Notifications)
	c.EscalationHandler = handler.NewEscalationHandler(c.Signal)
	c.MonitorHandler = handler.NewMonitorHandler(monitor)
	return nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	var errs []error

	if c.stopDigest != nil {
		c.stopDigest()
	}

	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}
	if c.Signal != nil {
		c.Signal.Close()
	}

	if c.locationStore != nil {
		if err := c.locationStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close location store: %w", err))
		}
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close MongoDB connection: %w", err))
		}
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	return errors.Join(errs...)
}
