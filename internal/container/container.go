package container

import (
	"context"
	"fmt"

	"relief-dao/internal/config"
	"relief-dao/internal/engine"
	"relief-dao/internal/repository"
	"relief-dao/internal/service"
	"relief-dao/internal/service/auth"
	"relief-dao/pkg/database"
	"relief-dao/pkg/logger"
	"relief-dao/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           *database.PostgresDB
	RedisClient  *redis.Client
	Repositories *repository.Repositories
	Registry     *engine.Registry
	Cache        *service.CacheService
	Services     *service.Services
}

// New creates a new dependency injection container. Postgres and Redis are
// optional: without a database units live in memory, without Redis nothing is
// cached and wallet sign-in is unavailable.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: log,
	}

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Redis client, proceeding without caching")
		} else {
			c.RedisClient = client
			log.Info("Redis client initialized successfully")
		}
	} else {
		log.Info("Redis URL not configured, proceeding without caching")
	}

	var unitRepo repository.UnitRepository
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = db
		unitRepo = repository.NewPostgresUnitRepository(db)
		log.Info("Using PostgreSQL unit store")
	} else {
		unitRepo = repository.NewMemoryUnitRepository()
		log.Warn("DATABASE_URL not configured, units are kept in memory only")
	}
	c.Repositories = &repository.Repositories{Unit: unitRepo}

	c.Registry = engine.NewRegistry(engine.SystemClock{}, unitRepo)
	restored, err := c.Registry.Restore(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to restore event units: %w", err)
	}
	log.WithField("units", restored).Info("Event units restored")

	c.Cache = service.NewCacheService(c.RedisClient, log.Logger)

	events := service.NewEventService(c.Registry, unitRepo, c.Cache, log, service.Limits{
		MinLifetime:     cfg.MinLifetime,
		MaxLifetime:     cfg.MaxLifetime,
		DefaultDecimals: cfg.DefaultDecimals,
	})

	c.Services = &service.Services{
		Auth: auth.NewService(c.RedisClient, auth.Config{
			JWTSecret:    cfg.JWTSecret,
			TokenTTL:     cfg.TokenTTL,
			ChallengeTTL: cfg.ChallengeTTL,
		}, log),
		Events:  events,
		Monitor: service.NewSettlementMonitor(events, log, cfg.SettlementSweepInterval),
	}

	return c, nil
}

// GetAuthService returns the auth service
func (c *Container) GetAuthService() service.AuthService {
	return c.Services.Auth
}

// GetEventService returns the event service
func (c *Container) GetEventService() *service.EventService {
	return c.Services.Events
}

// GetSettlementMonitor returns the background settlement monitor
func (c *Container) GetSettlementMonitor() service.SettlementMonitor {
	return c.Services.Monitor
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// HasDatabase returns true if units are persisted to PostgreSQL
func (c *Container) HasDatabase() bool {
	return c.DB != nil
}

// Close releases the Redis client and the database pool
func (c *Container) Close() error {
	var firstErr error
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			firstErr = fmt.Errorf("redis close: %w", err)
		}
		c.RedisClient = nil
	}
	if c.DB != nil {
		c.DB.Close()
		c.DB = nil
	}
	return firstErr
}
