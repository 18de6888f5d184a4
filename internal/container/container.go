package container

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"storefront/categorizer/internal/assignment"
	"storefront/categorizer/internal/cache"
	"storefront/categorizer/internal/client"
	"storefront/categorizer/internal/config"
	"storefront/categorizer/internal/proxy"
	"storefront/categorizer/internal/queue"
	"storefront/categorizer/internal/repository"
	"storefront/categorizer/internal/server"
	"storefront/categorizer/internal/service"
	"storefront/categorizer/internal/session"
	"storefront/categorizer/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config   *config.Config
	Taxonomy client.TaxonomyClient
	Tenant   client.TenantClient
	Journal  repository.AssignmentJournal
	Queue    queue.Queue
	Sessions *session.Manager

	Service *service.Service
	Server  *server.Server

	cache *cache.Cache
	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	log.SetLevel(level)

	container := &Container{
		Config: cfg,
	}

	proxySupplier := proxy.NewProxySupplier(ctx, cfg.API.Proxies, cfg.API.BaseURL+"/healthz")

	container.cache, err = cache.New(cfg.Cache.MaxCostBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	container.Taxonomy = cache.NewTaxonomyClient(
		client.NewTaxonomyClient(cfg.API, proxySupplier),
		container.cache,
		time.Duration(cfg.Cache.BrowseTTL)*time.Second,
	)
	container.Tenant = cache.NewTenantClient(
		client.NewTenantClient(cfg.API, proxySupplier),
		container.cache,
		time.Duration(cfg.Cache.TenantCategories)*time.Second,
	)

	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	container.db = db

	journal := repository.NewAssignmentJournal(db)
	if err := journal.Migrate(ctx); err != nil {
		container.Close()
		return nil, err
	}
	container.Journal = journal

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})
	container.redis = rdb

	// Test connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("✅ Connected to Redis successfully")

	redisQueue, err := queue.NewRedisQueue(ctx, rdb, cfg.Redis.ConsumerGroup)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.Queue = redisQueue

	sessionTTL := time.Duration(cfg.Assignment.SessionTTL) * time.Second
	container.Sessions = session.NewManager(assignment.Deps{
		Taxonomy:   container.Taxonomy,
		Categories: container.Tenant,
		Assigner:   container.Tenant,
		Publisher:  redisQueue,
	}, assignment.Options{
		Debounce:       time.Duration(cfg.Assignment.DebounceMS) * time.Millisecond,
		MinQueryLength: cfg.Assignment.MinQueryLength,
		SearchLimit:    cfg.Assignment.SearchLimit,
	}, state.NewRedisSessionStore(rdb, sessionTTL), sessionTTL)

	container.Service = service.NewService(
		journal,
		redisQueue,
		cfg.Redis.ConsumerGroup,
		cfg.Redis.MinIdleTime,
		cfg.Redis.MaxDeliveries,
	)

	container.Server = server.New(cfg.Server, container.Sessions)

	return container, nil
}

// Run serves the session API and drains the event streams until ctx is done.
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Server.Run(ctx)
	})

	g.Go(func() error {
		return c.Service.RunWorkers(ctx, c.Config.Redis.Workers)
	})

	// Reap at a fraction of the ttl so idle sessions do not outlive it by much
	g.Go(func() error {
		interval := max(time.Second, time.Duration(c.Config.Assignment.SessionTTL)*time.Second/10)
		return c.Sessions.Run(ctx, interval)
	})

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if c.Taxonomy != nil {
		_ = c.Taxonomy.Close()
	}
	if c.Tenant != nil {
		_ = c.Tenant.Close()
	}
	if c.cache != nil {
		c.cache.Close()
	}
	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}

	log.Info("Container shut down successfully")
	return nil
}
