// Package di wires the statement cache components together. It owns the
// public configuration surface and the backend selection, so hosts never
// import internal packages directly.
package di

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/internal/cacheinfra"
	"github.com/goliatone/go-statement-cache/statementcache"
)

// Config holds the store configuration exposed to hosts. It mirrors the
// internal backend configuration one to one.
type Config struct {
	// Capacity is the maximum number of entries the in-memory store holds.
	Capacity int

	// NumShards is the shard count for concurrent access.
	NumShards int

	// TTL is the backend-level upper bound on entry lifetime.
	TTL time.Duration

	// EvictionPercentage is the share of entries evicted when the store
	// reaches capacity, between 1 and 100.
	EvictionPercentage int

	// EvictionInterval sets how often expired entries are collected.
	// Zero uses the backend default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	internal := cacheinfra.DefaultConfig()
	return Config{
		Capacity:           internal.Capacity,
		NumShards:          internal.NumShards,
		TTL:                internal.TTL,
		EvictionPercentage: internal.EvictionPercentage,
		EvictionInterval:   internal.EvictionInterval,
	}
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

// Container provides dependency injection for the statement cache. It
// manages singleton instances of the store and key builder, and provides
// a factory for wiring coordinators over them.
type Container struct {
	store      cache.Store
	keyBuilder cache.KeyBuilder
	config     Config
	logger     zerolog.Logger
}

// Option customizes container construction.
type Option func(*Container)

// WithLogger sets the logger used by the store and every coordinator the
// container creates.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// WithStore overrides the store backend. The Config store settings are
// ignored when this option is used.
func WithStore(store cache.Store) Option {
	return func(c *Container) {
		c.store = store
	}
}

// WithKeyBuilder overrides the default key builder.
func WithKeyBuilder(kb cache.KeyBuilder) Option {
	return func(c *Container) {
		c.keyBuilder = kb
	}
}

// NewContainer creates a new DI container with the provided configuration.
// Unless WithStore overrides it, the container initializes the in-memory
// store backend and validates the configuration.
func NewContainer(config Config, opts ...Option) (*Container, error) {
	c := &Container{
		config:     config,
		keyBuilder: cache.NewDefaultKeyBuilder(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		store, err := cacheinfra.NewSturdycStore(config.toInternal(), c.logger)
		if err != nil {
			return nil, err
		}
		c.store = store
	}

	return c, nil
}

// NewContainerWithDefaults creates a new DI container using default
// configuration. This is a convenience constructor for typical use cases
// where custom configuration is not required.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(DefaultConfig(), opts...)
}

// NewRedisContainer creates a container backed by a shared Redis store
// instead of the in-memory backend. The Config store sizing fields are not
// used; expiration is enforced through per-entry TTLs on the Redis side.
func NewRedisContainer(client *redis.Client, opts ...Option) (*Container, error) {
	c := &Container{
		config:     DefaultConfig(),
		keyBuilder: cache.NewDefaultKeyBuilder(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		store, err := cacheinfra.NewRedisStore(client, c.logger)
		if err != nil {
			return nil, err
		}
		c.store = store
	}

	return c, nil
}

// Store returns the singleton store instance. This allows access to the
// underlying store for advanced use cases.
func (c *Container) Store() cache.Store {
	return c.store
}

// KeyBuilder returns the singleton key builder instance.
func (c *Container) KeyBuilder() cache.KeyBuilder {
	return c.keyBuilder
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config {
	return c.config
}

// NewCoordinator wires a coordinator over the container's store and key
// builder. Each call produces an independent coordinator with its own lock
// manager and transaction ledger.
func (c *Container) NewCoordinator(
	executor statementcache.Executor,
	facts statementcache.FactsProvider,
	policy statementcache.Policy,
	registry statementcache.Registry,
) *statementcache.Coordinator {
	return statementcache.New(executor, facts, policy, registry, c.store,
		statementcache.WithLogger(c.logger),
		statementcache.WithKeyBuilder(c.keyBuilder),
	)
}
