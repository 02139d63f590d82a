// Package redis implements the lock, rate-limit and signal-bus interfaces on
// go-redis/v9 so several pipeline processes can share them.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key, channel and stream when none is
// configured.
const DefaultNamespace = "scte"

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	// Namespace separates deployments sharing one Redis, e.g. "scte-staging".
	Namespace string
}

// Client wraps a go-redis Client and the key namespace of this deployment.
// Pipeline nodes must share a namespace to share locks and events.
type Client struct {
	rdb *redis.Client
	ns  string
}

func namespace(ns string) string {
	ns = strings.Trim(strings.TrimSpace(ns), ":")
	if ns == "" {
		return DefaultNamespace
	}
	return ns
}

// New connects and pings Redis.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb, ns: namespace(cfg.Namespace)}, nil
}

// NewFromRedis wraps an existing driver client, e.g. one pointed at a test
// server.
func NewFromRedis(rdb *redis.Client, ns string) *Client {
	return &Client{rdb: rdb, ns: namespace(ns)}
}

// Namespace returns the key prefix in use.
func (c *Client) Namespace() string {
	return c.ns
}

// Key builds a namespaced key such as "scte:lock:auction:<id>".
func (c *Client) Key(kind, id string) string {
	return c.ns + ":" + kind + ":" + id
}

// Name namespaces a bus channel or stream name. Glob patterns stay valid.
func (c *Client) Name(name string) string {
	return c.ns + ":" + name
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw *redis.Client.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
