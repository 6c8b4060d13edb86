package redisclient

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const clientName = "app-credentialing"

// Client wraps a Redis client with OpenTelemetry tracing
type Client struct {
	cmdable redis.Cmdable
}

// NewClient creates a new traced Redis client for single Redis instance
func NewClient(client *redis.Client) *Client {
	return &Client{cmdable: client}
}

// startSpan opens a redis span with the common attributes
func startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	attrs = append(attrs,
		attribute.String("redis.operation", operation),
		attribute.String("redis.client", clientName),
	)
	ctx, span := otel.Tracer("redis").Start(ctx, "redis."+operation, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

// endSpan records timing and outcome; redis.Nil is a normal miss, not an error
func endSpan(span trace.Span, start time.Time, err error) {
	duration := time.Since(start)
	span.SetAttributes(
		attribute.Int64("redis.duration_ms", duration.Milliseconds()),
		attribute.String("redis.duration", duration.String()),
	)
	if err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("redis.error", err.Error()))
	} else {
		span.SetStatus(codes.Ok, "success")
	}
	span.End()
}

// Get wraps Redis Get with tracing
func (c *Client) Get(ctx context.Context, key string) *redis.StringCmd {
	ctx, span, start := startSpan(ctx, "get", attribute.String("redis.key", key))
	cmd := c.cmdable.Get(ctx, key)
	endSpan(span, start, cmd.Err())
	return cmd
}

// SetNX wraps Redis SET NX with an expiration, used for lease-style locks
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	ctx, span, start := startSpan(ctx, "setnx",
		attribute.String("redis.key", key),
		attribute.String("redis.expiration", expiration.String()),
	)
	cmd := c.cmdable.SetNX(ctx, key, value, expiration)
	endSpan(span, start, cmd.Err())
	if cmd.Err() == nil {
		span.SetAttributes(attribute.Bool("redis.acquired", cmd.Val()))
	}
	return cmd
}

// Del wraps Redis Del with tracing
func (c *Client) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	ctx, span, start := startSpan(ctx, "del",
		attribute.StringSlice("redis.keys", keys),
		attribute.Int("redis.key_count", len(keys)),
	)
	cmd := c.cmdable.Del(ctx, keys...)
	endSpan(span, start, cmd.Err())
	return cmd
}

// EvalScript runs a Lua script, preferring the cached SHA
func (c *Client) EvalScript(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) *redis.Cmd {
	ctx, span, start := startSpan(ctx, "eval",
		attribute.StringSlice("redis.keys", keys),
		attribute.String("redis.script_sha", script.Hash()),
	)
	cmd := script.Run(ctx, c.cmdable, keys, args...)
	endSpan(span, start, cmd.Err())
	return cmd
}

// Ping wraps Redis Ping with tracing
func (c *Client) Ping(ctx context.Context) *redis.StatusCmd {
	ctx, span, start := startSpan(ctx, "ping")
	cmd := c.cmdable.Ping(ctx)
	endSpan(span, start, cmd.Err())
	return cmd
}

// Info wraps Redis Info with tracing
func (c *Client) Info(ctx context.Context, section ...string) *redis.StringCmd {
	ctx, span, start := startSpan(ctx, "info", attribute.StringSlice("redis.sections", section))
	cmd := c.cmdable.Info(ctx, section...)
	endSpan(span, start, cmd.Err())
	return cmd
}

// Close releases the underlying connection pool
func (c *Client) Close() error {
	if closer, ok := c.cmdable.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
