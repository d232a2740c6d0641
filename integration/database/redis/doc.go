// Package redis provides Redis client initialization and health checking for
// the shared store and message channel backends.
//
// Connect validates the connection URL, retries transient failures with
// backoff, and verifies connectivity with a ping before returning the client:
//
//	cfg := redis.Config{ConnectionURL: "redis://localhost:6379/0"}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Healthcheck returns a probe function suitable for readiness endpoints:
//
//	check := redis.Healthcheck(client)
//	if err := check(ctx); err != nil {
//		// Redis unhealthy
//	}
//
// Both redis:// and rediss:// (TLS) URL schemes are supported. Errors wrap
// the underlying go-redis errors behind stable sentinel types checkable with
// errors.Is.
package redis
