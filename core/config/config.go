// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package automatically loads .env files on first use and uses the
// caarlos0/env library for parsing environment variables into struct fields.
//
// Basic usage:
//
//	type RedisConfig struct {
//		URL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
//	}
//
//	var cfg RedisConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
package config

import (
	"errors"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrNilConfig is returned when Load receives a nil pointer.
	ErrNilConfig = errors.New("config: nil config pointer")
	// ErrParseFailed is returned when environment parsing fails.
	ErrParseFailed = errors.New("config: failed to parse environment")
)

var (
	dotenvOnce sync.Once

	cacheMu sync.RWMutex
	cache   = make(map[reflect.Type]any)
)

// Load populates cfg from environment variables, loading .env on first use.
// Each configuration type is parsed once per process; later calls return the
// cached value.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilConfig
	}

	// Missing .env is the normal case outside development.
	dotenvOnce.Do(func() { _ = godotenv.Load() })

	t := reflect.TypeOf(*cfg)

	cacheMu.RLock()
	if cached, ok := cache[t]; ok {
		cacheMu.RUnlock()
		*cfg = cached.(T)
		return nil
	}
	cacheMu.RUnlock()

	if err := env.Parse(cfg); err != nil {
		return errors.Join(ErrParseFailed, err)
	}

	cacheMu.Lock()
	cache[t] = *cfg
	cacheMu.Unlock()

	return nil
}

// MustLoad is Load that panics on failure. Intended for process startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
