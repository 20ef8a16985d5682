package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// cache holds one parsed copy per configuration type.
var cache = struct {
	mu     sync.RWMutex
	values map[reflect.Type]any
}{values: make(map[reflect.Type]any)}

var defaultEnvLoaded sync.Once

// LoadEnv reads the given .env files (or ./.env when none are given) into the
// process environment. Later files override earlier ones; variables already
// set in the environment are overridden too, so the files are authoritative.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		if err := godotenv.Overload(); err != nil {
			return errors.Join(ErrLoadingEnvFile, err)
		}
		return nil
	}
	for _, p := range paths {
		if err := godotenv.Overload(p); err != nil {
			return errors.Join(ErrLoadingEnvFile, fmt.Errorf("%s: %w", p, err))
		}
	}
	return nil
}

// MustLoadEnv works like LoadEnv but panics on failure.
func MustLoadEnv(paths ...string) {
	if err := LoadEnv(paths...); err != nil {
		panic(err)
	}
}

// Load parses environment variables into v using `env` struct tags.
// Each configuration type is parsed once; later calls return the cached copy.
// A missing ./.env file is not an error.
//
//	var cfg provision.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	key := reflect.TypeFor[T]()

	cache.mu.RLock()
	cached, ok := cache.values[key]
	cache.mu.RUnlock()
	if ok {
		*v = cached.(T)
		return nil
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cached, ok := cache.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache.values[key] = parsed
	*v = parsed
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// ForceReload drops the cached copy of T and parses it again.
func ForceReload[T any](v *T) error {
	cache.mu.Lock()
	delete(cache.values, reflect.TypeFor[T]())
	cache.mu.Unlock()
	return Load(v)
}

// ResetCache drops every cached configuration. Intended for tests.
func ResetCache() {
	cache.mu.Lock()
	cache.values = make(map[reflect.Type]any)
	cache.mu.Unlock()
}
