// Package config loads typed configuration from environment variables and
// optional .env files.
//
// It wraps github.com/joho/godotenv (file loading) and
// github.com/caarlos0/env/v11 (struct parsing via `env` / `envDefault`
// tags). Every package that needs settings ships a Config struct with tags;
// the command wires them together:
//
//	if err := config.LoadEnv(".env.production"); err != nil {
//	    return err
//	}
//	var table provision.Config
//	if err := config.Load(&table); err != nil {
//	    return err
//	}
//
// Parsed values are cached per type for the life of the process. Tests can
// call ResetCache or ForceReload after changing the environment.
//
// Errors can be matched with errors.Is: ErrParsingConfig,
// ErrLoadingEnvFile, ErrNilPointer.
package config
