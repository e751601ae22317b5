// Package config provides a type-safe, generic way to load application
// configuration from environment variables.
//
// It wraps `github.com/joho/godotenv` and `github.com/caarlos0/env/v11`:
// the default `.env` file in the working directory is loaded once per
// process (a missing file is fine), then the environment is parsed into
// any Go struct using `env` field tags.
//
// # Usage
//
// Create a struct describing your configuration and annotate its fields
// with `env` tags:
//
//	type QueueConfig struct {
//	    Dir           string        `env:"QUEUE_DIR" envDefault:"./data/queue"`
//	    MaxConcurrent int           `env:"QUEUE_MAX_CONCURRENT" envDefault:"3"`
//	    SendTimeout   time.Duration `env:"QUEUE_SEND_TIMEOUT" envDefault:"60s"`
//	}
//
//	var cfg QueueConfig
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// MustLoad panics on failure, for configuration the process cannot start
// without:
//
//	var cfg QueueConfig
//	config.MustLoad(&cfg)
package config
