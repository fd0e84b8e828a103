// Package config loads application configuration from environment variables
// into tagged structs, with optional .env file support and per-type caching.
//
// Define a struct with `env` tags and load it:
//
//	type ServerConfig struct {
//	    Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg ServerConfig
//	config.MustLoad(&cfg)
package config
