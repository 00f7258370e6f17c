// Package config provides configuration loading and validation for the
// workflow services.
//
// It uses Viper to load configuration from a config.yml plus .env files and
// environment variables. Services embed ServiceConfig in their own config
// struct and load it with LoadConfig:
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Database database.Config `yaml:"database" mapstructure:"database"`
//	}
//
//	var cfg Config
//	err := config.LoadConfig("aspen", &cfg)
//
// Environment variables override file values; DATABASE_DSN binds to
// database.dsn and so on.
package config
