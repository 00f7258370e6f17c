package bootstrap

import (
	"github.com/josephdodge8141/aspen-backend/config"
)

// Config is the interface for application configuration types. Any struct
// that embeds config.ServiceConfig (value embedding) automatically satisfies
// this interface via promoted methods.
//
// Example:
//
//	type MyConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Database database.Config `yaml:"database" mapstructure:"database"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
