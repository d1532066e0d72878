package config

import (
	"gihan9a/modelsync/internal/model"
)

// TLSConfig holds TLS configuration options
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

// CORSConfig holds CORS configuration options
type CORSConfig struct {
	Enabled          bool
	AllowOrigins     string
	AllowMethods     string
	AllowHeaders     string
	AllowCredentials bool
	MaxAge           int
}

// Config holds the application configuration
type Config struct {
	Port       int
	ModelFile  string
	WatchModel bool
	SchemaFile string

	Reclassify        model.ReclassifyPolicy
	MaxDepth          int
	ListenerCacheSize int

	LogLevel  string
	LogFormat string

	TLS         TLSConfig
	CORS        CORSConfig
	Definitions []model.DefinitionUpdate
}

// Overrides are command line values taking precedence over the file.
// Zero values leave the file setting untouched.
type Overrides struct {
	ModelFile string
	Port      int
	LogLevel  string
}

// Apply merges the overrides into c
func (c *Config) Apply(o Overrides) {
	if o.ModelFile != "" {
		c.ModelFile = o.ModelFile
	}
	if o.Port != 0 {
		c.Port = o.Port
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
}
