package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gihan9a/modelsync/internal/document"
	"gihan9a/modelsync/internal/model"
)

// FileConfig represents the structure of the configuration file
type FileConfig struct {
	Server struct {
		Port       int    `yaml:"port"`
		ModelFile  string `yaml:"model_file"`
		WatchModel bool   `yaml:"watch_model"`
	} `yaml:"server"`

	Schema struct {
		File string `yaml:"file"`
	} `yaml:"schema"`

	Engine struct {
		ReclassifyAdd     string `yaml:"reclassify_add"`
		MaxDepth          int    `yaml:"max_depth"`
		ListenerCacheSize int    `yaml:"listener_cache_size"`
	} `yaml:"engine"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	TLS struct {
		Enabled  bool   `yaml:"enabled"`
		CertFile string `yaml:"cert_file"`
		KeyFile  string `yaml:"key_file"`
	} `yaml:"tls"`

	CORS struct {
		Enabled          bool   `yaml:"enabled"`
		AllowOrigins     string `yaml:"allow_origins"`
		AllowMethods     string `yaml:"allow_methods"`
		AllowHeaders     string `yaml:"allow_headers"`
		AllowCredentials bool   `yaml:"allow_credentials"`
		MaxAge           int    `yaml:"max_age"`
	} `yaml:"cors"`

	Definitions []FileDefinition `yaml:"definitions,omitempty"`
}

// FileDefinition is one entry of the definitions section. Update stays a
// yaml.Node so the key order written in the file reaches the model.
type FileDefinition struct {
	Location struct {
		Parent string `yaml:"parent"`
		ID     string `yaml:"id,omitempty"`
		After  string `yaml:"after,omitempty"`
	} `yaml:"location"`
	Update yaml.Node `yaml:"update"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Port:              3000,
		Reclassify:        model.ReclassifyAny,
		MaxDepth:          model.DefaultMaxDepth,
		ListenerCacheSize: 1024,
		LogLevel:          "info",
		LogFormat:         "console",
		TLS: TLSConfig{
			CertFile: "cert/cert.pem",
			KeyFile:  "cert/key.pem",
		},
		CORS: CORSConfig{
			AllowOrigins: "*",
			AllowMethods: "GET, POST, PUT, DELETE, OPTIONS, PATCH",
			AllowHeaders: "Content-Type, Authorization, Subscribe, Version, Parents",
			MaxAge:       86400,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filePath string) (*Config, error) {
	config := Default()

	// If no config file specified, return default config
	if filePath == "" {
		return config, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if fileConfig.Server.Port != 0 {
		config.Port = fileConfig.Server.Port
	}
	config.ModelFile = fileConfig.Server.ModelFile
	config.WatchModel = fileConfig.Server.WatchModel
	config.SchemaFile = fileConfig.Schema.File

	// Engine settings
	policy, err := model.ParsePolicy(fileConfig.Engine.ReclassifyAdd)
	if err != nil {
		return nil, fmt.Errorf("invalid engine.reclassify_add: %w", err)
	}
	config.Reclassify = policy
	if fileConfig.Engine.MaxDepth > 0 {
		config.MaxDepth = fileConfig.Engine.MaxDepth
	}
	if fileConfig.Engine.ListenerCacheSize > 0 {
		config.ListenerCacheSize = fileConfig.Engine.ListenerCacheSize
	}

	if fileConfig.Logging.Level != "" {
		config.LogLevel = fileConfig.Logging.Level
	}
	if fileConfig.Logging.Format != "" {
		config.LogFormat = fileConfig.Logging.Format
	}

	// TLS settings
	config.TLS.Enabled = fileConfig.TLS.Enabled
	if fileConfig.TLS.CertFile != "" {
		config.TLS.CertFile = fileConfig.TLS.CertFile
	}
	if fileConfig.TLS.KeyFile != "" {
		config.TLS.KeyFile = fileConfig.TLS.KeyFile
	}

	// CORS settings
	config.CORS.Enabled = fileConfig.CORS.Enabled
	if fileConfig.CORS.AllowOrigins != "" {
		config.CORS.AllowOrigins = fileConfig.CORS.AllowOrigins
	}
	if fileConfig.CORS.AllowMethods != "" {
		config.CORS.AllowMethods = fileConfig.CORS.AllowMethods
	}
	if fileConfig.CORS.AllowHeaders != "" {
		config.CORS.AllowHeaders = fileConfig.CORS.AllowHeaders
	}
	config.CORS.AllowCredentials = fileConfig.CORS.AllowCredentials
	if fileConfig.CORS.MaxAge != 0 {
		config.CORS.MaxAge = fileConfig.CORS.MaxAge
	}

	for i, def := range fileConfig.Definitions {
		update, err := document.FromYAML(&def.Update)
		if err != nil {
			return nil, fmt.Errorf("invalid definition %d: %w", i, err)
		}
		config.Definitions = append(config.Definitions, model.DefinitionUpdate{
			Location: model.DefinitionLocation{
				Parent: def.Location.Parent,
				ID:     def.Location.ID,
				After:  def.Location.After,
			},
			Update: update,
		})
	}

	return config, nil
}

// SaveDefaultConfig saves a default configuration file
func SaveDefaultConfig(filePath string) error {
	def := Default()
	var fileConfig FileConfig

	fileConfig.Server.Port = def.Port
	fileConfig.Server.ModelFile = "model.json"
	fileConfig.Server.WatchModel = true

	fileConfig.Engine.ReclassifyAdd = string(def.Reclassify)
	fileConfig.Engine.MaxDepth = def.MaxDepth
	fileConfig.Engine.ListenerCacheSize = def.ListenerCacheSize

	fileConfig.Logging.Level = def.LogLevel
	fileConfig.Logging.Format = def.LogFormat

	fileConfig.TLS.Enabled = def.TLS.Enabled
	fileConfig.TLS.CertFile = def.TLS.CertFile
	fileConfig.TLS.KeyFile = def.TLS.KeyFile

	fileConfig.CORS.Enabled = def.CORS.Enabled
	fileConfig.CORS.AllowOrigins = def.CORS.AllowOrigins
	fileConfig.CORS.AllowMethods = def.CORS.AllowMethods
	fileConfig.CORS.AllowHeaders = def.CORS.AllowHeaders
	fileConfig.CORS.AllowCredentials = def.CORS.AllowCredentials
	fileConfig.CORS.MaxAge = def.CORS.MaxAge

	data, err := yaml.Marshal(fileConfig)
	if err != nil {
		return fmt.Errorf("error creating default config: %w", err)
	}

	yamlWithComments := "# Model sync server configuration\n" +
		"# definitions entries ({location: {parent, id, after}, update: ...}) are pushed at startup\n\n" +
		string(data)

	if err := os.WriteFile(filePath, []byte(yamlWithComments), 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
