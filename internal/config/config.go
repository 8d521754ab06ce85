package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Parcels    ParcelConfig     `yaml:"parcels" mapstructure:"parcels"`
	Layers     []LayerConfig    `yaml:"layers" mapstructure:"layers"`
	Projection ProjectionConfig `yaml:"projection" mapstructure:"projection"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SourceConfig describes where a geometry collection is loaded from.
type SourceConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Format   string `yaml:"format" mapstructure:"format"`
	Table    string `yaml:"table" mapstructure:"table"`
	GeomCol  string `yaml:"geom_column" mapstructure:"geom_column"`
	SRID     int    `yaml:"srid" mapstructure:"srid"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
	URL      string `yaml:"url" mapstructure:"url"`
}

// ParcelConfig configures the parcel collection and its lookup fields.
type ParcelConfig struct {
	Source           SourceConfig `yaml:"source" mapstructure:"source"`
	IDField          string       `yaml:"id_field" mapstructure:"id_field"`
	NameField        string       `yaml:"name_field" mapstructure:"name_field"`
	RejectDuplicates bool         `yaml:"reject_duplicates" mapstructure:"reject_duplicates"`
}

// LayerConfig configures one reference layer. Required layers fail the query
// when the parcel does not intersect them; optional layers report an empty
// result with EmptyMessage instead.
type LayerConfig struct {
	Name         string       `yaml:"name" mapstructure:"name"`
	Source       SourceConfig `yaml:"source" mapstructure:"source"`
	ClassField   string       `yaml:"class_field" mapstructure:"class_field"`
	Required     bool         `yaml:"required" mapstructure:"required"`
	EmptyMessage string       `yaml:"empty_message" mapstructure:"empty_message"`
	Catalog      string       `yaml:"catalog" mapstructure:"catalog"`
}

// ProjectionConfig configures coordinate normalization.
type ProjectionConfig struct {
	FallbackSRID int            `yaml:"fallback_srid" mapstructure:"fallback_srid"`
	Definitions  map[int]string `yaml:"definitions" mapstructure:"definitions"`
	CacheSize    int            `yaml:"cache_size" mapstructure:"cache_size"`
}

// DatabaseConfig configures the optional PostGIS connection used by postgis
// sources and the import command.
type DatabaseConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// FetchConfig configures remote archive downloads.
type FetchConfig struct {
	DataDir     string `yaml:"data_dir" mapstructure:"data_dir"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RatePerSecond  float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. A .env file in the
// working directory, when present, is loaded into the environment first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ZONESHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("parcels.source.path", "data/car.shp")
	v.SetDefault("parcels.id_field", "numero_car")
	v.SetDefault("parcels.name_field", "nom_imovel")
	v.SetDefault("parcels.reject_duplicates", false)
	v.SetDefault("layers", []map[string]any{
		{
			"name":        "zee",
			"source":      map[string]any{"path": "data/zee.shp"},
			"class_field": "zona",
			"required":    true,
		},
	})
	v.SetDefault("projection.fallback_srid", 5880)
	v.SetDefault("projection.cache_size", 64)
	v.SetDefault("database.url", "")
	v.SetDefault("fetch.data_dir", "data")
	v.SetDefault("fetch.timeout_secs", 600)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration can drive a query.
func (c *Config) Validate() error {
	var missing []string

	if c.Parcels.Source.Path == "" && c.Parcels.Source.Table == "" {
		missing = append(missing, "parcels.source.path is required")
	}
	if c.Parcels.IDField == "" {
		missing = append(missing, "parcels.id_field is required")
	}
	if len(c.Layers) == 0 {
		missing = append(missing, "at least one entry in layers is required")
	}

	seen := make(map[string]bool, len(c.Layers))
	for i, l := range c.Layers {
		if l.Name == "" {
			missing = append(missing, fmt.Sprintf("layers[%d].name is required", i))
		} else if seen[l.Name] {
			missing = append(missing, fmt.Sprintf("layers[%d].name %q is duplicated", i, l.Name))
		}
		seen[l.Name] = true
		if l.ClassField == "" {
			missing = append(missing, fmt.Sprintf("layers[%d].class_field is required", i))
		}
		if l.Source.Path == "" && l.Source.Table == "" {
			missing = append(missing, fmt.Sprintf("layers[%d].source.path is required", i))
		}
	}

	if c.Projection.FallbackSRID <= 0 {
		missing = append(missing, "projection.fallback_srid must be positive")
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// Layer returns the layer config with the given name.
func (c *Config) Layer(name string) (LayerConfig, bool) {
	for _, l := range c.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return LayerConfig{}, false
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
