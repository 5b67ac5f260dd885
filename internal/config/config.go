package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Network NetworkConfig `yaml:"network" mapstructure:"network"`
	Reach   ReachConfig   `yaml:"reach" mapstructure:"reach"`
	Input   InputConfig   `yaml:"input" mapstructure:"input"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// NetworkConfig configures graph construction.
type NetworkConfig struct {
	WalkingSpeed    float64 `yaml:"walking_speed" mapstructure:"walking_speed" validate:"gt=0"`
	TransitSpeed    float64 `yaml:"transit_speed" mapstructure:"transit_speed" validate:"gt=0"`
	K               int     `yaml:"k" mapstructure:"k" validate:"min=1"`
	DuplicatePolicy string  `yaml:"duplicate_policy" mapstructure:"duplicate_policy" validate:"oneof=min last"`
	Workers         int     `yaml:"workers" mapstructure:"workers" validate:"min=1"`
}

// ReachConfig configures the reachability search and zone classification.
type ReachConfig struct {
	Cutoff          float64 `yaml:"cutoff" mapstructure:"cutoff" validate:"gt=0"`
	UnderservedTier int     `yaml:"underserved_tier" mapstructure:"underserved_tier" validate:"min=1"`
	WellServedTier  int     `yaml:"well_served_tier" mapstructure:"well_served_tier" validate:"min=1"`
	Workers         int     `yaml:"workers" mapstructure:"workers" validate:"min=1"`
	HistogramBins   int     `yaml:"histogram_bins" mapstructure:"histogram_bins" validate:"min=1"`
}

// InputConfig points at the reference tables.
type InputConfig struct {
	Stops          string `yaml:"stops" mapstructure:"stops" validate:"required"`
	Sequences      string `yaml:"sequences" mapstructure:"sequences" validate:"required"`
	Councils       string `yaml:"councils" mapstructure:"councils"`
	Zones          string `yaml:"zones" mapstructure:"zones" validate:"required"`
	ZonesShapefile string `yaml:"zones_shapefile" mapstructure:"zones_shapefile"`
	GreenSpace     string `yaml:"green_space" mapstructure:"green_space" validate:"required"`
	CacheDir       string `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url" validate:"required"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig tunes the postgres connection pool. SRID is written to the
// score geometry column. Zero values keep the store defaults.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns" validate:"min=0"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns" validate:"min=0"`
	SRID     int   `yaml:"srid" mapstructure:"srid" validate:"min=0"`
}

// ServerConfig configures the results API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GREENREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("network.walking_speed", 1.0)
	v.SetDefault("network.transit_speed", 4.0)
	v.SetDefault("network.k", 5)
	v.SetDefault("network.duplicate_policy", "min")
	v.SetDefault("network.workers", 4)
	v.SetDefault("reach.cutoff", 5000.0)
	v.SetDefault("reach.underserved_tier", 2)
	v.SetDefault("reach.well_served_tier", 4)
	v.SetDefault("reach.workers", 4)
	v.SetDefault("reach.histogram_bins", 100)
	v.SetDefault("input.stops", "./data/bus-stops.csv")
	v.SetDefault("input.sequences", "./data/bus-sequences.csv")
	v.SetDefault("input.councils", "./data/londonUTLA_full.csv")
	v.SetDefault("input.zones", "./data/LSOA_population_weighted_centroids.csv")
	v.SetDefault("input.zones_shapefile", "")
	v.SetDefault("input.green_space", "./data/green_space.csv")
	v.SetDefault("input.cache_dir", "./data/.cache")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "greenreach.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("store.pool.srid", 27700)
	v.SetDefault("server.port", 8080)
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

// Validate checks the sections a command needs. mode is one of "graph",
// "run", "serve" or "store".
func (c *Config) Validate(mode string) error {
	var sections []section
	switch mode {
	case "graph":
		sections = []section{{"network", c.Network}, {"input", c.Input}}
	case "run":
		sections = []section{{"network", c.Network}, {"reach", c.Reach}, {"input", c.Input}}
	case "serve":
		sections = []section{{"store", c.Store}, {"server", c.Server}}
	case "store":
		sections = []section{{"store", c.Store}}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	sections = append(sections, section{"log", c.Log})

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})

	var problems []string
	for _, s := range sections {
		err := v.Struct(s.value)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, describe(s.name, fe))
			}
		} else if err != nil {
			return eris.Wrapf(err, "config: validate %s", s.name)
		}
	}
	if mode == "run" && c.Reach.UnderservedTier >= c.Reach.WellServedTier {
		problems = append(problems, fmt.Sprintf("reach.underserved_tier (%d) must be below reach.well_served_tier (%d)",
			c.Reach.UnderservedTier, c.Reach.WellServedTier))
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

type section struct {
	name  string
	value any
}

func describe(sectionName string, fe validator.FieldError) string {
	// Namespace starts with the section's struct type name.
	_, path, _ := strings.Cut(fe.Namespace(), ".")
	key := sectionName + "." + path
	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", key, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be > %s", key, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be >= %s", key, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be <= %s", key, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", key, fe.Tag())
	}
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
