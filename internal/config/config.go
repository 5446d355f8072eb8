package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data        DataConfig        `yaml:"data" mapstructure:"data"`
	Window      WindowConfig      `yaml:"window" mapstructure:"window"`
	Extrapolate ExtrapolateConfig `yaml:"extrapolate" mapstructure:"extrapolate"`
	Standardize StandardizeConfig `yaml:"standardize" mapstructure:"standardize"`
	Cluster     ClusterConfig     `yaml:"cluster" mapstructure:"cluster"`
	Forecast    ForecastConfig    `yaml:"forecast" mapstructure:"forecast"`
	Workers     int               `yaml:"workers" mapstructure:"workers"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Province    ProvinceConfig    `yaml:"province" mapstructure:"province"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Export      ExportConfig      `yaml:"export" mapstructure:"export"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the raw inputs and the output tree.
type DataConfig struct {
	RawDir string `yaml:"raw_dir" mapstructure:"raw_dir"`
	OutDir string `yaml:"out_dir" mapstructure:"out_dir"`
}

// WindowConfig bounds the combined table, inclusive on both ends.
type WindowConfig struct {
	Start int `yaml:"start" mapstructure:"start"`
	End   int `yaml:"end" mapstructure:"end"`
}

// ExtrapolateConfig configures per-province emission extrapolation.
type ExtrapolateConfig struct {
	TargetYears []int `yaml:"target_years" mapstructure:"target_years"`
	MinPoints   int   `yaml:"min_points" mapstructure:"min_points"`
}

// StandardizeConfig holds the synergy score weights.
type StandardizeConfig struct {
	Weights WeightsConfig `yaml:"weights" mapstructure:"weights"`
}

// WeightsConfig weights the three indices in the synergy score.
type WeightsConfig struct {
	Energy     float64 `yaml:"energy" mapstructure:"energy"`
	Eco        float64 `yaml:"eco" mapstructure:"eco"`
	Efficiency float64 `yaml:"efficiency" mapstructure:"efficiency"`
}

// ClusterConfig configures k-means over the latest year's indices.
type ClusterConfig struct {
	K        int    `yaml:"k" mapstructure:"k"`
	Seed     uint64 `yaml:"seed" mapstructure:"seed"`
	Restarts int    `yaml:"restarts" mapstructure:"restarts"`
	MaxIter  int    `yaml:"max_iter" mapstructure:"max_iter"`
}

// ForecastConfig configures the scenario forecaster.
type ForecastConfig struct {
	StartYear   int              `yaml:"start_year" mapstructure:"start_year"`
	EndYear     int              `yaml:"end_year" mapstructure:"end_year"`
	InterpLimit int              `yaml:"interp_limit" mapstructure:"interp_limit"`
	Scenarios   []ScenarioConfig `yaml:"scenarios" mapstructure:"scenarios"`
}

// ScenarioConfig is a named perturbation of the latest clean and green ratios.
type ScenarioConfig struct {
	Name       string  `yaml:"name" mapstructure:"name"`
	CleanDelta float64 `yaml:"clean_delta" mapstructure:"clean_delta"`
	GreenDelta float64 `yaml:"green_delta" mapstructure:"green_delta"`
}

// Horizon returns the forecast years in ascending order.
func (f ForecastConfig) Horizon() []int {
	var years []int
	for y := f.StartYear; y <= f.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// OutputConfig selects the formats written next to the CSV tables.
type OutputConfig struct {
	Formats []string `yaml:"formats" mapstructure:"formats"`
}

// Has reports whether format is enabled.
func (o OutputConfig) Has(format string) bool {
	for _, f := range o.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// ProvinceConfig configures province name normalization.
type ProvinceConfig struct {
	AliasFile string `yaml:"alias_file" mapstructure:"alias_file"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ExportConfig configures the Postgres export target.
type ExportConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	RateLimitRPS float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	CORSOrigins  []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// KnownFormats lists the accepted output.formats values.
var KnownFormats = []string{"csv", "parquet", "xlsx", "charts"}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LOWCARBON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.raw_dir", "data/province_raw")
	v.SetDefault("data.out_dir", "data")
	v.SetDefault("window.start", 2005)
	v.SetDefault("window.end", 2022)
	v.SetDefault("extrapolate.target_years", []int{2020, 2021, 2022})
	v.SetDefault("extrapolate.min_points", 8)
	v.SetDefault("standardize.weights.energy", 0.4)
	v.SetDefault("standardize.weights.eco", 0.3)
	v.SetDefault("standardize.weights.efficiency", 0.3)
	v.SetDefault("cluster.k", 4)
	v.SetDefault("cluster.seed", 42)
	v.SetDefault("cluster.restarts", 10)
	v.SetDefault("cluster.max_iter", 300)
	v.SetDefault("forecast.start_year", 2023)
	v.SetDefault("forecast.end_year", 2030)
	v.SetDefault("forecast.interp_limit", 3)
	v.SetDefault("forecast.scenarios", []map[string]any{
		{"name": "baseline", "clean_delta": 0.0, "green_delta": 0.0},
		{"name": "clean_plus5pp", "clean_delta": 0.05, "green_delta": 0.0},
		{"name": "green_plus2pp", "clean_delta": 0.02, "green_delta": 0.02},
	})
	v.SetDefault("workers", 4)
	v.SetDefault("output.formats", []string{"csv"})
	v.SetDefault("province.alias_file", "")
	v.SetDefault("store.database_url", "data/runs.db")
	v.SetDefault("export.database_url", "")
	v.SetDefault("export.schema", "lowcarbon")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.rate_limit_rps", 50)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Default returns the configuration Load produces with no file and no
// environment overrides.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: unmarshal defaults: %v", err))
	}
	return &cfg
}

// Validate checks the settings required by the given command mode
// ("run", "verify", "serve", "export" or "runs").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run":
		if c.Data.RawDir == "" {
			errs = append(errs, "data.raw_dir is required")
		}
		errs = append(errs, c.validateModel()...)
		for _, f := range c.Output.Formats {
			if !contains(KnownFormats, strings.ToLower(f)) {
				errs = append(errs, fmt.Sprintf("output.formats: unknown format %q", f))
			}
		}
	case "verify":
		errs = append(errs, c.validateModel()...)
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server.rate_limit_rps must be >= 0")
		}
	case "export":
		if c.Export.DatabaseURL == "" {
			errs = append(errs, "export.database_url is required")
		}
		if c.Export.Schema == "" {
			errs = append(errs, "export.schema is required")
		}
	case "runs":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode != "serve" && mode != "runs" && c.Data.OutDir == "" {
		errs = append(errs, "data.out_dir is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateModel() []string {
	var errs []string
	if c.Window.Start > c.Window.End {
		errs = append(errs, "window.start must be <= window.end")
	}
	if c.Extrapolate.MinPoints < 2 {
		errs = append(errs, "extrapolate.min_points must be >= 2")
	}
	w := c.Standardize.Weights
	if w.Energy < 0 || w.Eco < 0 || w.Efficiency < 0 {
		errs = append(errs, "standardize.weights values must be >= 0")
	}
	if c.Cluster.K < 1 {
		errs = append(errs, "cluster.k must be >= 1")
	}
	if c.Cluster.Restarts < 1 {
		errs = append(errs, "cluster.restarts must be >= 1")
	}
	if c.Forecast.StartYear > c.Forecast.EndYear {
		errs = append(errs, "forecast.start_year must be <= forecast.end_year")
	}
	if c.Forecast.InterpLimit < 0 {
		errs = append(errs, "forecast.interp_limit must be >= 0")
	}
	seen := map[string]bool{}
	for _, s := range c.Forecast.Scenarios {
		if s.Name == "" {
			errs = append(errs, "forecast.scenarios: name is required")
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Sprintf("forecast.scenarios: duplicate name %q", s.Name))
		}
		seen[s.Name] = true
	}
	if c.Workers < 1 || c.Workers > 64 {
		errs = append(errs, "workers must be between 1 and 64")
	}
	return errs
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
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
