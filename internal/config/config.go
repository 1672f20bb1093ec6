package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config holds application configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Source  SourceConfig  `mapstructure:"source"`
	Export  ExportConfig  `mapstructure:"export"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
}

// StorageConfig selects where session state is persisted.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	Path          string `mapstructure:"path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix"`
}

// SourceConfig describes what gets annotated. An empty TilesEndpoint
// decomposes the AOI in-process.
type SourceConfig struct {
	TilesEndpoint string `mapstructure:"tiles_endpoint"`
	TileURL       string `mapstructure:"tile_url"`
	AOIPath       string `mapstructure:"aoi_path"`
	Zoom          int    `mapstructure:"zoom"`
	MiniGrid      int    `mapstructure:"mini_grid"`
	Category      string `mapstructure:"category"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "tileswipe")
}

// Path is the config file location: TILESWIPE_CONFIG or
// ~/.config/tileswipe/config.toml.
func Path() string {
	if p := os.Getenv("TILESWIPE_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "tileswipe", "config.toml")
}

// Default is the configuration used when no file or env overrides exist.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend:   BackendSQLite,
			Path:      filepath.Join(dataDir(), "tileswipe.db"),
			RedisAddr: "127.0.0.1:6379",
		},
		Source: SourceConfig{
			TileURL:  "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			Zoom:     16,
			MiniGrid: 2,
			Category: "building",
		},
		Export: ExportConfig{Dir: "."},
		Log: LogConfig{
			Path:  filepath.Join(dataDir(), "tileswipe.log"),
			Level: "info",
		},
		Server: ServerConfig{Addr: ":8000"},
	}
}

// Load reads .env, then the config file, then env vars. Env var overrides
// use prefix TILESWIPE_, e.g. TILESWIPE_SOURCE_ZOOM.
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	setAll(Default(), v.SetDefault)
	v.SetConfigType("toml")

	if p := os.Getenv("TILESWIPE_CONFIG"); p != "" {
		v.SetConfigFile(p)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "tileswipe"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("TILESWIPE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Validate checks ranges the rest of the program relies on.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is required for sqlite", ErrInvalid)
		}
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("%w: unknown storage.backend %q", ErrInvalid, c.Storage.Backend)
	}
	if c.Source.Zoom < 0 || c.Source.Zoom > 24 {
		return fmt.Errorf("%w: source.zoom %d outside 0..24", ErrInvalid, c.Source.Zoom)
	}
	if c.Source.MiniGrid < 0 || c.Source.MiniGrid > 8 {
		return fmt.Errorf("%w: source.mini_grid %d outside 0..8", ErrInvalid, c.Source.MiniGrid)
	}
	if strings.TrimSpace(c.Source.Category) == "" {
		return fmt.Errorf("%w: source.category is empty", ErrInvalid)
	}
	return nil
}

// Save writes the provided config to Path, creating the config directory if
// needed. Used by `tileswipe config init`.
func Save(cfg Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	setAll(cfg, v.Set)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setAll(c Config, set func(string, any)) {
	set("storage.backend", c.Storage.Backend)
	set("storage.path", c.Storage.Path)
	set("storage.redis_addr", c.Storage.RedisAddr)
	set("storage.redis_password", c.Storage.RedisPassword)
	set("storage.redis_db", c.Storage.RedisDB)
	set("storage.key_prefix", c.Storage.KeyPrefix)
	set("source.tiles_endpoint", c.Source.TilesEndpoint)
	set("source.tile_url", c.Source.TileURL)
	set("source.aoi_path", c.Source.AOIPath)
	set("source.zoom", c.Source.Zoom)
	set("source.mini_grid", c.Source.MiniGrid)
	set("source.category", c.Source.Category)
	set("export.dir", c.Export.Dir)
	set("log.path", c.Log.Path)
	set("log.level", c.Log.Level)
	set("server.addr", c.Server.Addr)
}
