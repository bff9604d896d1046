package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/rpattn/polyrel/internal/db"
	"github.com/rpattn/polyrel/internal/polymorphic"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

type StoreConfig struct {
	Driver   string
	SeedFile string
}

// Config is the full application configuration.
type Config struct {
	Server      ServerConfig
	LogLevel    string
	Store       StoreConfig
	SchemaDir   string
	Database    db.Config
	Polymorphic polymorphic.Config
	// Source is the config file that was read, empty when none was found.
	Source string
}

// Default returns the configuration used when no file or env var is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		LogLevel:    "info",
		Store:       StoreConfig{Driver: DriverPostgres},
		SchemaDir:   "./config/schema",
		Database:    db.DefaultConfig(),
		Polymorphic: polymorphic.DefaultConfig(),
	}
}

// Load reads config.yaml from configPath and applies POLYREL_* environment
// overrides, e.g. POLYREL_DATABASE_HOST or POLYREL_STORE_DRIVER.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix("POLYREL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"server.addr", "server.allowedOrigins", "log.level",
		"store.driver", "store.seedFile", "schema.dir",
		"database.host", "database.port", "database.user", "database.password",
		"database.dbname", "database.sslmode", "database.maxConns",
		"polymorphic.allowedTypes", "polymorphic.ignoredTypes",
		"polymorphic.reverseScanLimit", "polymorphic.pushdownScanLimit",
		"polymorphic.maxDepth", "polymorphic.parallelism",
	} {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		cfg.Source = v.ConfigFileUsed()
	}

	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowedOrigins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowedOrigins")
	}
	if v.IsSet("log.level") {
		cfg.LogLevel = v.GetString("log.level")
	}
	if v.IsSet("store.driver") {
		cfg.Store.Driver = strings.ToLower(v.GetString("store.driver"))
	}
	if v.IsSet("store.seedFile") {
		cfg.Store.SeedFile = v.GetString("store.seedFile")
	}
	if v.IsSet("schema.dir") {
		cfg.SchemaDir = v.GetString("schema.dir")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("database.maxConns") {
		cfg.Database.MaxConns = v.GetInt32("database.maxConns")
	}

	if v.IsSet("polymorphic.allowedTypes") {
		cfg.Polymorphic.AllowedTypes = v.GetStringSlice("polymorphic.allowedTypes")
	}
	if v.IsSet("polymorphic.ignoredTypes") {
		cfg.Polymorphic.IgnoredTypes = v.GetStringSlice("polymorphic.ignoredTypes")
	}
	if v.IsSet("polymorphic.reverseScanLimit") {
		cfg.Polymorphic.ReverseScanLimit = v.GetInt("polymorphic.reverseScanLimit")
	}
	if v.IsSet("polymorphic.pushdownScanLimit") {
		cfg.Polymorphic.PushdownScanLimit = v.GetInt("polymorphic.pushdownScanLimit")
	}
	if v.IsSet("polymorphic.maxDepth") {
		cfg.Polymorphic.MaxDepth = v.GetInt("polymorphic.maxDepth")
	}
	if v.IsSet("polymorphic.parallelism") {
		cfg.Polymorphic.Parallelism = v.GetInt("polymorphic.parallelism")
	}

	if cfg.Store.Driver != DriverPostgres && cfg.Store.Driver != DriverMemory {
		return cfg, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
	return cfg, nil
}
