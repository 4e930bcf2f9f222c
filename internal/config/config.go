package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SchemaConfig names the four EAV tables and the two derived views.
type SchemaConfig struct {
	EntityTypeTable string `mapstructure:"entity_type_table"`
	EntityTable     string `mapstructure:"entity_table"`
	AttributeTable  string `mapstructure:"attribute_table"`
	ValueTable      string `mapstructure:"value_table"`
	PossibleView    string `mapstructure:"possible_view"`
	ExistingView    string `mapstructure:"existing_view"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	PoolSize    int    `mapstructure:"pool_size"`
	Path        string `mapstructure:"path"` // directory for SQLite database files
	Bootstrap   bool   `mapstructure:"bootstrap"`
	AutoConnect bool   `mapstructure:"auto_connect"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.IsSQLite() {
		if d.Name == ":memory:" || strings.HasPrefix(d.Name, "file:") {
			return d.Name
		}
		return filepath.Join(d.Path, d.Name+".db")
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.hostPort(),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// hostPort appends the configured port unless the host already carries one.
func (d DatabaseConfig) hostPort() string {
	if _, _, err := net.SplitHostPort(d.Host); err == nil {
		return d.Host
	}
	if d.Port <= 0 {
		return d.Host
	}
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

// WithTarget returns a copy pointed at another host and database.
func (d DatabaseConfig) WithTarget(host, name, user, password string) DatabaseConfig {
	c := d
	c.Host = host
	c.Name = name
	c.User = user
	c.Password = password
	return c
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.path", "./data")
	v.SetDefault("database.bootstrap", true)
	v.SetDefault("database.auto_connect", false)
	v.SetDefault("schema.entity_type_table", "eav_entity_type")
	v.SetDefault("schema.entity_table", "eav_entity")
	v.SetDefault("schema.attribute_table", "eav_attribute")
	v.SetDefault("schema.value_table", "eav_value")
	v.SetDefault("schema.possible_view", "all_possible_eav_data")
	v.SetDefault("schema.existing_view", "all_existing_eav_data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("metrics.enabled", true)
}

// Load reads configuration into v. An explicit path must exist; otherwise app.yaml
// is looked up in the working directory and a missing file falls back to defaults.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix("eav")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("app")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("../..")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
