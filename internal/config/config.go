// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	MediaModePlaceholder = "placeholder"
	MediaModeSelected    = "selected"
)

// Config is built once at startup and handed to every component that needs it.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	DB       DBConfig       `mapstructure:"db"`
	Msgwapi  MsgwapiConfig  `mapstructure:"msgwapi"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	Log      LogConfig      `mapstructure:"log"`
}

type AppConfig struct {
	Timezone string `mapstructure:"timezone" validate:"required,timezone"`
}

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
}

type DBConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"required"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name" validate:"required"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

type MsgwapiConfig struct {
	BaseURL             string        `mapstructure:"base_url" validate:"required,url"`
	Token               string        `mapstructure:"token"`
	CountryCode         string        `mapstructure:"country_code" validate:"required,numeric"`
	Message             string        `mapstructure:"message" validate:"required"`
	PlaceholderMediaURL string        `mapstructure:"placeholder_media_url" validate:"required,url"`
	RatePerSec          int           `mapstructure:"rate_per_sec" validate:"gte=1"`
	Timeout             time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type DispatchConfig struct {
	Cron      string        `mapstructure:"cron" validate:"required"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MediaMode string        `mapstructure:"media_mode" validate:"oneof=placeholder selected"`
}

type AMQPConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads .env (if any), then the process environment. Keys map to env
// names by upper-casing and replacing dots, e.g. dispatch.media_mode ->
// DISPATCH_MEDIA_MODE.
func Load() (*Config, error) {
	// A missing .env is normal in containers.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(c); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

// RequireToken is checked by processes that call the messaging API.
func (c *Config) RequireToken() error {
	if strings.TrimSpace(c.Msgwapi.Token) == "" {
		return fmt.Errorf("MSGWAPI_TOKEN is required")
	}
	return nil
}

func (c *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.timezone", "Asia/Kolkata")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "posters")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("msgwapi.base_url", "https://www.msgwapi.com/api/whatsapp/send")
	v.SetDefault("msgwapi.token", "")
	v.SetDefault("msgwapi.country_code", "91")
	v.SetDefault("msgwapi.message", "Testing send message through API")
	v.SetDefault("msgwapi.placeholder_media_url", "https://www.msgwapi.com/users/1/avatar.png")
	v.SetDefault("msgwapi.rate_per_sec", 5)
	v.SetDefault("msgwapi.timeout", 15*time.Second)

	v.SetDefault("dispatch.cron", "* * * * *")
	v.SetDefault("dispatch.timeout", 30*time.Second)
	v.SetDefault("dispatch.media_mode", MediaModePlaceholder)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.queue", "schedule_dispatches")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}
