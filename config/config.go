package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the intake service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Mail      MailConfig      `mapstructure:"mail"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig describes the completion-service provider. An empty APIKey means
// the service runs without a completion provider and every consumer falls
// back to its degraded path.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SearchConfig describes the web search provider used by the dossier agent.
type SearchConfig struct {
	Provider string `mapstructure:"provider"` // serper, brave
	APIKey   string `mapstructure:"api_key"`
	MaxHits  int    `mapstructure:"max_hits"`
}

// SessionsConfig controls the session store backend and expiry.
type SessionsConfig struct {
	Store    string        `mapstructure:"store"` // inmemory, redis, postgres
	TTL      time.Duration `mapstructure:"ttl"`
	Redis    RedisConfig   `mapstructure:"redis"`
	Postgres PGConfig      `mapstructure:"postgres"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PGConfig struct {
	URL string `mapstructure:"url"`
}

// MailConfig configures the mail-draft document sink. When Host is empty the
// service delivers documents to the log sink instead.
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func (s ServerConfig) Validate() error {
	if s.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	return nil
}

func (s SessionsConfig) Validate() error {
	switch s.Store {
	case "inmemory", "redis", "postgres":
	default:
		return fmt.Errorf("sessions.store must be one of inmemory, redis, postgres (got %q)", s.Store)
	}
	if s.TTL <= 0 {
		return fmt.Errorf("sessions.ttl must be > 0")
	}
	if s.Store == "redis" && s.Redis.Addr == "" {
		return fmt.Errorf("sessions.redis.addr required for redis store")
	}
	if s.Store == "postgres" && s.Postgres.URL == "" {
		return fmt.Errorf("sessions.postgres.url required for postgres store")
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return c.Sessions.Validate()
}

// LoadConfig reads configuration from file and environment. Env variables use
// the INTAKE_ prefix with underscores, e.g. INTAKE_LLM_API_KEY.
func LoadConfig(cfgPath string) *Config {
	v := viper.New()

	v.SetDefault("server.address", ":10010")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("search.provider", "serper")
	v.SetDefault("search.max_hits", 8)
	v.SetDefault("sessions.store", "inmemory")
	v.SetDefault("sessions.ttl", 24*time.Hour)
	v.SetDefault("mail.port", 587)
	v.SetDefault("telemetry.enabled", true)

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("intake")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgPath != "" {
			log.Fatalf("reading config %s: %v", cfgPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("unmarshalling config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return &cfg
}
