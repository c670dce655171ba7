package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MQConfig struct {
	URL string `yaml:"url"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// TokenConfig controls story access token issuance.
//
// EnforceExpiration gates whether expired tokens are filtered out of
// validity queries. Business policy currently treats expired tokens as
// valid (they get refreshed lazily on resume), so this defaults to false.
type TokenConfig struct {
	TTL               time.Duration `yaml:"ttl"`
	EnforceExpiration bool          `yaml:"enforce_expiration"`
}

type Config struct {
	DB     DBConfig     `yaml:"db"`
	Redis  RedisConfig  `yaml:"redis"`
	MQ     MQConfig     `yaml:"mq"`
	JWT    JWTConfig    `yaml:"jwt"`
	Server ServerConfig `yaml:"server"`
	Token  TokenConfig  `yaml:"token"`
}

const defaultTokenTTL = 7 * 24 * time.Hour

func Load() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		log.Fatalf("failed to decode %s: %v", path, err)
	}

	overrideFromEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Token.TTL == 0 {
		cfg.Token.TTL = defaultTokenTTL
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
}

// Validate rejects configurations that are unsafe outside development.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required")
	}
	if c.JWT.Secret == "supersecretkey" && os.Getenv("APP_ENV") != "development" {
		return errors.New("jwt secret must be changed outside development")
	}
	if c.DB.Host == "" || c.DB.Name == "" {
		return errors.New("db host and name are required")
	}
	if c.Token.TTL < 0 {
		return errors.New("token ttl must not be negative")
	}
	return nil
}

func overrideFromEnv(cfg *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DB.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DB.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DB.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DB.Name = name
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.MQ.URL = url
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = secret
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}

	if ttl := os.Getenv("TOKEN_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Token.TTL = d
		}
	}
	if enforce := os.Getenv("TOKEN_ENFORCE_EXPIRATION"); enforce != "" {
		if b, err := strconv.ParseBool(enforce); err == nil {
			cfg.Token.EnforceExpiration = b
		}
	}
}
