package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cwrk-planet/chat-service/internal/postgres"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type HTTP struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	BodyLimit      int64         `yaml:"bodyLimit"` // байты, по умолчанию 10mb
	CORSOrigins    []string      `yaml:"corsOrigins"`
}

type GRPC struct {
	Addr string `yaml:"addr"` // пусто — gRPC выключен
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // chat-service
	Version   string `yaml:"version"`   // v0.1.0
	Level     string `yaml:"level"`     // debug|info|warn|error
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
	AutoMigrate       bool          `yaml:"autoMigrate"`
}

func (p Postgres) ToPGConfig() postgres.Config {
	return postgres.Config{
		DSN:               p.DSN,
		MaxConns:          p.MaxConns,
		MinConns:          p.MinConns,
		MaxConnLifetime:   p.MaxConnLifetime,
		MaxConnIdleTime:   p.MaxConnIdleTime,
		HealthCheckPeriod: p.HealthCheckPeriod,
		ApplicationName:   p.ApplicationName,
	}
}

type Storage struct {
	Driver string `yaml:"driver"` // postgres|memory
}

type Auth struct {
	Alg           string        `yaml:"alg"` // HS256|RS256
	Secret        string        `yaml:"secret"`
	PublicKeyPath string        `yaml:"publicKeyPath"`
	Issuer        string        `yaml:"issuer"` // по желанию
	Claim         string        `yaml:"claim"`  // userId
	ClockSkew     time.Duration `yaml:"clockSkew"`
}

func (a Auth) Validate() error {
	switch strings.ToUpper(a.Alg) {
	case "HS256":
		if a.Secret == "" {
			return errors.New("auth.secret (or JWT_SECRET) is required for HS256")
		}
	case "RS256":
		if a.PublicKeyPath == "" {
			return errors.New("auth.publicKeyPath is required for RS256")
		}
	default:
		return fmt.Errorf("auth.alg %q is not supported", a.Alg)
	}
	if a.ClockSkew < 0 || a.ClockSkew > time.Minute {
		return errors.New("auth.clockSkew must be in [0..1m]")
	}
	return nil
}

type Chat struct {
	MaxContentBytes int `yaml:"maxContentBytes"`
	PageLimit       int `yaml:"pageLimit"`
}

type Redis struct {
	Addr       string        `yaml:"addr"` // пусто — без кэша профилей
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	ProfileTTL time.Duration `yaml:"profileTTL"`
}

type NATS struct {
	URL           string `yaml:"url"` // пусто — события только внутри процесса
	SubjectPrefix string `yaml:"subjectPrefix"`
}

type IDGen struct {
	MachineID uint16 `yaml:"machineID"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Storage  Storage  `yaml:"storage"`
	Auth     Auth     `yaml:"auth"`
	Chat     Chat     `yaml:"chat"`
	Redis    Redis    `yaml:"redis"`
	NATS     NATS     `yaml:"nats"`
	IDGen    IDGen    `yaml:"idgen"`
}

// LoadConfig читает .env (если есть), YAML из CONFIG_PATH и применяет
// переопределения из окружения.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = StoragePostgres
	}
	switch c.Storage.Driver {
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn (or DATABASE_URL) is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}

	if c.Auth.Alg == "" {
		c.Auth.Alg = "HS256"
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}

	// установка дефолтов, если значения не указаны
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.IdleTimeout <= 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.HTTP.BodyLimit <= 0 {
		c.HTTP.BodyLimit = 10 << 20
	}
	if c.Chat.MaxContentBytes <= 0 {
		c.Chat.MaxContentBytes = 10 << 20
	}
	if c.Chat.PageLimit <= 0 {
		c.Chat.PageLimit = 50
	}
	if c.Redis.ProfileTTL <= 0 {
		c.Redis.ProfileTTL = 5 * time.Minute
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "chat.conversations"
	}
	if c.Postgres.ApplicationName == "" {
		c.Postgres.ApplicationName = "chat-service"
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	return nil
}
