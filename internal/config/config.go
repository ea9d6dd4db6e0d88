package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Workflow WorkflowConfig `yaml:"workflow"`
	VNPay    VNPayConfig    `yaml:"vnpay"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// RedisConfig is optional; an empty URL keeps the callback lock in process.
type RedisConfig struct {
	URL             string        `yaml:"url"`
	CallbackLockTTL time.Duration `yaml:"callbackLockTTL"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	// Format is "json" (default) or "console".
	Format string `yaml:"format"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	AutoMigrate bool   `yaml:"autoMigrate"`
}

type WorkflowConfig struct {
	MaxRetryAttempts int           `yaml:"maxRetryAttempts"`
	TxTimeout        time.Duration `yaml:"txTimeout"`
}

type VNPayConfig struct {
	TmnCode    string `yaml:"tmnCode"`
	HashSecret string `yaml:"hashSecret"`
	PayURL     string `yaml:"payURL"`
	ReturnURL  string `yaml:"returnURL"`
	Locale     string `yaml:"locale"`
}

const (
	StoreDriverMySQL  = "mysql"
	StoreDriverMemory = "memory"
)

// Load reads the YAML file at path (missing file is fine) and then lets
// environment variables override individual keys.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := applyEnv(cfg, viper.New()); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            3306,
			User:            "dealerhub",
			Password:        "secret",
			Name:            "dealerhub",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			CallbackLockTTL: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Driver: StoreDriverMySQL,
		},
		Workflow: WorkflowConfig{
			MaxRetryAttempts: 3,
			TxTimeout:        5 * time.Second,
		},
		VNPay: VNPayConfig{
			PayURL: "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
			Locale: "vn",
		},
	}
}

func applyEnv(cfg *Config, v *viper.Viper) error {
	v.AutomaticEnv()

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setDuration := func(key string, dst *time.Duration) error {
		if !v.IsSet(key) {
			return nil
		}
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	setInt("SERVER_PORT", &cfg.Server.Port)
	setString("DB_HOST", &cfg.Database.Host)
	setInt("DB_PORT", &cfg.Database.Port)
	setString("DB_USER", &cfg.Database.User)
	setString("DB_PASSWORD", &cfg.Database.Password)
	setString("DB_NAME", &cfg.Database.Name)
	setInt("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	setInt("DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)
	setString("REDIS_URL", &cfg.Redis.URL)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)
	setString("STORE_DRIVER", &cfg.Store.Driver)
	if v.IsSet("STORE_AUTO_MIGRATE") {
		cfg.Store.AutoMigrate = v.GetBool("STORE_AUTO_MIGRATE")
	}
	setInt("WORKFLOW_MAX_RETRY_ATTEMPTS", &cfg.Workflow.MaxRetryAttempts)
	setString("VNPAY_TMN_CODE", &cfg.VNPay.TmnCode)
	setString("VNPAY_HASH_SECRET", &cfg.VNPay.HashSecret)
	setString("VNPAY_PAY_URL", &cfg.VNPay.PayURL)
	setString("VNPAY_RETURN_URL", &cfg.VNPay.ReturnURL)

	for key, dst := range map[string]*time.Duration{
		"DB_CONN_MAX_LIFETIME":    &cfg.Database.ConnMaxLifetime,
		"REDIS_CALLBACK_LOCK_TTL": &cfg.Redis.CallbackLockTTL,
		"WORKFLOW_TX_TIMEOUT":     &cfg.Workflow.TxTimeout,
	} {
		if err := setDuration(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server port must be positive, got %d", c.Server.Port)
	}
	if c.Store.Driver != StoreDriverMySQL && c.Store.Driver != StoreDriverMemory {
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Workflow.MaxRetryAttempts < 1 {
		return fmt.Errorf("workflow maxRetryAttempts must be at least 1, got %d", c.Workflow.MaxRetryAttempts)
	}
	if c.Workflow.TxTimeout <= 0 {
		return fmt.Errorf("workflow txTimeout must be positive")
	}
	return nil
}
