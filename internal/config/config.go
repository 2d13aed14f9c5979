package config

import (
	"errors"
	"sync"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string
	LogLevel       string
	ListenAddr     string
	BackendBaseURL string
	StorageBackend string
	PostgresDSN    string
	DataDir        string
	StateFile      string
	SessionsFile   string
}

var (
	cfg  *Config
	once sync.Once
)

func Load() *Config {
	once.Do(func() {
		v := viper.New()
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		_ = v.ReadInConfig() // missing .env is fine
		v.AutomaticEnv()

		v.SetDefault("APP_ENV", "development")
		v.SetDefault("LOG_LEVEL", "info")
		v.SetDefault("LISTEN_ADDR", ":8723")
		v.SetDefault("BACKEND_BASE_URL", "https://just-like-clockwork-backend.krishnarajthadesar.in/api")
		v.SetDefault("STORAGE_BACKEND", "file")
		v.SetDefault("DATA_DIR", "data")
		v.SetDefault("STATE_FILE", "data/state.json")
		v.SetDefault("SESSIONS_FILE", "data/sessions.json")

		cfg = &Config{
			Env:            v.GetString("APP_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			ListenAddr:     v.GetString("LISTEN_ADDR"),
			BackendBaseURL: v.GetString("BACKEND_BASE_URL"),
			StorageBackend: v.GetString("STORAGE_BACKEND"),
			PostgresDSN:    v.GetString("POSTGRES_DSN"),
			DataDir:        v.GetString("DATA_DIR"),
			StateFile:      v.GetString("STATE_FILE"),
			SessionsFile:   v.GetString("SESSIONS_FILE"),
		}
		if err := cfg.Validate(); err != nil {
			panic("Invalid config: " + err.Error())
		}
	})
	return cfg
}

func (c *Config) Validate() error {
	if c.StorageBackend != "file" && c.StorageBackend != "postgres" {
		return errors.New("STORAGE_BACKEND must be one of: file, postgres")
	}
	if c.StorageBackend == "postgres" && c.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
	}
	if c.StorageBackend == "file" && c.SessionsFile == "" {
		return errors.New("File storage requires SESSIONS_FILE to be set")
	}
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return errors.New("APP_ENV must be one of: development, staging, production")
	}
	if c.BackendBaseURL == "" {
		return errors.New("BACKEND_BASE_URL must not be empty")
	}
	return nil
}
