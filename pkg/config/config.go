package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	xdgAppName = "ajanda"
	configFile = "config.yaml"
	envPrefix  = "AJANDA"
)

type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Persist  PersistConfig  `mapstructure:"persist"`
	Log      LogConfig      `mapstructure:"log"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"` // local or mysql
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

type CalendarConfig struct {
	Name string `mapstructure:"name"`
}

type ReminderConfig struct {
	Hour int `mapstructure:"hour"`
}

type PersistConfig struct {
	RetryMaxElapsed time.Duration `mapstructure:"retry_max_elapsed"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GetConfigDir is where every ajanda file lives unless configured otherwise.
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.path", filepath.Join(dir, "tasks.json"))
	v.SetDefault("storage.dsn", "")
	v.SetDefault("calendar.name", "Tasks")
	v.SetDefault("reminder.hour", 9)
	v.SetDefault("persist.retry_max_elapsed", "30s")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file yields the defaults. AJANDA_* environment variables
// override both, e.g. AJANDA_STORAGE_BACKEND=mysql.
func Load(path string) (*Config, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = filepath.Join(dir, configFile)
	}

	v := viper.New()
	setDefaults(v, dir)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	if cfg.Calendar.Name == "" {
		cfg.Calendar.Name = "Tasks"
	}
	if cfg.Reminder.Hour < 0 || cfg.Reminder.Hour > 23 {
		return nil, fmt.Errorf("reminder.hour must be between 0 and 23, got %d", cfg.Reminder.Hour)
	}
	switch cfg.Storage.Backend {
	case "local", "mysql":
	default:
		return nil, fmt.Errorf("unknown storage.backend %q: must be local or mysql", cfg.Storage.Backend)
	}
	return &cfg, nil
}

// Save writes cfg to path, or the default location when path is empty.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("storage.backend", cfg.Storage.Backend)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("storage.dsn", cfg.Storage.DSN)
	v.Set("calendar.name", cfg.Calendar.Name)
	v.Set("reminder.hour", cfg.Reminder.Hour)
	v.Set("persist.retry_max_elapsed", cfg.Persist.RetryMaxElapsed.String())
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Chmod(path, 0600)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}
