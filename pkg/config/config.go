package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ManouchehrRasoulli/fsguard/internal/notify"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfigPath    = errors.New("watched path entry without a path")
	ErrConfigBuffer  = errors.New("buffer size must not be negative")
	ErrConfigAddress = errors.New("server address is required")
)

const (
	DefaultAddress     = "localhost:7701"
	DefaultJoinWarning = 5 * time.Second
	DefaultQueueSize   = 256
)

type PathConfig struct {
	Path      string `yaml:"path" toml:"path"`
	Recursive bool   `yaml:"recursive" toml:"recursive"`
}

// LogConfig routes logs to a rotated file when File is set.
type LogConfig struct {
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
	NoColor    bool   `yaml:"no_color" toml:"no_color"`
}

type ServerTLSConfig struct {
	Key  string `yaml:"key" toml:"key"`
	Cert string `yaml:"cert" toml:"cert"`
}

type ServerConfig struct {
	Address string          `yaml:"address" toml:"address"`
	TLS     ServerTLSConfig `yaml:"tls" toml:"tls"`
	PwFile  string          `yaml:"pw_file" toml:"pw_file"`
	// MIME adds the detected content type to change notifications.
	MIME      bool `yaml:"mime" toml:"mime"`
	QueueSize int  `yaml:"queue_size" toml:"queue_size"`
}

type ClientConfig struct {
	Address  string `yaml:"address" toml:"address"`
	TLS      bool   `yaml:"tls" toml:"tls"`
	Insecure bool   `yaml:"insecure" toml:"insecure"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
}

type Config struct {
	Backend     string        `yaml:"backend" toml:"backend"`
	BufferSize  int           `yaml:"buffer_size" toml:"buffer_size"`
	JoinWarning time.Duration `yaml:"join_warning" toml:"join_warning"`
	Paths       []PathConfig  `yaml:"paths" toml:"paths"`
	Suffixes    []string      `yaml:"suffixes" toml:"suffixes"`
	Log         LogConfig     `yaml:"log" toml:"log"`
	Server      ServerConfig  `yaml:"server" toml:"server"`
	Client      ClientConfig  `yaml:"client" toml:"client"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// ReadConfig decodes file as TOML when it ends in .toml and as YAML
// otherwise, then fills defaults and validates the result.
func ReadConfig(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	c := Config{}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".toml":
		if _, err = toml.Decode(string(data), &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", file, err)
		}
	default:
		if err = yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", file, err)
		}
	}

	c.applyDefaults()
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = string(notify.Native)
	}
	if c.BufferSize == 0 {
		c.BufferSize = notify.DefaultBufferSize
	}
	if c.JoinWarning <= 0 {
		c.JoinWarning = DefaultJoinWarning
	}
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.QueueSize <= 0 {
		c.Server.QueueSize = DefaultQueueSize
	}
	if c.Client.Address == "" {
		c.Client.Address = c.Server.Address
	}
	if c.Log.File != "" {
		if c.Log.MaxSizeMB == 0 {
			c.Log.MaxSizeMB = 100
		}
		if c.Log.MaxBackups == 0 {
			c.Log.MaxBackups = 3
		}
	}
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := notify.ParseBackend(c.Backend); err != nil {
		errs = append(errs, err)
	}
	if c.BufferSize < 0 {
		errs = append(errs, ErrConfigBuffer)
	}
	for i, p := range c.Paths {
		if strings.TrimSpace(p.Path) == "" {
			errs = append(errs, fmt.Errorf("%w (entry %d)", ErrConfigPath, i))
		}
	}
	if strings.TrimSpace(c.Server.Address) == "" {
		errs = append(errs, ErrConfigAddress)
	}
	return errors.Join(errs...)
}
