package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/michaelbrown/coderun/internal/sandbox"
)

const (
	BackendProcess = "process"
	BackendDocker  = "docker"
)

type ServerConfig struct {
	Port         int           `mapstructure:"port" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

type DockerConfig struct {
	Binary  string   `mapstructure:"binary" yaml:"binary"`
	Image   string   `mapstructure:"image" yaml:"image"`
	Images  []string `mapstructure:"images" yaml:"images"`
	Network bool     `mapstructure:"network" yaml:"network"`
}

type RunnerConfig struct {
	Backend     string        `mapstructure:"backend" yaml:"backend"`
	Interpreter string        `mapstructure:"interpreter" yaml:"interpreter"`
	InlineFlag  string        `mapstructure:"inline_flag" yaml:"inline_flag"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxOutput   int           `mapstructure:"max_output" yaml:"max_output"`
	Env         []string      `mapstructure:"env" yaml:"env"`
	Docker      DockerConfig  `mapstructure:"docker" yaml:"docker"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Runner RunnerConfig `mapstructure:"runner" yaml:"runner"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// Load reads configuration from path, or from coderun.yaml in the working
// directory or $HOME/.coderun when path is empty. A missing file is not an
// error. A .env file in the working directory is loaded first, and
// CODERUN_* environment variables (e.g. CODERUN_RUNNER_TIMEOUT) override
// file values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("coderun")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.coderun")
	}

	v.SetEnvPrefix("coderun")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	policy := sandbox.DefaultPolicy()

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", time.Minute)
	v.SetDefault("server.max_body_bytes", int64(1<<20))

	v.SetDefault("runner.backend", BackendProcess)
	v.SetDefault("runner.interpreter", policy.Interpreter)
	v.SetDefault("runner.inline_flag", policy.InlineFlag)
	v.SetDefault("runner.timeout", policy.Timeout)
	v.SetDefault("runner.max_output", policy.MaxOutput)
	v.SetDefault("runner.env", []string{})
	v.SetDefault("runner.docker.binary", "docker")
	v.SetDefault("runner.docker.image", policy.Image)
	v.SetDefault("runner.docker.images", policy.Images)
	v.SetDefault("runner.docker.network", policy.Network)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks values that would otherwise fail at request time.
func (c *Config) Validate() error {
	switch c.Runner.Backend {
	case BackendProcess, BackendDocker:
	default:
		return fmt.Errorf("unknown runner backend %q (want %s or %s)", c.Runner.Backend, BackendProcess, BackendDocker)
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server max body bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Runner.Timeout {
		return fmt.Errorf("server write timeout (%s) must exceed runner timeout (%s)", c.Server.WriteTimeout, c.Runner.Timeout)
	}
	return nil
}

// Policy returns the sandbox policy described by the runner section.
func (c *Config) Policy() sandbox.Policy {
	return sandbox.Policy{
		Interpreter: c.Runner.Interpreter,
		InlineFlag:  c.Runner.InlineFlag,
		Timeout:     c.Runner.Timeout,
		MaxOutput:   c.Runner.MaxOutput,
		Env:         c.Runner.Env,
		Network:     c.Runner.Docker.Network,
		Image:       c.Runner.Docker.Image,
		Images:      c.Runner.Docker.Images,
	}
}

// Sandbox builds the configured sandbox backend.
func (c *Config) Sandbox() sandbox.Sandbox {
	if c.Runner.Backend == BackendDocker {
		return sandbox.NewDockerSandbox(c.Policy(), c.Runner.Docker.Binary)
	}
	return sandbox.NewProcessSandbox(c.Policy())
}
