package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Role selects which agent the process serves.
type Role string

const (
	RoleSummary Role = "summary"
	RoleFinder  Role = "finder"
)

const (
	DefaultSummaryPort = 10004
	DefaultFinderPort  = 10003
	DefaultDelegateURL = "http://localhost:10003"
)

var ErrMissingSetting = errors.New("config: missing required setting")

type Config struct {
	Role     Role           `mapstructure:"-"`
	Server   ServerConfig   `mapstructure:"server"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Delegate DelegateConfig `mapstructure:"delegate"`
	Task     TaskConfig     `mapstructure:"task"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding" validate:"oneof=console json"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// AgentConfig feeds the published agent card.
type AgentConfig struct {
	Name      string `mapstructure:"name"`
	PublicURL string `mapstructure:"public_url" validate:"omitempty,url"`
	Version   string `mapstructure:"version"`
}

// ToolsConfig holds MCP endpoints. An endpoint is either an http(s) URL or
// a command line that starts a stdio server.
type ToolsConfig struct {
	SummarizeEndpoint string        `mapstructure:"summarize_endpoint"`
	CombineEndpoint   string        `mapstructure:"combine_endpoint"`
	ChannelEndpoint   string        `mapstructure:"channel_endpoint"`
	PlaylistEndpoint  string        `mapstructure:"playlist_endpoint"`
	PoolSize          int           `mapstructure:"pool_size" validate:"min=1"`
	CallTimeout       time.Duration `mapstructure:"call_timeout" validate:"min=0"`
	HTTPTransport     string        `mapstructure:"http_transport" validate:"oneof=sse streamable"`
	AuthToken         string        `mapstructure:"auth_token"`
}

type DelegateConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`
	APIKey  string        `mapstructure:"api_key"`
}

type TaskConfig struct {
	SniffFailureText bool `mapstructure:"sniff_failure_text"`
	ItemConcurrency  int  `mapstructure:"item_concurrency" validate:"min=1"`
}

type AuthConfig struct {
	APIKey         string   `mapstructure:"api_key"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// envAliases keeps the variable names the agents were deployed with.
var envAliases = map[string][]string{
	"tools.summarize_endpoint": {"MCP_URL_SUMMARIZE"},
	"tools.combine_endpoint":   {"MCP_URL_COMBINE"},
	"tools.channel_endpoint":   {"MCP_URL_GET_CHANNEL"},
	"tools.playlist_endpoint":  {"MCP_URL_GET_PLAYLIST"},
	"delegate.url":             {"YOUTUBE_AGENT_A2A_URL"},
}

// Load reads .env files, the optional config file at path and the
// environment, then validates the result for the given role.
func Load(path string, role Role) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, role)
	v.SetEnvPrefix("TUBESUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, aliases := range envAliases {
		names := append([]string{"TUBESUM_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Role = role

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, role Role) {
	port := DefaultSummaryPort
	// The finder decides outcomes from structured results only.
	sniff := true
	if role == RoleFinder {
		port = DefaultFinderPort
		sniff = false
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", port)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.output_paths", []string{"stdout"})
	v.SetDefault("logger.error_output_paths", []string{"stderr"})

	v.SetDefault("agent.name", "")
	v.SetDefault("agent.public_url", "")
	v.SetDefault("agent.version", "1.0.0")

	v.SetDefault("tools.summarize_endpoint", "")
	v.SetDefault("tools.combine_endpoint", "")
	v.SetDefault("tools.channel_endpoint", "")
	v.SetDefault("tools.playlist_endpoint", "")
	v.SetDefault("tools.auth_token", "")
	v.SetDefault("tools.pool_size", 1)
	v.SetDefault("tools.call_timeout", 0)
	v.SetDefault("tools.http_transport", "sse")

	v.SetDefault("delegate.url", DefaultDelegateURL)
	v.SetDefault("delegate.timeout", 120*time.Second)
	v.SetDefault("delegate.api_key", "")

	v.SetDefault("task.sniff_failure_text", sniff)
	v.SetDefault("task.item_concurrency", 1)

	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.allowed_origins", []string{"*"})
}

// loadDotEnv loads .env and then .env.<APP_ENV> on top of it. Missing files
// are fine.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		if err := godotenv.Overload(".env." + env); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load .env.%s: %w", env, err)
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks field rules and the settings the role cannot start without.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			var msgs []string
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed rule '%s' (value: '%v')", e.Namespace(), e.Tag(), e.Value()))
			}
			return fmt.Errorf("config: invalid settings: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}

	var missing []string
	switch c.Role {
	case RoleSummary:
		if c.Tools.SummarizeEndpoint == "" {
			missing = append(missing, "MCP_URL_SUMMARIZE")
		}
		if c.Tools.CombineEndpoint == "" {
			missing = append(missing, "MCP_URL_COMBINE")
		}
		if c.Delegate.URL == "" {
			missing = append(missing, "YOUTUBE_AGENT_A2A_URL")
		}
	case RoleFinder:
		if c.Tools.ChannelEndpoint == "" {
			missing = append(missing, "MCP_URL_GET_CHANNEL")
		}
		if c.Tools.PlaylistEndpoint == "" {
			missing = append(missing, "MCP_URL_GET_PLAYLIST")
		}
	default:
		return fmt.Errorf("config: unknown role %q", c.Role)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
	}
	return nil
}
