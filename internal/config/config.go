package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/KennethHeine/chat-ai/internal/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	EnvProd = "production"
	EnvDev  = "development"
	EnvTest = "test"
)

// Session backends. Exactly one is used per deployment.
const (
	BackendCookie = "cookie"
	BackendRedis  = "redis"
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

type Config struct {
	AppEnv    string `mapstructure:"app_env" default:"development" validate:"oneof=development production test"`
	Port      string `mapstructure:"port" default:"3000" validate:"required,numeric"`
	PublicURL string `mapstructure:"public_url"`
	LogLevel  string `mapstructure:"log_level" default:"INFO" validate:"oneof=DEBUG INFO WARN ERROR"`

	GitHubClientID     string `mapstructure:"github_client_id"`
	GitHubClientSecret string `mapstructure:"github_client_secret" secret:"true"`
	GitHubAuthorizeURL string `mapstructure:"github_authorize_url" default:"https://github.com/login/oauth/authorize" validate:"url"`
	GitHubTokenURL     string `mapstructure:"github_token_url" default:"https://github.com/login/oauth/access_token" validate:"url"`
	GitHubAPIURL       string `mapstructure:"github_api_url" default:"https://api.github.com" validate:"url"`

	CopilotTokenURL       string `mapstructure:"copilot_token_url" default:"https://api.github.com/copilot_internal/v2/token" validate:"url"`
	CopilotDefaultBaseURL string `mapstructure:"copilot_default_base_url" default:"https://api.individual.githubcopilot.com" validate:"url"`
	ChatModel             string `mapstructure:"chat_model" default:"gpt-4o" validate:"required"`

	SessionBackend   string `mapstructure:"session_backend" default:"cookie" validate:"oneof=cookie redis sql memory"`
	SessionSecret    string `mapstructure:"session_secret" secret:"true"`
	SessionMaxAge    int    `mapstructure:"session_max_age" default:"86400" validate:"gt=0"`
	SessionTableName string `mapstructure:"session_table_name" default:"sessions" validate:"required"`
	SecureCookies    string `mapstructure:"secure_cookies" default:"auto" validate:"oneof=auto true false"`

	RedisAddr     string `mapstructure:"redis_addr" default:"localhost:6379"`
	RedisPassword string `mapstructure:"redis_password" secret:"true"`
	RedisDB       int    `mapstructure:"redis_db" default:"0" validate:"gte=0"`

	DatabaseURL string `mapstructure:"database_url" secret:"true"`

	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout" default:"10s" validate:"gt=0"`

	RateLimitDefault  int `mapstructure:"rate_limit_default" default:"60" validate:"gt=0"`
	RateLimitUnknown  int `mapstructure:"rate_limit_unknown" default:"5" validate:"gt=0"`
	RateLimitLogin    int `mapstructure:"rate_limit_login" default:"20" validate:"gt=0"`
	RateLimitCallback int `mapstructure:"rate_limit_callback" default:"10" validate:"gt=0"`
	RateLimitMe       int `mapstructure:"rate_limit_me" default:"60" validate:"gt=0"`
	RateLimitToken    int `mapstructure:"rate_limit_token" default:"30" validate:"gt=0"`
	RateLimitLogout   int `mapstructure:"rate_limit_logout" default:"20" validate:"gt=0"`
	RateLimitChat     int `mapstructure:"rate_limit_chat" default:"30" validate:"gt=0"`
}

// Load reads configuration from the environment and, if present, a config
// file. configFile may be empty, in which case ./config.yaml and
// ./config/config.yaml are tried.
func Load(configFile string) (*Config, error) {
	cfg := Config{}
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("config: set defaults: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	t := reflect.TypeOf(cfg)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" {
			key = toSnakeCase(field.Name)
		}
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
		logger.Debug("no config file found, using environment", nil)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}

// Validate checks struct constraints and the cross-field rules that must
// hold before the server starts.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	switch cfg.SessionBackend {
	case BackendCookie:
		if cfg.SessionSecret == "" && !cfg.IsDevelopment() {
			return errors.New("config: SESSION_SECRET is required outside development")
		}
	case BackendSQL:
		if cfg.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the sql session backend")
		}
	case BackendMemory:
		if cfg.AppEnv == EnvProd {
			return errors.New("config: the memory session backend is not allowed in production")
		}
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDev
}

// SecureCookie reports whether session cookies carry the Secure flag.
// Local development usually runs without TLS, so "auto" only enables it
// outside development.
func (c *Config) SecureCookie() bool {
	switch c.SecureCookies {
	case "true":
		return true
	case "false":
		return false
	default:
		return !c.IsDevelopment()
	}
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

// String returns the config with secret fields redacted.
func (c *Config) String() string {
	v := reflect.ValueOf(*c)
	t := reflect.TypeOf(*c)
	var sb strings.Builder
	sb.WriteString("Config{")
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := fmt.Sprintf("%v", v.Field(i).Interface())
		if field.Tag.Get("secret") == "true" && value != "" {
			value = "***REDACTED***"
		}
		sb.WriteString(field.Name + ": " + value)
		if i < t.NumField()-1 {
			sb.WriteString(", ")
		}
	}
	sb.WriteString("}")
	return sb.String()
}

func toSnakeCase(str string) string {
	runes := []rune(str)
	var out []rune
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if !unicode.IsUpper(prev) || nextLower {
				out = append(out, '_')
			}
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}
