package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "LEOCONNECT"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "leoconnect.db"
	defaultLogLevel      = "info"
	defaultTokenIssuer   = "leoconnect-api"
	defaultTokenAudience = "leoconnect-app"
	defaultAdminAudience = "leoconnect-admin"
	defaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	defaultNotifyQueue   = 256
	defaultNotifyWorkers = 4
	defaultTokenTTLMin   = 1440
	defaultAdminTTLMin   = 60
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress            string
	DatabasePath           string
	LogLevel               string
	GoogleAudience         string
	GoogleJWKSURL          string
	TokenSigningSecret     string
	TokenIssuer            string
	TokenAudience          string
	TokenTTLMinutes        int
	AdminSigningSecret     string
	AdminAudience          string
	AdminTTLMinutes        int
	AdminBootstrapEmail    string
	AdminBootstrapPassword string
	AdminBootstrapName     string
	MediaWebhookURL        string
	NotifyQueueSize        int
	NotifyWorkers          int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("google.jwks_url", defaultGoogleJWKSURL)
	configViper.SetDefault("token.issuer", defaultTokenIssuer)
	configViper.SetDefault("token.audience", defaultTokenAudience)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMin)
	configViper.SetDefault("admin.audience", defaultAdminAudience)
	configViper.SetDefault("admin.ttl_minutes", defaultAdminTTLMin)
	configViper.SetDefault("notify.queue_size", defaultNotifyQueue)
	configViper.SetDefault("notify.workers", defaultNotifyWorkers)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:            configViper.GetString("http.address"),
		DatabasePath:           configViper.GetString("database.path"),
		LogLevel:               configViper.GetString("log.level"),
		GoogleAudience:         configViper.GetString("google.audience"),
		GoogleJWKSURL:          configViper.GetString("google.jwks_url"),
		TokenSigningSecret:     configViper.GetString("token.signing_secret"),
		TokenIssuer:            configViper.GetString("token.issuer"),
		TokenAudience:          configViper.GetString("token.audience"),
		TokenTTLMinutes:        configViper.GetInt("token.ttl_minutes"),
		AdminSigningSecret:     configViper.GetString("admin.signing_secret"),
		AdminAudience:          configViper.GetString("admin.audience"),
		AdminTTLMinutes:        configViper.GetInt("admin.ttl_minutes"),
		AdminBootstrapEmail:    configViper.GetString("admin.bootstrap_email"),
		AdminBootstrapPassword: configViper.GetString("admin.bootstrap_password"),
		AdminBootstrapName:     configViper.GetString("admin.bootstrap_name"),
		MediaWebhookURL:        configViper.GetString("media.webhook_url"),
		NotifyQueueSize:        configViper.GetInt("notify.queue_size"),
		NotifyWorkers:          configViper.GetInt("notify.workers"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.GoogleAudience) == "" {
		return fmt.Errorf("google.audience is required")
	}
	if strings.TrimSpace(c.TokenSigningSecret) == "" {
		return fmt.Errorf("token.signing_secret is required")
	}
	if strings.TrimSpace(c.AdminSigningSecret) == "" {
		return fmt.Errorf("admin.signing_secret is required")
	}
	if c.TokenSigningSecret == c.AdminSigningSecret {
		return fmt.Errorf("admin.signing_secret must differ from token.signing_secret")
	}
	if c.TokenTTLMinutes <= 0 || c.AdminTTLMinutes <= 0 {
		return fmt.Errorf("token ttl values must be positive")
	}
	emailSet := strings.TrimSpace(c.AdminBootstrapEmail) != ""
	passwordSet := strings.TrimSpace(c.AdminBootstrapPassword) != ""
	if emailSet != passwordSet {
		return fmt.Errorf("admin.bootstrap_email and admin.bootstrap_password must be set together")
	}
	return nil
}
