package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type config struct {
	Namespace string `envconfig:"k8s_namespace" default:"default"`

	GrafanaURL          string        `envconfig:"grafana_url" default:"http://grafana:3000"`
	GrafanaUsername     string        `envconfig:"grafana_username"`
	GrafanaPassword     string        `envconfig:"grafana_password"`
	GrafanaPasswordFile string        `envconfig:"grafana_password_file"`
	GrafanaTimeout      time.Duration `envconfig:"grafana_timeout" default:"30s"`

	// Retry budget for reaching Grafana at the start of each cycle.
	ConnectAttempts int           `envconfig:"grafana_connect_attempts" default:"5"`
	ConnectBackoff  time.Duration `envconfig:"grafana_connect_backoff" default:"10s"`
	SearchPageSize  int           `envconfig:"grafana_search_page_size" default:"10"`

	ServiceAccountName string `split_words:"true" default:"Provisioned-SA"`
	ServiceAccountRole string `split_words:"true" default:"Admin"`
	TokenName          string `split_words:"true" default:"my-grafana-token"`
	TokenSecretName    string `split_words:"true" default:"my-grafana-token-secret"`
	CheckIntervalInS   int    `envconfig:"check_interval_in_s" default:"60"`

	// RemintOnMissingSecret mints a new token for a pre-existing account when
	// its secret has gone missing.
	RemintOnMissingSecret bool `split_words:"true" default:"false"`

	MetricsAddr string     `split_words:"true" default:":8080"`
	LogLevel    slog.Level `split_words:"true" default:"info"`
	LogFormat   string     `split_words:"true" default:"text"`
}

var errPasswordRequired = errors.New("grafana password is not provided: set GRAFANA_PASSWORD or GRAFANA_PASSWORD_FILE")

// LoadConfig reads the configuration from the environment. The Grafana
// password may be given inline or read from a mounted file; the inline value
// takes precedence.
func LoadConfig() (config, error) {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		return config{}, err
	}
	if cfg.GrafanaPassword == "" && cfg.GrafanaPasswordFile != "" {
		password, err := readPasswordFile(cfg.GrafanaPasswordFile)
		if err != nil {
			return config{}, err
		}
		cfg.GrafanaPassword = password
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	cfg.GrafanaURL = strings.TrimRight(cfg.GrafanaURL, "/")
	return cfg, nil
}

func readPasswordFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading grafana password file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (c config) validate() error {
	if c.GrafanaPassword == "" {
		return errPasswordRequired
	}
	if c.CheckIntervalInS <= 0 {
		return fmt.Errorf("CHECK_INTERVAL_IN_S must be positive: %d", c.CheckIntervalInS)
	}
	if c.ConnectAttempts < 1 {
		return fmt.Errorf("GRAFANA_CONNECT_ATTEMPTS must be at least 1: %d", c.ConnectAttempts)
	}
	if c.SearchPageSize < 1 {
		return fmt.Errorf("GRAFANA_SEARCH_PAGE_SIZE must be at least 1: %d", c.SearchPageSize)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json: %q", c.LogFormat)
	}
	return nil
}

func (c config) checkInterval() time.Duration {
	return time.Duration(c.CheckIntervalInS) * time.Second
}
