package model

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keys. Each maps to one or more environment variables in envBindings.
const (
	KeyToken        = "token"
	KeyProjectKey   = "project_key"
	KeyHostname     = "hostname"
	KeyTransitionID = "transition_id"
	KeyBranch       = "branch"
	KeyFixVersion   = "fix_version"
	KeyLogLevel     = "log_level"
	KeyLogFormat    = "log_format"
	KeySentryDSN    = "sentry_dsn"
	KeyEnvironment  = "environment"
	KeyTimeout      = "timeout"
	KeyMaxRetries   = "max_retries"
	KeyUseKeyring   = "use_keyring"
	KeyDryRun       = "dry_run"
)

// envBindings lists the environment variables read for each key, in
// priority order.
var envBindings = map[string][]string{
	KeyToken:        {"TOKEN"},
	KeyProjectKey:   {"JIRA_PROJECT_KEY"},
	KeyHostname:     {"JIRA_HOSTNAME"},
	KeyTransitionID: {"JIRA_TRANSITION_ID"},
	KeyBranch:       {"GITHUB_HEAD_REF", "GITHUB_REF"},
	KeyFixVersion:   {"JIRA_FIX_VERSION"},
	KeyLogLevel:     {"LOG_LEVEL"},
	KeyLogFormat:    {"LOG_FORMAT"},
	KeySentryDSN:    {"SENTRY_DSN"},
	KeyEnvironment:  {"ENVIRONMENT"},
	KeyTimeout:      {"JIRA_TIMEOUT"},
	KeyMaxRetries:   {"JIRA_MAX_RETRIES"},
	KeyUseKeyring:   {"JIRA_USE_KEYRING"},
	KeyDryRun:       {"JIRA_DRY_RUN"},
}

// requiredKeys must resolve to a non-empty value, in reporting order.
var requiredKeys = []string{
	KeyToken, KeyProjectKey, KeyHostname, KeyTransitionID, KeyBranch,
}

// branchRefPrefix is stripped from refs such as GITHUB_REF.
const branchRefPrefix = "refs/heads/"

// Config is the settings of one transition run. It is built once at
// startup and passed to each operation.
type Config struct {
	Token        string `mapstructure:"token"`
	ProjectKey   string `mapstructure:"project_key"`
	Hostname     string `mapstructure:"hostname"`
	TransitionID string `mapstructure:"transition_id"`
	Branch       string `mapstructure:"branch"`

	// FixVersion is optional; empty skips the version update.
	FixVersion string `mapstructure:"fix_version"`

	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	SentryDSN   string `mapstructure:"sentry_dsn"`
	Environment string `mapstructure:"environment"`

	// Timeout bounds each tracker request. Zero means no timeout.
	Timeout time.Duration `mapstructure:"timeout"`

	// MaxRetries is how often a rate-limited request is retried.
	MaxRetries int `mapstructure:"max_retries"`

	// UseKeyring allows reading the token from the system keyring when
	// no TOKEN is set.
	UseKeyring bool `mapstructure:"use_keyring"`

	// DryRun looks the issue up but changes nothing.
	DryRun bool `mapstructure:"dry_run"`
}

// MissingConfigError lists the required settings that resolved empty.
type MissingConfigError struct {
	Keys []string
}

func (e *MissingConfigError) Error() string {
	vars := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		vars = append(vars, strings.Join(envBindings[k], " or "))
	}
	return fmt.Sprintf("required env var not set: %s", strings.Join(vars, ", "))
}

// IsMissingConfig reports whether err is a MissingConfigError.
func IsMissingConfig(err error) bool {
	var missing *MissingConfigError
	return errors.As(err, &missing)
}

// EnvVars returns the environment variables bound to key.
func EnvVars(key string) []string {
	return envBindings[key]
}

// TokenLookup fetches a token from a secondary store such as the keyring.
type TokenLookup func() (string, error)

// NewViper returns a Viper instance with every key bound to its
// environment variables and defaults applied. If path is non-empty the
// YAML file is used as a lower-priority source.
func NewViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(args...)
	}

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyEnvironment, "ci")
	v.SetDefault(KeyTimeout, 0)
	v.SetDefault(KeyMaxRetries, 0)

	return v
}

// LoadConfig resolves a Config from v, which should come from NewViper.
// tokenLookup is consulted only when UseKeyring is set and no token was
// found elsewhere; it may be nil. A MissingConfigError is returned when
// any required setting is empty.
func LoadConfig(v *viper.Viper, tokenLookup TokenLookup) (Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(*os.PathError); !ok {
				return Config{}, fmt.Errorf(
					"reading config %s: %w", v.ConfigFileUsed(), err,
				)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.ProjectKey = strings.TrimSpace(cfg.ProjectKey)
	cfg.Hostname = strings.TrimSpace(cfg.Hostname)
	cfg.TransitionID = strings.TrimSpace(cfg.TransitionID)
	cfg.Branch = strings.TrimPrefix(strings.TrimSpace(cfg.Branch), branchRefPrefix)
	cfg.FixVersion = strings.TrimSpace(cfg.FixVersion)

	if cfg.Token == "" && cfg.UseKeyring && tokenLookup != nil {
		// A keyring miss is reported as a missing TOKEN below.
		if token, err := tokenLookup(); err == nil {
			cfg.Token = strings.TrimSpace(token)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every required setting is present.
func (c Config) Validate() error {
	values := map[string]string{
		KeyToken:        c.Token,
		KeyProjectKey:   c.ProjectKey,
		KeyHostname:     c.Hostname,
		KeyTransitionID: c.TransitionID,
		KeyBranch:       c.Branch,
	}

	var missing []string
	for _, key := range requiredKeys {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &MissingConfigError{Keys: missing}
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}
