// Package config defines the data structures related to configuration and
// includes functions for loading and checking it.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/mro-estimator/pkg/constants"
	"github.com/iwvelando/mro-estimator/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for mro-estimator.
type Configuration struct {
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Server  ServerConfig  `yaml:"server,omitempty"`
	Store   StoreConfig   `yaml:"store,omitempty"`
	CRM     CRMConfig     `yaml:"crm,omitempty"`
	Output  OutputConfig  `yaml:"output,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// ServerConfig holds HTTP server options
type ServerConfig struct {
	Address           string `yaml:"address,omitempty"`
	MaxBodySize       string `yaml:"maxBodySize,omitempty"` // e.g. "64K"
	SessionTTL        string `yaml:"sessionTTL,omitempty"`  // e.g. "2h"
	LeadRatePerMinute int    `yaml:"leadRatePerMinute,omitempty"`
}

// StoreConfig selects the lead store
type StoreConfig struct {
	Driver      string `yaml:"driver,omitempty"` // memory, postgres
	DatabaseURL string `yaml:"databaseURL,omitempty"`
}

// CRMConfig holds HubSpot options. AccessToken takes precedence over the
// connector when both are set.
type CRMConfig struct {
	Enabled        bool   `yaml:"enabled,omitempty"`
	BaseURL        string `yaml:"baseURL,omitempty"`
	FormsURL       string `yaml:"formsURL,omitempty"`
	PortalID       string `yaml:"portalID,omitempty"`
	FormGUID       string `yaml:"formGUID,omitempty"`
	PageURI        string `yaml:"pageURI,omitempty"`
	PageName       string `yaml:"pageName,omitempty"`
	AccessToken    string `yaml:"accessToken,omitempty"`
	ConnectorURL   string `yaml:"connectorURL,omitempty"`
	ConnectorToken string `yaml:"connectorToken,omitempty"`
	Timeout        string `yaml:"timeout,omitempty"` // e.g. "15s"
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputFile", "")

	v.SetDefault("server.address", constants.DefaultServerAddress)
	v.SetDefault("server.maxBodySize", fmt.Sprintf("%d", constants.DefaultMaxBodySizeBytes))
	v.SetDefault("server.sessionTTL", constants.DefaultSessionTTL)
	v.SetDefault("server.leadRatePerMinute", constants.DefaultLeadRatePerMinute)

	v.SetDefault("store.driver", constants.StoreDriverMemory)
	v.SetDefault("store.databaseURL", "")

	v.SetDefault("crm.enabled", false)
	v.SetDefault("crm.baseURL", constants.DefaultCRMBaseURL)
	v.SetDefault("crm.formsURL", constants.DefaultCRMFormsURL)
	v.SetDefault("crm.portalID", "")
	v.SetDefault("crm.formGUID", "")
	v.SetDefault("crm.pageURI", "")
	v.SetDefault("crm.pageName", "MRO Inventory Optimization Calculator")
	v.SetDefault("crm.accessToken", "")
	v.SetDefault("crm.connectorURL", "")
	v.SetDefault("crm.connectorToken", "")
	v.SetDefault("crm.timeout", constants.DefaultCRMTimeout)

	v.SetDefault("output.format", constants.OutputFormatPretty)
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. An empty path loads defaults. Environment variables
// prefixed with MRO_ override both, e.g. MRO_CRM_ACCESSTOKEN.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	if err := configuration.Validate(); err != nil {
		return nil, err
	}

	return &configuration, nil
}

// Validate checks enumerations, sizes and durations.
func (c *Configuration) Validate() error {
	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		return err
	}

	switch c.Store.Driver {
	case constants.StoreDriverMemory:
	case constants.StoreDriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store driver %s requires store.databaseURL", c.Store.Driver)
		}
	default:
		return fmt.Errorf("expected store driver of %s or %s, got %s",
			constants.StoreDriverMemory, constants.StoreDriverPostgres, c.Store.Driver)
	}

	if _, err := c.Server.MaxBodySizeBytes(); err != nil {
		return err
	}
	if _, err := c.Server.SessionTTLDuration(); err != nil {
		return err
	}
	if c.Server.LeadRatePerMinute < 0 {
		return fmt.Errorf("server.leadRatePerMinute must not be negative, got %d", c.Server.LeadRatePerMinute)
	}
	if _, err := c.CRM.TimeoutDuration(); err != nil {
		return err
	}

	return nil
}

// MaxBodySizeBytes returns the configured request body limit in bytes.
func (s ServerConfig) MaxBodySizeBytes() (int64, error) {
	size, err := ParseSize(s.MaxBodySize)
	if err != nil {
		return 0, err
	}
	if size <= 0 {
		return constants.DefaultMaxBodySizeBytes, nil
	}
	return size, nil
}

// SessionTTLDuration returns the idle session lifetime. Zero disables expiry.
func (s ServerConfig) SessionTTLDuration() (time.Duration, error) {
	return parseDuration("server.sessionTTL", s.SessionTTL)
}

// TimeoutDuration returns the per-sync CRM timeout.
func (c CRMConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration("crm.timeout", c.Timeout)
}

func parseDuration(key, value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, value)
	}
	return d, nil
}
