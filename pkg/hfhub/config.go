package hfhub

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MrScripty/Pumas-Library-sub004/pkg/logging"
)

// HubConfig represents the configuration for the Hugging Face Hub client.
type HubConfig struct {
	Logger          logging.Interface
	Token           string        `mapstructure:"hf_token"`
	Endpoint        string        `mapstructure:"endpoint"`
	CacheDir        string        `mapstructure:"cache_dir"`
	UserAgent       string        `mapstructure:"user_agent"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	EtagTimeout     time.Duration `mapstructure:"etag_timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryInterval   time.Duration `mapstructure:"retry_interval"`
	LocalFilesOnly  bool          `mapstructure:"local_files_only"`
}

// defaultHubConfig returns a default configuration.
func defaultHubConfig() *HubConfig {
	return &HubConfig{
		Endpoint:        DefaultEndpoint,
		CacheDir:        GetCacheDir(),
		UserAgent:       "huggingface-hub-go/1.0.0",
		RequestTimeout:  DefaultRequestTimeout,
		EtagTimeout:     DefaultEtagTimeout,
		DownloadTimeout: DownloadTimeout,
		MaxRetries:      DefaultMaxRetries,
		RetryInterval:   DefaultRetryInterval,
		LocalFilesOnly:  false,
		Token:           GetHfToken(),
	}
}

// HubOption represents a configuration option function.
type HubOption func(*HubConfig) error

// Apply applies the given options to the configuration.
func (c *HubConfig) Apply(opts ...HubOption) error {
	for _, o := range opts {
		if o == nil {
			continue
		}

		if err := o(c); err != nil {
			return err
		}
	}
	return nil
}

// NewHubConfig builds and returns a new configuration from the given options.
func NewHubConfig(opts ...HubOption) (*HubConfig, error) {
	c := defaultHubConfig()
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}

	return c, nil
}

// WithLogger specifies the logger.
func WithLogger(logger logging.Interface) HubOption {
	return func(c *HubConfig) error {
		if logger == nil {
			return errors.New("invalid logger nil")
		}

		c.Logger = logger
		return nil
	}
}

// WithEndpoint specifies the Hub endpoint.
func WithEndpoint(endpoint string) HubOption {
	return func(c *HubConfig) error {
		if endpoint == "" {
			return errors.New("endpoint cannot be empty")
		}
		c.Endpoint = endpoint
		return nil
	}
}

// ValidateConfig validates the configuration.
func (c *HubConfig) ValidateConfig() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.CacheDir == "" {
		return errors.New("cache directory is required")
	}

	return nil
}

// ToDownloadConfig converts HubConfig to the per-call DownloadConfig.
func (c *HubConfig) ToDownloadConfig() *DownloadConfig {
	return &DownloadConfig{
		Token:          c.Token,
		CacheDir:       c.CacheDir,
		Endpoint:       c.Endpoint,
		EtagTimeout:    c.EtagTimeout,
		Headers:        BuildHeaders(c.Token, c.UserAgent, nil),
		LocalFilesOnly: c.LocalFilesOnly,
		// Set sensible defaults for common fields.
		Revision: "main",        // Default git branch
		RepoType: RepoTypeModel, // Most common repository type
	}
}
