package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of one installation.
type Config struct {
	// ListenAddress is the gRPC control surface address.
	ListenAddress string `yaml:"listen_addr"`
	// Webhook configures the inbound webhook listener.
	Webhook Webhook `yaml:"webhook"`
	// Remote configures the remote security service.
	Remote Remote `yaml:"remote"`
	// StateFile is the path to the JSON file storing the alarm session.
	StateFile string `yaml:"state_file"`
	// JournalFile is the path to the sqlite transition journal.
	JournalFile string `yaml:"journal_file"`
	// PollInterval enables periodic status polling of an active alarm when positive.
	PollInterval time.Duration `yaml:"poll_interval"`
	// Timeout is the per-call timeout used by control surface clients.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum log level.
	LogLevel string `yaml:"log_level"`
	// LogFormat is "console" or "json".
	LogFormat string `yaml:"log_format"`
	// Sensors describes known sensors so triggers can carry their class and name.
	Sensors []Sensor `yaml:"sensors"`
}

// Webhook configures the inbound webhook listener.
type Webhook struct {
	// ListenAddress is the HTTP listen address.
	ListenAddress string `yaml:"listen_addr"`
	// ID is the last path segment of the webhook URL.
	ID string `yaml:"id"`
	// Token, when set, must be presented in the X-Webhook-Token header.
	Token string `yaml:"token"`
	// MaxBodyBytes caps the size of an accepted request body.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// Remote configures the remote security service client.
type Remote struct {
	// BaseURL is the root of the remote API.
	BaseURL string `yaml:"base_url"`
	// SystemID identifies the installation.
	SystemID string `yaml:"system_id"`
	// AuthToken authenticates the installation.
	AuthToken string `yaml:"auth_token"`
	// Timeout bounds every remote call, retries included.
	Timeout time.Duration `yaml:"timeout"`
	// RetryCount is the number of retries after a network failure.
	RetryCount int `yaml:"retry_count"`
	// RetryWait is the initial backoff between retries.
	RetryWait time.Duration `yaml:"retry_wait"`
	// RetryMaxWait caps the backoff between retries.
	RetryMaxWait time.Duration `yaml:"retry_max_wait"`
}

// Sensor is a sensor directory entry.
type Sensor struct {
	EntityID    string `yaml:"entity_id"`
	DeviceClass string `yaml:"device_class"`
	Name        string `yaml:"name"`
}

const (
	// DefaultConfigFilename is the default filename for installation settings.
	DefaultConfigFilename = "alarm-coordinator-settings.yaml"

	// DefaultStateFilename is the default filename for the session JSON.
	DefaultStateFilename = "alarm-coordinator-state.json"

	// DefaultJournalFilename is the default filename for the transition journal.
	DefaultJournalFilename = "alarm-coordinator-journal.db"

	// DefaultListenAddress is the default gRPC control surface address.
	DefaultListenAddress = "127.0.0.1:50051"

	// DefaultWebhookListenAddress is the default webhook listen address.
	DefaultWebhookListenAddress = "127.0.0.1:8123"

	// DefaultWebhookID is the default webhook path segment.
	DefaultWebhookID = "alarmwebhook"

	// DefaultWebhookMaxBodyBytes is the default request body limit.
	DefaultWebhookMaxBodyBytes = 1 << 20

	// DefaultTimeout is the default duration for control surface calls.
	DefaultTimeout = 5 * time.Second

	// DefaultRemoteTimeout is the default bound for remote calls.
	DefaultRemoteTimeout = 10 * time.Second

	// DefaultRetryCount is the default number of network retries.
	DefaultRetryCount = 2

	// DefaultRetryWait is the default initial retry backoff.
	DefaultRetryWait = 500 * time.Millisecond

	// DefaultRetryMaxWait is the default maximum retry backoff.
	DefaultRetryMaxWait = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errListenAddressRequired is returned when the gRPC address is missing.
	errListenAddressRequired = errors.New("listen address must be provided")
	// errRemoteRequired is returned when the remote service is not configured.
	errRemoteRequired = errors.New("remote base_url and system_id must be provided")
	// errNegativeRetry is returned for a negative retry count.
	errNegativeRetry = errors.New("remote retry_count must not be negative")
	// errSensorEntityRequired is returned for a sensor entry without id.
	errSensorEntityRequired = errors.New("sensor entity_id must be provided")
)

// Default returns settings with every default filled in. The remote
// service still has to be configured before the file validates.
func Default() *Config {
	return &Config{
		ListenAddress: DefaultListenAddress,
		Webhook: Webhook{
			ListenAddress: DefaultWebhookListenAddress,
			ID:            DefaultWebhookID,
			MaxBodyBytes:  DefaultWebhookMaxBodyBytes,
		},
		Remote: Remote{
			Timeout:      DefaultRemoteTimeout,
			RetryCount:   DefaultRetryCount,
			RetryWait:    DefaultRetryWait,
			RetryMaxWait: DefaultRetryMaxWait,
		},
		StateFile:   DefaultStateFilename,
		JournalFile: DefaultJournalFilename,
		Timeout:     DefaultTimeout,
		LogLevel:    "info",
		LogFormat:   "console",
	}
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadClient reads settings for a client of the coordinator. Only the
// coordinator address and call timeout are checked, so a panel host does
// not need the remote service credentials.
func LoadClient(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := validateClient(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func read(path string) (*Config, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Settings carry the auth token, so restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults.
func Validate(cfg *Config) error {
	if err := validateClient(cfg); err != nil {
		return err
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.JournalFile == "" {
		cfg.JournalFile = DefaultJournalFilename
	}

	if cfg.PollInterval < 0 {
		cfg.PollInterval = 0
	}

	if err := validateWebhook(&cfg.Webhook); err != nil {
		return err
	}

	if err := validateRemote(&cfg.Remote); err != nil {
		return err
	}

	for i := range cfg.Sensors {
		cfg.Sensors[i].EntityID = strings.TrimSpace(cfg.Sensors[i].EntityID)
		if cfg.Sensors[i].EntityID == "" {
			return fmt.Errorf("sensor #%d: %w", i, errSensorEntityRequired)
		}
	}

	return nil
}

// validateClient checks the fields shared by the coordinator and its clients.
func validateClient(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		return errListenAddressRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return nil
}

func validateWebhook(w *Webhook) error {
	if w.ID == "" {
		w.ID = DefaultWebhookID
	}

	if w.MaxBodyBytes <= 0 {
		w.MaxBodyBytes = DefaultWebhookMaxBodyBytes
	}

	if w.ListenAddress == "" {
		return nil
	}

	if _, err := net.ResolveTCPAddr("tcp", w.ListenAddress); err != nil {
		return fmt.Errorf("invalid webhook listen address: %w", err)
	}

	return nil
}

func validateRemote(r *Remote) error {
	if r.BaseURL == "" || r.SystemID == "" {
		return errRemoteRequired
	}

	if _, err := url.ParseRequestURI(r.BaseURL); err != nil {
		return fmt.Errorf("invalid remote base URL: %w", err)
	}

	if r.RetryCount < 0 {
		return errNegativeRetry
	}

	if r.Timeout <= 0 {
		r.Timeout = DefaultRemoteTimeout
	}

	if r.RetryWait <= 0 {
		r.RetryWait = DefaultRetryWait
	}

	if r.RetryMaxWait < r.RetryWait {
		r.RetryMaxWait = max(DefaultRetryMaxWait, r.RetryWait)
	}

	return nil
}
