package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ListenAddress: "127.0.0.1:50051",
		Remote: Remote{
			BaseURL:   "https://securityapi.example.com/",
			SystemID:  "sys-1",
			AuthToken: "token",
		},
	}
}

// TestValidate checks required fields and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing listen address.
	require.Error(t, Validate(new(Config)))
	require.Error(t, Validate(nil))

	// Bad listen address.
	cfg := validConfig()
	cfg.ListenAddress = "bad:address"
	require.Error(t, Validate(cfg))

	// Missing remote.
	cfg = validConfig()
	cfg.Remote.SystemID = ""
	require.Error(t, Validate(cfg))

	// Bad remote URL.
	cfg = validConfig()
	cfg.Remote.BaseURL = "not a url"
	require.Error(t, Validate(cfg))

	// Negative retry count.
	cfg = validConfig()
	cfg.Remote.RetryCount = -1
	require.Error(t, Validate(cfg))

	// Sensor without id.
	cfg = validConfig()
	cfg.Sensors = []Sensor{{DeviceClass: "door"}}
	require.Error(t, Validate(cfg))

	require.NoError(t, Validate(validConfig()))
}

// TestValidate_Defaults ensures zero values are replaced with defaults.
func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.PollInterval = -time.Second
	require.NoError(t, Validate(cfg))

	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, DefaultStateFilename, cfg.StateFile)
	require.Equal(t, DefaultJournalFilename, cfg.JournalFile)
	require.Equal(t, DefaultWebhookID, cfg.Webhook.ID)
	require.EqualValues(t, DefaultWebhookMaxBodyBytes, cfg.Webhook.MaxBodyBytes)
	require.Equal(t, DefaultRemoteTimeout, cfg.Remote.Timeout)
	require.Equal(t, DefaultRetryWait, cfg.Remote.RetryWait)
	require.Equal(t, DefaultRetryMaxWait, cfg.Remote.RetryMaxWait)
	require.Zero(t, cfg.PollInterval)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := validConfig()
	cfg.Sensors = []Sensor{{EntityID: "binary_sensor.frontdoor", DeviceClass: "door", Name: "Front Door"}}
	cfg.PollInterval = 30 * time.Second

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ListenAddress, loaded.ListenAddress)
	require.Equal(t, cfg.Remote, loaded.Remote)
	require.Equal(t, cfg.Sensors, loaded.Sensors)
	require.Equal(t, cfg.PollInterval, loaded.PollInterval)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestSave_Nil rejects nil configuration.
func TestSave_Nil(t *testing.T) {
	t.Parallel()

	require.Error(t, Save(filepath.Join(t.TempDir(), "x.yaml"), nil))
}

// TestDefault checks the generated settings only miss the remote service.
func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.Equal(t, DefaultRetryCount, cfg.Remote.RetryCount)
	require.ErrorIs(t, Validate(cfg), errRemoteRequired)

	cfg.Remote.BaseURL = "https://securityapi.example.com/"
	cfg.Remote.SystemID = "sys-1"
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultWebhookListenAddress, cfg.Webhook.ListenAddress)
}

// TestLoadClient accepts a panel settings file without the remote service.
func TestLoadClient(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "panel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: 192.0.2.10:50051\n"), DefaultFilePermissions))

	_, err := Load(path)
	require.ErrorIs(t, err, errRemoteRequired)

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	require.Equal(t, "192.0.2.10:50051", cfg.ListenAddress)
	require.Equal(t, DefaultTimeout, cfg.Timeout)

	require.NoError(t, os.WriteFile(path, []byte("timeout: 3s\n"), DefaultFilePermissions))

	_, err = LoadClient(path)
	require.ErrorIs(t, err, errListenAddressRequired)

	_, err = LoadClient(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
