package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
proxmox:
  host: pve.example.com:8006
  node: pve1
  username: root
  password: secret
  insecure_skip_verify: true
log:
  level: debug
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "pve.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "pve.example.com:8006", cfg.Proxmox.Host)
	assert.Equal(t, "pve1", cfg.Proxmox.Node)
	assert.True(t, cfg.Proxmox.InsecureSkipVerify)
	assert.Equal(t, DefaultTimeout, cfg.Proxmox.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadJSON(t *testing.T) {
	cfg, err := Load(writeFile(t, "pve.json", `{"proxmox": {"host": "10.0.0.2", "node": "pve2", "token_id": "root@pam!ci", "token_secret": "0b8b2d9c-8a7e-4b4f-9a56-6f2a1c0f8e11"}}`))
	require.NoError(t, err)

	assert.True(t, cfg.Proxmox.UsesToken())
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateCollectsErrors(t *testing.T) {
	err := (&ProxmoxConfig{}).Validate()
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrMissingHost))
	assert.True(t, errors.Is(err, ErrMissingNode))
	assert.True(t, errors.Is(err, ErrMissingAuth))
}

func TestValidateAuth(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *ProxmoxConfig
		wantErr bool
	}{
		{"password", NewProxmox("h", "n", "root", "pw"), false},
		{"password missing", NewProxmox("h", "n", "root", ""), true},
		{"token", NewProxmoxToken("h", "n", "root@pam!ci", "0b8b2d9c-8a7e-4b4f-9a56-6f2a1c0f8e11"), false},
		{"token not uuid", NewProxmoxToken("h", "n", "root@pam!ci", "hunter2"), true},
		{"token id without name", NewProxmoxToken("h", "n", "root@pam", "0b8b2d9c-8a7e-4b4f-9a56-6f2a1c0f8e11"), true},
		{"mixed", &ProxmoxConfig{Host: "h", Node: "n", Username: "root", Password: "pw", TokenID: "root@pam!ci"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAPIURL(t *testing.T) {
	assert.Equal(t, "https://pve:8006/api2/json/", (&ProxmoxConfig{Host: "pve:8006"}).APIURL())
	assert.Equal(t, "http://127.0.0.1:1234/api2/json/", (&ProxmoxConfig{Host: "http://127.0.0.1:1234/"}).APIURL())
}

func TestUserID(t *testing.T) {
	assert.Equal(t, "root@pam", (&ProxmoxConfig{Username: "root"}).UserID())
	assert.Equal(t, "admin@pve", (&ProxmoxConfig{Username: "admin", Realm: "pve"}).UserID())
	assert.Equal(t, "ops@ldap", (&ProxmoxConfig{Username: "ops@ldap", Realm: "pve"}).UserID())
}

func TestRequestTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, (&ProxmoxConfig{}).RequestTimeout())
	assert.Equal(t, 5*time.Second, (&ProxmoxConfig{Timeout: 5}).RequestTimeout())
}
