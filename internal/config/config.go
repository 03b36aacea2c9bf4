package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v2"
)

const (
	DefaultRealm     = "pam"
	DefaultTimeout   = 30
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

var (
	ErrMissingHost = errors.New("proxmox host is required")
	ErrMissingNode = errors.New("proxmox node is required")
	ErrMissingAuth = errors.New("either username/password or token_id/token_secret is required")
	ErrMixedAuth   = errors.New("username/password and token_id/token_secret are mutually exclusive")
)

type AppConfig struct {
	Proxmox *ProxmoxConfig `json:"proxmox" yaml:"proxmox"`
	Log     *LogConfig     `json:"log" yaml:"log"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type ProxmoxConfig struct {
	Host               string `json:"host" yaml:"host"`
	Node               string `json:"node" yaml:"node"`
	Username           string `json:"username" yaml:"username"`
	Password           string `json:"password" yaml:"password"`
	Realm              string `json:"realm" yaml:"realm"`
	TokenID            string `json:"token_id" yaml:"token_id"`
	TokenSecret        string `json:"token_secret" yaml:"token_secret"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	Timeout            int    `json:"timeout" yaml:"timeout"`
}

func NewProxmox(host, node, username, password string) *ProxmoxConfig {
	return &ProxmoxConfig{
		Host:     host,
		Node:     node,
		Username: username,
		Password: password,
		Timeout:  DefaultTimeout,
	}
}

func NewProxmoxToken(host, node, tokenID, tokenSecret string) *ProxmoxConfig {
	return &ProxmoxConfig{
		Host:        host,
		Node:        node,
		TokenID:     tokenID,
		TokenSecret: tokenSecret,
		Timeout:     DefaultTimeout,
	}
}

func NewLog(level, format string) *LogConfig {
	return &LogConfig{
		Level:  level,
		Format: format,
	}
}

func NewConfig(proxmoxConfig *ProxmoxConfig, logConfig *LogConfig) *AppConfig {
	ret := &AppConfig{
		Proxmox: proxmoxConfig,
		Log:     logConfig,
	}

	ret.setDefaults()

	return ret
}

// Load reads a YAML file. JSON files are accepted too, YAML being a superset.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	ret := &AppConfig{}
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	ret.setDefaults()

	return ret, nil
}

func (c *AppConfig) setDefaults() {
	if c.Proxmox == nil {
		c.Proxmox = &ProxmoxConfig{}
	}

	if c.Log == nil {
		c.Log = &LogConfig{}
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	if c.Proxmox.Timeout <= 0 {
		c.Proxmox.Timeout = DefaultTimeout
	}
}

func (c *AppConfig) Validate() error {
	return c.Proxmox.Validate()
}

// Validate reports every problem at once rather than the first one.
func (p *ProxmoxConfig) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(p.Host) == "" {
		result = multierror.Append(result, ErrMissingHost)
	}

	if strings.TrimSpace(p.Node) == "" {
		result = multierror.Append(result, ErrMissingNode)
	}

	hasPassword := p.Username != "" || p.Password != ""
	hasToken := p.TokenID != "" || p.TokenSecret != ""

	switch {
	case hasPassword && hasToken:
		result = multierror.Append(result, ErrMixedAuth)
	case hasToken:
		if p.TokenID == "" || p.TokenSecret == "" {
			result = multierror.Append(result, fmt.Errorf("token_id and token_secret must both be set"))
		}
		if !strings.Contains(p.TokenID, "!") {
			result = multierror.Append(result, fmt.Errorf("token_id %q must have the form user@realm!name", p.TokenID))
		}
		if p.TokenSecret != "" {
			if _, err := uuid.Parse(p.TokenSecret); err != nil {
				result = multierror.Append(result, fmt.Errorf("token_secret is not a valid UUID: %w", err))
			}
		}
	case hasPassword:
		if p.Username == "" || p.Password == "" {
			result = multierror.Append(result, fmt.Errorf("username and password must both be set"))
		}
	default:
		result = multierror.Append(result, ErrMissingAuth)
	}

	return result.ErrorOrNil()
}

func (p *ProxmoxConfig) UsesToken() bool {
	return p.TokenID != ""
}

// APIURL is the api2/json base, always ending in a slash. A host given
// without a scheme is reached over https.
func (p *ProxmoxConfig) APIURL() string {
	host := strings.TrimSuffix(p.Host, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}

	return host + "/api2/json/"
}

// UserID is the username qualified with its realm, e.g. root@pam.
func (p *ProxmoxConfig) UserID() string {
	if strings.Contains(p.Username, "@") {
		return p.Username
	}

	realm := p.Realm
	if realm == "" {
		realm = DefaultRealm
	}

	return p.Username + "@" + realm
}

func (p *ProxmoxConfig) RequestTimeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout * time.Second
	}

	return time.Duration(p.Timeout) * time.Second
}
