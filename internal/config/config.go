package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ferrite-sync/ferrite/internal/utils"
	"github.com/google/uuid"
)

var (
	home, _           = os.UserHomeDir()
	DefaultStateDir   = filepath.Join(home, ".ferrite")
	DefaultConfigPath = filepath.Join(DefaultStateDir, "config.json")

	DefaultPollInterval = 30 * time.Second
)

// AuthMethod selects how a connection authenticates.
type AuthMethod string

const (
	AuthPassword   AuthMethod = "password"
	AuthPrivateKey AuthMethod = "private_key"
)

// Connection describes one remote SFTP server and the scopes (remote
// directories) synced from it. Credentials live in the secret store, keyed
// by ID; only non-secret settings belong here.
type Connection struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Host     string     `json:"host"`
	Port     int        `json:"port,omitempty"`
	Username string     `json:"username"`
	Auth     AuthMethod `json:"auth"`
	Scopes   []string   `json:"scopes"`
}

func (c *Connection) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("connection %q: host is required", c.Name)
	}
	if c.Username == "" {
		return fmt.Errorf("connection %q: username is required", c.Name)
	}
	if c.Auth != AuthPassword && c.Auth != AuthPrivateKey {
		return fmt.Errorf("connection %q: unknown auth method %q", c.Name, c.Auth)
	}
	if len(c.Scopes) == 0 {
		return fmt.Errorf("connection %q: at least one scope is required", c.Name)
	}
	return nil
}

// IdentifierScheme selects how remote paths map to item identifiers.
// "path" uses the normalized path itself; "digest" uses a BLAKE3 digest
// with a persisted identifier-to-path side table, for hosts whose
// identifier space forbids slashes.
type IdentifierScheme string

const (
	IdentifierPath   IdentifierScheme = "path"
	IdentifierDigest IdentifierScheme = "digest"
)

// Config is the on-disk daemon configuration.
type Config struct {
	StateDir         string           `json:"state_dir"`
	PollInterval     Duration         `json:"poll_interval"`
	IdentifierScheme IdentifierScheme `json:"identifier_scheme,omitempty"`
	Connections      []Connection     `json:"connections"`

	Path string `json:"-"`
}

func (c *Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	if len(c.Connections) == 0 {
		return fmt.Errorf("at least one connection is required")
	}
	if c.IdentifierScheme != IdentifierPath && c.IdentifierScheme != IdentifierDigest {
		return fmt.Errorf("unknown identifier scheme %q", c.IdentifierScheme)
	}
	seen := make(map[string]struct{}, len(c.Connections))
	for i := range c.Connections {
		conn := &c.Connections[i]
		if err := conn.Validate(); err != nil {
			return err
		}
		if _, dup := seen[conn.ID]; dup {
			return fmt.Errorf("duplicate connection id %q", conn.ID)
		}
		seen[conn.ID] = struct{}{}
	}
	return nil
}

// Connection returns the connection with the given ID or name.
func (c *Config) Connection(idOrName string) (*Connection, bool) {
	for i := range c.Connections {
		if c.Connections[i].ID == idOrName || c.Connections[i].Name == idOrName {
			return &c.Connections[i], true
		}
	}
	return nil, false
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Load reads a config file and fills in defaults: missing state dir, poll
// interval, ports, and connection IDs.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Path = path
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	if c.PollInterval.Duration() <= 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
	if c.IdentifierScheme == "" {
		c.IdentifierScheme = IdentifierPath
	}
	for i := range c.Connections {
		conn := &c.Connections[i]
		if conn.ID == "" {
			conn.ID = uuid.NewString()
		}
		if conn.Port == 0 {
			conn.Port = 22
		}
		if conn.Auth == "" {
			conn.Auth = AuthPassword
		}
	}
}

// Duration marshals as a human-readable string ("30s", "5m") in JSON.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}
