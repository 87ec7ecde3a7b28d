package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"

	"github.com/nodeward/nodeward/control"
)

// FileName is the configuration file inside the config root.
const FileName = "config.toml"

var (
	// ErrNoRoot indicates no config root could be located. Run "nodeward
	// init" or set NODEWARD_ROOT.
	ErrNoRoot = errors.New("no nodeward config root found")

	// ErrIncomplete indicates the config file exists but misses required
	// fields.
	ErrIncomplete = errors.New("incomplete config")
)

// Duration decodes from TOML strings like "10s" or "2m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML encoding.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the operator configuration stored at <root>/config.toml.
type Config struct {
	Control Control `toml:"control"`
}

// Control describes the node's control endpoint.
type Control struct {
	// Address is the host:port of the node's local control server.
	Address string `toml:"address"`

	// ServerKey is the control server's long-term public key,
	// base64-raw-url encoded. It is the identity every connection
	// authenticates; obtain it from the node's own configuration.
	ServerKey string `toml:"server_key"`

	// QueryTimeout is the default deadline applied to a single query when a
	// command does not set its own.
	QueryTimeout Duration `toml:"query_timeout"`
}

// Default returns a config template for a node running on this machine.
func Default() *Config {
	return &Config{
		Control: Control{
			Address:      "127.0.0.1:5031",
			QueryTimeout: Duration(10 * time.Second),
		},
	}
}

// ServerPublicKey parses the configured control server key.
func (c *Control) ServerPublicKey() (control.PublicKey, error) {
	if c.ServerKey == "" {
		return nil, xerrors.Errorf("control.server_key is not set: %w", ErrIncomplete)
	}
	key, err := control.ParsePublicKey(c.ServerKey)
	if err != nil {
		return nil, xerrors.Errorf("parsing control.server_key: %w", err)
	}
	return key, nil
}

// Load reads <root>/config.toml.
func Load(root string) (*Config, error) {
	filename := filepath.Join(root, FileName)
	var cfg Config
	meta, err := toml.DecodeFile(filename, &cfg)
	if err != nil {
		return nil, xerrors.Errorf("reading %s: %w", filename, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, xerrors.Errorf("%s: unknown key %q", filename, undecoded[0].String())
	}
	if cfg.Control.Address == "" {
		return nil, xerrors.Errorf("%s: control.address is not set: %w", filename, ErrIncomplete)
	}
	if cfg.Control.QueryTimeout <= 0 {
		cfg.Control.QueryTimeout = Default().Control.QueryTimeout
	}
	return &cfg, nil
}

// Store writes the config to <root>/config.toml, creating the root directory
// if needed.
func (c *Config) Store(root string) error {
	if err := os.MkdirAll(root, 0700); err != nil {
		return err
	}
	filename := filepath.Join(root, FileName)
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	enc := toml.NewEncoder(f)
	if err := enc.Encode(c); err != nil {
		f.Close()
		return xerrors.Errorf("writing %s: %w", filename, err)
	}
	return f.Close()
}
