// Package config parses and validates the keyopsd.yaml configuration
// file. Parsing is YAML; structural validation runs against a JSON
// schema before any component consumes the values.
package config

import (
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	kerrors "github.com/systmms/keyops/internal/errors"
)

// Definition is the keyopsd.yaml structure.
type Definition struct {
	Version   int             `yaml:"version" json:"version"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Listener  ListenerConfig  `yaml:"listener" json:"listener"`
	Core      CoreConfig      `yaml:"core" json:"core"`
	Store     StoreConfig     `yaml:"key_info_store" json:"key_info_store"`
	Providers ProvidersConfig `yaml:"providers" json:"providers"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// LogConfig selects the logging level and encoding.
type LogConfig struct {
	Level       string `yaml:"level" json:"level"`
	Development bool   `yaml:"development" json:"development"`
}

// ListenerConfig configures the front-end socket.
type ListenerConfig struct {
	SocketPath  string `yaml:"socket_path" json:"socket_path"`
	MaxBodySize uint32 `yaml:"max_body_size" json:"max_body_size"`
}

// CoreConfig carries the wire protocol version pair the core provider
// answers to ping.
type CoreConfig struct {
	VersionMaj uint8 `yaml:"version_maj" json:"version_maj"`
	VersionMin uint8 `yaml:"version_min" json:"version_min"`
}

// StoreConfig selects the key-info store back end.
type StoreConfig struct {
	Type   string `yaml:"type" json:"type"`
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// ProvidersConfig enables and configures the cryptographic providers.
type ProvidersConfig struct {
	Software SoftwareConfig `yaml:"software" json:"software"`
	Pkcs11   Pkcs11Config   `yaml:"pkcs11" json:"pkcs11"`
}

// SoftwareConfig configures the in-process software provider.
type SoftwareConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Pkcs11Config configures the PKCS #11 provider.
type Pkcs11Config struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	LibraryPath string `yaml:"library_path" json:"library_path"`
	SlotNumber  uint   `yaml:"slot_number" json:"slot_number"`
	// UserPin is the CKU_USER PIN when pin_source is "literal".
	UserPin string `yaml:"user_pin" json:"user_pin"`
	// PinSource is "literal", "keyring" or "none".
	PinSource string `yaml:"pin_source" json:"pin_source"`
	// KeyringService and KeyringUser locate the PIN in the OS keyring
	// when pin_source is "keyring".
	KeyringService string `yaml:"keyring_service" json:"keyring_service"`
	KeyringUser    string `yaml:"keyring_user" json:"keyring_user"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

const schemaJSON = `{
	"type": "object",
	"required": ["version", "listener"],
	"properties": {
		"version": {"type": "integer", "enum": [1]},
		"log": {
			"type": "object",
			"properties": {
				"level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
				"development": {"type": "boolean"}
			}
		},
		"listener": {
			"type": "object",
			"required": ["socket_path"],
			"properties": {
				"socket_path": {"type": "string", "minLength": 1},
				"max_body_size": {"type": "integer", "minimum": 0}
			}
		},
		"core": {
			"type": "object",
			"properties": {
				"version_maj": {"type": "integer", "minimum": 0, "maximum": 255},
				"version_min": {"type": "integer", "minimum": 0, "maximum": 255}
			}
		},
		"key_info_store": {
			"type": "object",
			"properties": {
				"type": {"type": "string", "enum": ["memory", "sql"]},
				"driver": {"type": "string", "enum": ["postgres", "mysql"]},
				"dsn": {"type": "string"}
			}
		},
		"providers": {
			"type": "object",
			"properties": {
				"software": {
					"type": "object",
					"properties": {"enabled": {"type": "boolean"}}
				},
				"pkcs11": {
					"type": "object",
					"properties": {
						"enabled": {"type": "boolean"},
						"library_path": {"type": "string"},
						"slot_number": {"type": "integer", "minimum": 0},
						"user_pin": {"type": "string"},
						"pin_source": {"type": "string", "enum": ["literal", "keyring", "none"]},
						"keyring_service": {"type": "string"},
						"keyring_user": {"type": "string"}
					}
				}
			}
		},
		"metrics": {
			"type": "object",
			"properties": {
				"enabled": {"type": "boolean"},
				"address": {"type": "string"}
			}
		}
	}
}`

// Load reads, parses and validates a configuration file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kerrors.ConfigError{
				Field:      "path",
				Value:      path,
				Message:    "configuration file not found",
				Suggestion: "pass --config with the path to keyopsd.yaml",
			}
		}
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates configuration bytes.
func Parse(data []byte) (*Definition, error) {
	// Parse once into a generic document for schema validation.
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, kerrors.ConfigError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, kerrors.ConfigError{Message: fmt.Sprintf("invalid configuration: %v", err)}
	}
	def.applyDefaults()
	if err := def.check(); err != nil {
		return nil, err
	}
	return &def, nil
}

func validate(doc map[string]interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return kerrors.ConfigError{
			Field:   first.Field(),
			Message: first.Description(),
		}
	}
	return nil
}

func (d *Definition) applyDefaults() {
	if d.Log.Level == "" {
		d.Log.Level = "info"
	}
	if d.Listener.MaxBodySize == 0 {
		d.Listener.MaxBodySize = 1 << 20
	}
	if d.Core.VersionMaj == 0 && d.Core.VersionMin == 0 {
		d.Core.VersionMaj = 1
	}
	if d.Store.Type == "" {
		d.Store.Type = "memory"
	}
	if d.Providers.Pkcs11.PinSource == "" {
		if d.Providers.Pkcs11.UserPin != "" {
			d.Providers.Pkcs11.PinSource = "literal"
		} else {
			d.Providers.Pkcs11.PinSource = "none"
		}
	}
	if d.Metrics.Enabled && d.Metrics.Address == "" {
		d.Metrics.Address = ":9090"
	}
}

// check enforces the cross-field constraints the schema cannot express.
func (d *Definition) check() error {
	if d.Store.Type == "sql" {
		if d.Store.Driver == "" || d.Store.DSN == "" {
			return kerrors.ConfigError{
				Field:      "key_info_store",
				Message:    "sql store requires driver and dsn",
				Suggestion: `set driver to "postgres" or "mysql" and provide a dsn`,
			}
		}
	}
	p := d.Providers.Pkcs11
	if p.Enabled {
		if p.LibraryPath == "" {
			return kerrors.ConfigError{
				Field:      "providers.pkcs11.library_path",
				Message:    "the PKCS #11 provider needs the token library path",
				Suggestion: "point library_path at your token's .so module",
			}
		}
		if p.PinSource == "keyring" && (p.KeyringService == "" || p.KeyringUser == "") {
			return kerrors.ConfigError{
				Field:      "providers.pkcs11",
				Message:    "keyring pin source requires keyring_service and keyring_user",
				Suggestion: "name the keyring entry holding the user PIN",
			}
		}
		if p.PinSource == "literal" && p.UserPin == "" {
			return kerrors.ConfigError{
				Field:      "providers.pkcs11.user_pin",
				Message:    "literal pin source requires user_pin",
				Suggestion: `set user_pin, or use pin_source: "none" for tokens without a PIN`,
			}
		}
	}
	if !d.Providers.Software.Enabled && !p.Enabled {
		return kerrors.ConfigError{
			Field:      "providers",
			Message:    "at least one cryptographic provider must be enabled",
			Suggestion: "enable providers.software or providers.pkcs11",
		}
	}
	return nil
}
