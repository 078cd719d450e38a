// Package config loads and validates the proxy's YAML configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TLS carries the static certificate/key file pair for the server.
type TLS struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Server holds the listen address and optional TLS material.
type Server struct {
	Bind string `yaml:"bind"`
	TLS  *TLS   `yaml:"tls"`
}

// Target is the single upstream this proxy forwards to.
type Target struct {
	URL string `yaml:"url"`
}

// Session names the RSA key files used to sign and verify session cookies.
type Session struct {
	PrivateKey string `yaml:"private_key"`
	PublicKey  string `yaml:"public_key"`
}

// Metrics optionally exposes a Prometheus endpoint on its own listener.
type Metrics struct {
	Bind string `yaml:"bind"`
}

// Logging optionally overrides the level normally selected by SEALPROXY_LOG.
type Logging struct {
	Level string `yaml:"level"`
}

// UserRef is one (name, password) pair in a user_pass user base.
type UserRef struct {
	Name     string
	Password string
}

// UnmarshalYAML decodes a UserRef from a two-element YAML sequence
// ([name, password]), matching the config schema's [[name, password], ...].
func (u *UserRef) UnmarshalYAML(value *yaml.Node) error {
	var pair [2]string
	if err := value.Decode(&pair); err != nil {
		return fmt.Errorf("user_pass entry must be a [name, password] pair: %w", err)
	}
	u.Name = pair[0]
	u.Password = pair[1]
	return nil
}

// UserBase is the tagged union of user base backends.
type UserBase struct {
	Kind string `yaml:"kind"`

	// user_pass
	Users []UserRef `yaml:"users"`

	// ldap
	URL      string `yaml:"url"`
	BaseDN   string `yaml:"base_dn"`
	UserAttr string `yaml:"user_attr"`
}

const defaultLDAPUserAttr = "uid"

func (u *UserBase) applyDefaults() {
	if u.Kind == "ldap" && u.UserAttr == "" {
		u.UserAttr = defaultLDAPUserAttr
	}
}

// Filter is the tagged union of filter configurations, keyed by `kind`.
type Filter struct {
	Kind string `yaml:"kind"`

	// anonymous, redirect (paths/not_paths)
	Paths    []string `yaml:"paths"`
	NotPaths []string `yaml:"not_paths"`

	// redirect
	Location   string `yaml:"location"`
	WithReturn bool   `yaml:"with_return"`

	// basic, form_login
	UserBase *UserBase `yaml:"user_base"`

	// form_login
	Path            string `yaml:"path"`
	SuccessRedirect string `yaml:"success_redirect"`
	FailureRedirect string `yaml:"failure_redirect"`
}

// Config is the top-level, fully-parsed configuration file.
type Config struct {
	Server  Server   `yaml:"server"`
	Target  Target   `yaml:"target"`
	Session Session  `yaml:"session"`
	Metrics *Metrics `yaml:"metrics"`
	Logging *Logging `yaml:"logging"`
	Filters []Filter `yaml:"filters"`
}

const DefaultBind = "0.0.0.0:8000"

// Load reads and parses path, applying defaults and running structural
// validation. It does not read key files or compile filters; that happens
// while constructing a LiveState.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Server.Bind == "" {
		cfg.Server.Bind = DefaultBind
	}
	for i := range cfg.Filters {
		if cfg.Filters[i].UserBase != nil {
			cfg.Filters[i].UserBase.applyDefaults()
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Target.URL == "" {
		return fmt.Errorf("target.url is required")
	}
	if c.Session.PrivateKey == "" || c.Session.PublicKey == "" {
		return fmt.Errorf("session.private_key and session.public_key are required")
	}
	for i, f := range c.Filters {
		switch f.Kind {
		case "anonymous", "redirect", "basic", "cookie_session", "form_login":
		case "":
			return fmt.Errorf("filters[%d]: missing kind", i)
		default:
			return fmt.Errorf("filters[%d]: unknown filter kind %q", i, f.Kind)
		}
		if f.Kind == "redirect" && f.Location == "" {
			return fmt.Errorf("filters[%d]: redirect requires location", i)
		}
		if f.Kind == "form_login" && (f.Path == "" || f.SuccessRedirect == "") {
			return fmt.Errorf("filters[%d]: form_login requires path and success_redirect", i)
		}
		if (f.Kind == "basic" || f.Kind == "form_login") && f.UserBase == nil {
			return fmt.Errorf("filters[%d]: %s requires user_base", i, f.Kind)
		}
		if f.UserBase != nil {
			switch f.UserBase.Kind {
			case "user_pass", "ldap":
			default:
				return fmt.Errorf("filters[%d]: unknown user_base kind %q", i, f.UserBase.Kind)
			}
		}
	}
	return nil
}
