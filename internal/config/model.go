// internal/config/model.go
//
// Typed configuration model for Formpipe.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                            – dotenv values,
//   • `conf/global.yaml`                         – primary static file,
//   • `FORMPIPE_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with `vault:` is resolved through a
// SecretResolver before unmarshalling, so the model never stores Vault
// references, only plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Durations accept Go syntax ("5s", "12h").

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`

	// TrustProxy lets requestinfo read X-Forwarded-For.
	TrustProxy bool `koanf:"trust_proxy"`

	// MaxBodyMB caps a multipart submission, files included.
	MaxBodyMB int `koanf:"max_body_mb" validate:"gte=0"`
}

// Database holds the DSN template and its secret.
//
// The template stays in YAML so operators can tweak host, port, or flags.
// The password is normally a `vault:` reference.  When the template
// contains a single %s verb the password is substituted there.
type Database struct {
	DSN      string `koanf:"dsn"      validate:"required"`
	Password string `koanf:"password"`
	MaxOpen  int    `koanf:"max_open" validate:"gte=0"`
	MaxIdle  int    `koanf:"max_idle" validate:"gte=0"`
}

// ConnString returns the DSN ready for database.Open.
func (d Database) ConnString() string {
	if strings.Count(d.DSN, "%s") == 1 {
		return fmt.Sprintf(d.DSN, d.Password)
	}
	return d.DSN
}

// Forms locates the YAML form definitions.
type Forms struct {
	// Dirs are searched in order; the first definition of an ID wins.
	Dirs []string `koanf:"dirs" validate:"required,min=1,dive,required"`

	// ErrorCache bounds how many forms keep last-failure errors.
	ErrorCache int `koanf:"error_cache" validate:"gte=0"`
}

// Uploads configures the local file store.
type Uploads struct {
	Dir     string `koanf:"dir"      validate:"required"`
	BaseURL string `koanf:"base_url" validate:"required,url"`
}

// Mail configures SMTP delivery.  An empty Host logs mail instead.
type Mail struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"     validate:"gte=0,lte=65535"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"     validate:"required_with=Host"`
}

// Recaptcha tunes the siteverify client.  Secrets are per form.
type Recaptcha struct {
	Endpoint string        `koanf:"endpoint"  validate:"omitempty,url"`
	Timeout  time.Duration `koanf:"timeout"   validate:"gte=0"`
	RetryMax int           `koanf:"retry_max" validate:"gte=0"`
}

// CSRF configures form nonces.
type CSRF struct {
	// Key is the HMAC key.  Empty generates a random key per process,
	// which invalidates outstanding nonces on restart.
	Key string `koanf:"key"`

	// MaxAge is the token validity window; zero selects csrf.DefaultMaxAge.
	MaxAge time.Duration `koanf:"max_age" validate:"gte=0"`
}

// Site holds presentation values used in notification subjects.
type Site struct {
	Name string `koanf:"name" validate:"required"`
}

// GeoIP points at an optional MaxMind country database.
type GeoIP struct {
	CountryDB string `koanf:"country_db"`
}

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // FORMPIPE_ROOT or discovered parent
}

// Abs resolves p against Root unless it is already absolute.
func (p Paths) Abs(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.Root, rel)
}

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads.
type Config struct {
	HTTP      HTTP      `koanf:"http"`
	Database  Database  `koanf:"database"`
	Forms     Forms     `koanf:"forms"`
	Uploads   Uploads   `koanf:"uploads"`
	Mail      Mail      `koanf:"mail"`
	Recaptcha Recaptcha `koanf:"recaptcha"`
	CSRF      CSRF      `koanf:"csrf"`
	Site      Site      `koanf:"site"`
	GeoIP     GeoIP     `koanf:"geoip"`
	Paths     Paths     `koanf:"-"`
}
