// internal/config/loader.go
//
// Configuration loader and hot-reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `FORMPIPE_`, where `__` maps to “.”
     (e.g., `FORMPIPE_HTTP__LISTEN_ADDR → http.listen_addr`).

String values that start with `vault:` are swapped for the secret they
name before unmarshal.  The typed result gets defaults and validation, then
is cached in an `atomic.Pointer` for lock-free reads.
`Reload()` calls `Load()` again with the same resolver and swaps the
pointer.

Instrumentation
---------------
  • DEBUG spans: root discovery, YAML read, secret resolution.
  • ERROR spans: YAML parse, env overlay, unmarshal, validation failures.
  • INFO  span:  final “config loaded” with key highlights.
  • Logs use the global sugared logger (`zap.S()`) so early boot issues
    surface before the file logger is installed.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "FORMPIPE_"

const secretPrefix = "vault:"

// SecretResolver turns a `vault:` reference into its value.
// *vault.Client satisfies it.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

var (
	current atomic.Pointer[Config]

	resolverMu   sync.Mutex
	lastResolver SecretResolver
)

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves FORMPIPE_ROOT or climbs directories until
// conf/global.yaml is found.  Falls back to the executable's parent when it
// lives in bin/.
func rootDir() string {
	if r := os.Getenv(EnvPrefix + "ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, and env overrides, resolves secrets, validates,
// and caches Config.  secrets may be nil when no value is a `vault:`
// reference.
func Load(ctx context.Context, secrets SecretResolver) (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, k, secrets); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	applyDefaults(&cfg)
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	if secrets != nil {
		resolverMu.Lock()
		lastResolver = secrets
		resolverMu.Unlock()
	}
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"force_https", cfg.HTTP.ForceHTTPS,
		"form_dirs", cfg.Forms.Dirs,
		"smtp", cfg.Mail.Host != "",
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// envKey maps FORMPIPE_HTTP__LISTEN_ADDR to http.listen_addr.
func envKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, EnvPrefix), "__", "."))
}

// resolveSecrets replaces every `vault:` string in k.
func resolveSecrets(ctx context.Context, k *koanf.Koanf, secrets SecretResolver) error {
	var refs []string
	for key, val := range k.All() {
		if s, ok := val.(string); ok && strings.HasPrefix(s, secretPrefix) {
			refs = append(refs, key)
		}
	}
	if len(refs) == 0 {
		return nil
	}
	if secrets == nil {
		return fmt.Errorf("config: %s references a secret but no resolver is configured", refs[0])
	}
	sort.Strings(refs)

	for _, key := range refs {
		val, err := secrets.Resolve(ctx, k.String(key))
		if err != nil {
			return fmt.Errorf("config: resolve %s: %w", key, err)
		}
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("config: set %s: %w", key, err)
		}
		zap.S().Debugw("config secret resolved", "key", key)
	}
	return nil
}

func applyDefaults(c *Config) {
	if c.HTTP.MaxBodyMB == 0 {
		c.HTTP.MaxBodyMB = 32
	}
	if c.Forms.ErrorCache == 0 {
		c.Forms.ErrorCache = 256
	}
	for i, d := range c.Forms.Dirs {
		c.Forms.Dirs[i] = c.Paths.Abs(d)
	}
	c.Uploads.Dir = c.Paths.Abs(c.Uploads.Dir)
	c.Uploads.BaseURL = strings.TrimRight(c.Uploads.BaseURL, "/")
	c.GeoIP.CountryDB = c.Paths.Abs(c.GeoIP.CountryDB)
	if c.Recaptcha.Timeout == 0 {
		c.Recaptcha.Timeout = 5 * time.Second
	}
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// Get returns the most recently loaded Config, or nil before Load.
func Get() *Config { return current.Load() }

// Reload re-reads every layer with the resolver from the last Load.
func Reload(ctx context.Context) error {
	resolverMu.Lock()
	r := lastResolver
	resolverMu.Unlock()
	_, err := Load(ctx, r)
	return err
}
