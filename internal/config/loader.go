// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file — `<root>/conf/.env`.
  2. `conf/wpmigrate.yaml`.
  3. Environment variables prefixed `WPMIGRATE_`, where `__` maps to “.”
     (e.g., `WPMIGRATE_STORE__DSN → store.dsn`).

After merging, the tree is unmarshalled into strongly-typed structs,
validated, enriched with the runtime root path, and cached in an
`atomic.Pointer` for lock-free reads.  `Reload()` simply calls `Load()`
again and swaps the pointer.

Instrumentation
---------------
  • DEBUG spans — root discovery, YAML read, env overlay.
  • ERROR spans — YAML parse, env overlay, unmarshal, validation failures.
  • INFO  span  — final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed (bootstrap console).

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/wpmigrate.yaml`;
    this lets `go run ./cmd/migrate` work from any sub-directory.
  • Vault references are resolved afterwards by ResolveVaultRefs.
*/
package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/hacklabr/wpmigrate/internal/vault"
)

var current atomic.Pointer[Config]

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves WPMIGRATE_ROOT or climbs directories until
// conf/wpmigrate.yaml is found.  Falls back to executable heuristic for
// production layout.
func rootDir() string {
	if r := os.Getenv("WPMIGRATE_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "wpmigrate.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
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

// Load reads .env, YAML, env overrides, validates, and caches Config.
func Load() (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "wpmigrate.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: WPMIGRATE_STORE__DSN → store.dsn
	if err := k.Load(env.Provider("WPMIGRATE_", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
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
	zap.S().Infow("config loaded",
		"chunk_size", cfg.Import.ChunkSize,
		"write_mode", cfg.Import.WriteMode,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

func applyDefaults(c *Config) {
	if c.Import.ChunkSize == 0 {
		c.Import.ChunkSize = 500
	}
	if c.Import.WriteMode == "" {
		c.Import.WriteMode = "upsert"
	}
	if c.Media.ConnectTimeout == 0 {
		c.Media.ConnectTimeout = 5
	}
	if c.Media.DownloadTimeout == 0 {
		c.Media.DownloadTimeout = 30
	}
	if c.Media.TempDir == "" {
		c.Media.TempDir = os.TempDir()
	}
}

/*────────────────────────── vault references ──────────────────────────────*/

// ResolveVaultRefs replaces `vault:<path>#<key>` values in secret-bearing
// fields with the secret fetched from Vault.  Call after Load() and before
// handing Config to the engine.  A nil client with no refs present is fine;
// a ref with no client is an error.
func ResolveVaultRefs(ctx context.Context, cfg *Config, cli *vault.Client) error {
	fields := []*string{&cfg.Store.Password}

	for _, f := range fields {
		val, err := resolveRef(ctx, *f, cli)
		if err != nil {
			return err
		}
		*f = val
	}
	return nil
}

func resolveRef(ctx context.Context, val string, cli *vault.Client) (string, error) {
	const prefix = "vault:"
	if !strings.HasPrefix(val, prefix) {
		return val, nil
	}
	ref := strings.TrimPrefix(val, prefix)
	path, key, _ := strings.Cut(ref, "#")
	return cli.GetKV(ctx, path, key, 5*time.Minute)
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config  { return current.Load() }
func Reload() error { _, err := Load(); return err }
