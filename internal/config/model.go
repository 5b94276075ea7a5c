// internal/config/model.go
//
// Typed configuration model for the migration engine.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                             – dotenv values,
//   • `conf/wpmigrate.yaml`                       – primary static file,
//   • `WPMIGRATE_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *after* unmarshalling (see ResolveVaultRefs),
// so secrets never land in flat files or git history.
//
// Validation happens immediately after unmarshal; the process fails fast
// if required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`—Koanf ignores `yaml` tags
//     unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Remote-source credentials are NOT configured here: they live in the
//     encrypted credential blob (internal/credentials).

package config

//
// Store section
//

// Store holds the connection settings for the local content store's
// metadata index.  The DSN is kept in YAML so operators can tweak host,
// port, or flags without touching Vault; the password may be a `vault:`
// reference.
type Store struct {
	DSN      string `koanf:"dsn"      validate:"required"`
	Password string `koanf:"password"`
}

//
// Media section
//

// Media controls attachment processing: where legacy uploads lived, where
// rewritten URLs should point, and where downloaded files are staged.
type Media struct {
	OldBaseURL string `koanf:"old_base_url"`
	NewBaseURL string `koanf:"new_base_url"`
	TempDir    string `koanf:"temp_dir"`

	// Seconds; bounded so one unreachable file cannot stall a run.
	ConnectTimeout  int `koanf:"connect_timeout"  validate:"omitempty,min=1,max=60"`
	DownloadTimeout int `koanf:"download_timeout" validate:"omitempty,min=1,max=600"`
}

//
// Import section
//

// Import holds per-run defaults.  Everything here can be overridden per
// invocation through engine.Options.
type Import struct {
	ChunkSize int    `koanf:"chunk_size" validate:"omitempty,min=1,max=5000"`
	WriteMode string `koanf:"write_mode" validate:"omitempty,oneof=insert update upsert"`
}

//
// Metrics section
//

// Metrics configures the optional Prometheus listener.  Empty ListenAddr
// disables it; batch runs usually do not need one.
type Metrics struct {
	ListenAddr string `koanf:"listen_addr" validate:"omitempty,hostname_port"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime—never set in YAML or env.  The loader
// discovers `Root` (repo root or WPMIGRATE_ROOT override) so later code
// can build absolute file paths.
type Paths struct {
	Root string // WPMIGRATE_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the process lifetime.
type Config struct {
	Store   Store   `koanf:"store"`
	Media   Media   `koanf:"media"`
	Import  Import  `koanf:"import"`
	Metrics Metrics `koanf:"metrics"`
	Paths   Paths   `koanf:"-"` // not loaded from config files
}
