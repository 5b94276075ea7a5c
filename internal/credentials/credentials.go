// internal/credentials/credentials.go
//
// Remote connection descriptor, persisted only in encrypted form.
//
// Context
// -------
// The engine owns exactly one piece of durable secret state: the
// credentials of the remote WordPress database.  They are serialized to
// JSON, sealed with an authenticated cipher (see crypto.go), and stored as
// a single key-value record in whatever persistence the host provides.
// Decrypted records live in memory only for the duration of a connection
// attempt.
//
// Host strings accept the same shapes the original settings screen did:
// `db.example.com`, `db.example.com:3307`, `[2001:db8::1]:3306`, or a
// `/var/run/mysqld/mysqld.sock` socket path.
package credentials

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// OptionKey is the record name under which the sealed blob is stored.
const OptionKey = "wpmigrate_remote_credentials"

// Record holds everything needed to reach the remote installation.  The
// zero value is not connectable; Validate gates every use.
type Record struct {
	Host          string `json:"host"          validate:"required"`
	Database      string `json:"database"      validate:"required"`
	User          string `json:"user"          validate:"required"`
	Secret        string `json:"secret"`
	Charset       string `json:"charset"`
	Collation     string `json:"collation"`
	TablePrefix   string `json:"table_prefix"`
	IsMultiTenant bool   `json:"is_multi_tenant"`
	MediaBaseURL  string `json:"media_base_url"`
}

// Defaults mirrors the original install's fallback configuration.
func Defaults() Record {
	return Record{
		Host:        "localhost",
		Charset:     "utf8mb4",
		Collation:   "utf8mb4_unicode_520_ci",
		TablePrefix: "wp_",
	}
}

var v = validator.New()

// Validate reports the first missing required field.  Surfaced before any
// I/O is attempted.
func (r Record) Validate() error {
	return v.Struct(r)
}

// Prefix returns the table prefix, defaulting to "wp_" when unset.
func (r Record) Prefix() string {
	if r.TablePrefix == "" {
		return "wp_"
	}
	return r.TablePrefix
}

// Addr splits Host into the pieces the MySQL driver wants: a network
// ("tcp" or "unix") and an address.  Port defaults to 3306.
func (r Record) Addr() (network, addr string) {
	h := strings.TrimSpace(r.Host)
	if h == "" {
		return "tcp", "localhost:3306"
	}
	if strings.HasPrefix(h, "/") {
		return "unix", h
	}
	if strings.HasPrefix(h, "[") {
		// Bracketed IPv6, optionally with :port.
		if end := strings.Index(h, "]"); end > 0 {
			host := h[1:end]
			rest := h[end+1:]
			if strings.HasPrefix(rest, ":") {
				if p, err := strconv.Atoi(rest[1:]); err == nil {
					return "tcp", "[" + host + "]:" + strconv.Itoa(p)
				}
			}
			return "tcp", "[" + host + "]:3306"
		}
	}
	if host, port, ok := strings.Cut(h, ":"); ok {
		if strings.HasPrefix(port, "/") {
			return "unix", port
		}
		if _, err := strconv.Atoi(port); err == nil {
			return "tcp", host + ":" + port
		}
	}
	return "tcp", h + ":3306"
}

// KV is the host-provided persistence for the sealed blob.  The local
// content store satisfies it with its options table.
type KV interface {
	GetOption(ctx context.Context, name string) (string, bool, error)
	SetOption(ctx context.Context, name, value string) error
}

// Save seals rec with keyMaterial and writes it under OptionKey.
func Save(ctx context.Context, kv KV, rec Record, keyMaterial []byte) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	plain, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	sealed, err := Encrypt(plain, keyMaterial)
	if err != nil {
		return err
	}
	return kv.SetOption(ctx, OptionKey, sealed)
}

// Load reads the sealed blob and returns the decrypted record.  A missing
// blob returns Defaults() with ok == false, matching the original's
// degrade-to-defaults behavior; a present-but-corrupt blob is an error.
func Load(ctx context.Context, kv KV, keyMaterial []byte) (Record, bool, error) {
	sealed, ok, err := kv.GetOption(ctx, OptionKey)
	if err != nil {
		return Defaults(), false, err
	}
	if !ok || sealed == "" {
		return Defaults(), false, nil
	}

	plain, err := Decrypt(sealed, keyMaterial)
	if err != nil {
		return Defaults(), false, err
	}

	rec := Defaults()
	if err := json.Unmarshal(plain, &rec); err != nil {
		return Defaults(), false, err
	}
	return rec, true, nil
}
