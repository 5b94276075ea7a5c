// cmd/migrate/main.go
//
// wpmigrate – batch entry point.
//
// Run life-cycle
// --------------
//
//  1. Load configuration (conf/.env → conf/wpmigrate.yaml → WPMIGRATE_*
//     env overrides), then resolve any vault: references.
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Open the local content store and decrypt the remote credential
//     record from its options table.
//
//  4. Connect to the remote WordPress database and assemble the engine.
//
//  5. Expose Prometheus /metrics when a listener address is configured.
//
//  6. Dispatch the subcommand: run, terms, users, attachments, or
//     credentials.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hacklabr/wpmigrate/internal/config"
	"github.com/hacklabr/wpmigrate/internal/credentials"
	"github.com/hacklabr/wpmigrate/internal/database"
	"github.com/hacklabr/wpmigrate/internal/engine"
	"github.com/hacklabr/wpmigrate/internal/identity"
	"github.com/hacklabr/wpmigrate/internal/logger"
	"github.com/hacklabr/wpmigrate/internal/media"
	"github.com/hacklabr/wpmigrate/internal/source"
	"github.com/hacklabr/wpmigrate/internal/store"
	"github.com/hacklabr/wpmigrate/internal/vault"
)

const usage = `usage: migrate <command> [flags]

commands:
  run          import entries from the remote installation
  terms        import taxonomy terms
  users        import users
  attachments  import binary resources
  credentials  set or show the sealed remote credentials

environment:
  WPMIGRATE_CREDENTIALS_KEY  key material for the credential envelope
  WPMIGRATE_VERBOSE          non-empty enables debug logging
`

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Configuration ───────────────────────────────────────────────
	//
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logOut, err := logger.New(cfg.Paths.Root, runningInTTY(), os.Getenv("WPMIGRATE_VERBOSE") != "")
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer logOut.Sync()

	if needsVault(cfg) {
		cli, err := vault.New(ctx, func(f string, a ...any) { logOut.Debugf(f, a...) })
		if err != nil {
			logOut.Fatalw("vault client", "err", err)
		}
		if err := config.ResolveVaultRefs(ctx, cfg, cli); err != nil {
			logOut.Fatalw("resolve vault refs", "err", err)
		}
	}

	//
	// ── 2.  Local content store ─────────────────────────────────────────
	//
	localDB, err := database.Open(storeDSN(cfg))
	if err != nil {
		logOut.Fatalw("connect local store", "err", err)
	}
	defer localDB.Close()

	st := store.NewSQL(localDB, "wp_")
	st.UploadsDir = filepath.Join(cfg.Paths.Root, "uploads")
	st.BaseURL = cfg.Media.NewBaseURL

	if os.Args[1] == "credentials" {
		credentialsCmd(ctx, st, logOut, os.Args[2:])
		return
	}

	//
	// ── 3.  Remote source ───────────────────────────────────────────────
	//
	rec, found, err := credentials.Load(ctx, st, keyMaterial())
	if err != nil {
		logOut.Fatalw("load remote credentials", "err", err)
	}
	if !found {
		logOut.Fatal("no remote credentials stored; run `migrate credentials set` first")
	}

	remote, err := source.Connect(ctx, rec)
	if err != nil {
		logOut.Fatalw("connect remote", "host", rec.Host, "err", err)
	}
	defer remote.Close()
	logOut.Infow("remote online", "host", rec.Host, "db", rec.Database,
		"multi_tenant", rec.IsMultiTenant)

	//
	// ── 4.  Engine assembly ─────────────────────────────────────────────
	//
	dl := media.NewDownloader(
		time.Duration(cfg.Media.ConnectTimeout)*time.Second,
		time.Duration(cfg.Media.DownloadTimeout)*time.Second,
		cfg.Media.TempDir,
	)
	ids := identity.NewMapper(st, 0, logOut)
	eng := engine.New(remote, source.TablesFor(rec), st, ids, dl, logOut)

	//
	// ── 5.  Metrics listener (optional) ─────────────────────────────────
	//
	if addr := cfg.Metrics.ListenAddr; addr != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", promhttp.Handler())
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		go func() {
			logOut.Infow("metrics listener up", "addr", addr)
			if err := http.ListenAndServe(addr, r); err != nil {
				logOut.Errorw("metrics listener", "err", err)
			}
		}()
	}

	//
	// ── 6.  Dispatch ────────────────────────────────────────────────────
	//
	switch os.Args[1] {
	case "run":
		runCmd(ctx, eng, cfg, rec, logOut, os.Args[2:])
	case "terms":
		termsCmd(ctx, eng, logOut, os.Args[2:])
	case "users":
		usersCmd(ctx, eng, logOut, os.Args[2:])
	case "attachments":
		attachmentsCmd(ctx, eng, cfg, rec, logOut, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

// needsVault reports whether any configured value is a vault: reference.
func needsVault(cfg *config.Config) bool {
	return strings.HasPrefix(cfg.Store.Password, "vault:")
}

// storeDSN splices the resolved password into the DSN.  The YAML keeps the
// password out of the DSN with a __PASSWORD__ placeholder.
func storeDSN(cfg *config.Config) string {
	if cfg.Store.Password == "" {
		return cfg.Store.DSN
	}
	return strings.Replace(cfg.Store.DSN, "__PASSWORD__", cfg.Store.Password, 1)
}

// keyMaterial returns the secret the credential envelope is derived from.
func keyMaterial() []byte {
	return []byte(os.Getenv("WPMIGRATE_CREDENTIALS_KEY"))
}

/*──────────────────────────── subcommands ─────────────────────────────────*/

func runCmd(ctx context.Context, eng *engine.Engine, cfg *config.Config, rec credentials.Record, logOut *zap.SugaredLogger, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	tenant := fs.Int("tenant", 0, "source tenant id (0 = base site)")
	kinds := fs.String("kinds", "post", "comma-separated entry kinds")
	statuses := fs.String("statuses", "publish", "comma-separated statuses, or 'any'")
	idList := fs.String("ids", "", "comma-separated source ids to include")
	writeMode := fs.String("write-mode", cfg.Import.WriteMode, "insert, update, or upsert")
	dryRun := fs.Bool("dry-run", false, "resolve and report without writing")
	withMedia := fs.Bool("with-media", false, "resolve embedded and featured binary resources")
	assignTerms := fs.Bool("assign-terms", false, "mirror remote term assignments")
	mapUsers := fs.Bool("map-users", false, "remap authors, importing missing users on demand")
	modifiedAfter := fs.String("modified-after", "", "only rows modified after (epoch or RFC 3339)")
	limit := fs.Int("limit", cfg.Import.ChunkSize, "rows per chunk")
	_ = fs.Parse(args)

	mode, err := engine.ParseWriteMode(*writeMode)
	if err != nil {
		logOut.Fatalw("bad write mode", "err", err)
	}

	o := engine.Options{
		Fetch: source.Filter{
			Tenant:        tenantPtr(*tenant),
			Kinds:         splitList(*kinds),
			Statuses:      splitList(*statuses),
			IncludeIDs:    splitIDs(*idList),
			ModifiedAfter: *modifiedAfter,
			Limit:         *limit,
		},
		WriteMode:         mode,
		DryRun:            *dryRun,
		WithMedia:         *withMedia,
		AssignTerms:       *assignTerms,
		MapUsers:          *mapUsers,
		OldUploadsBaseURL: oldBaseURL(cfg, rec),
		NewUploadsBaseURL: cfg.Media.NewBaseURL,
		ChunkSize:         cfg.Import.ChunkSize,
	}

	sum, err := eng.RunImport(ctx, o)
	if err != nil {
		logOut.Fatalw("import run failed", "err", err)
	}
	report(sum)
}

func termsCmd(ctx context.Context, eng *engine.Engine, logOut *zap.SugaredLogger, args []string) {
	fs := flag.NewFlagSet("terms", flag.ExitOnError)
	tenant := fs.Int("tenant", 0, "source tenant id (0 = base site)")
	taxonomies := fs.String("taxonomies", "", "comma-separated taxonomies (empty = all)")
	idList := fs.String("ids", "", "comma-separated source term ids")
	dryRun := fs.Bool("dry-run", false, "resolve and report without writing")
	_ = fs.Parse(args)

	sum, err := eng.ImportTerms(ctx, engine.TermOptions{
		Filter: source.TermFilter{
			Tenant:     tenantPtr(*tenant),
			Taxonomies: splitList(*taxonomies),
			IncludeIDs: splitIDs(*idList),
		},
		DryRun: *dryRun,
	})
	if err != nil {
		logOut.Fatalw("term import failed", "err", err)
	}
	report(sum)
}

func usersCmd(ctx context.Context, eng *engine.Engine, logOut *zap.SugaredLogger, args []string) {
	fs := flag.NewFlagSet("users", flag.ExitOnError)
	tenant := fs.Int("tenant", 0, "source tenant id (0 = base site)")
	idList := fs.String("ids", "", "comma-separated source user ids")
	reserved := fs.String("reserved", "admin", "comma-separated logins that are never imported")
	dryRun := fs.Bool("dry-run", false, "resolve and report without writing")
	_ = fs.Parse(args)

	sum, err := eng.ImportUsers(ctx, engine.UserOptions{
		Filter: source.UserFilter{
			Tenant:     tenantPtr(*tenant),
			IncludeIDs: splitIDs(*idList),
		},
		ReservedLogins: splitList(*reserved),
		DryRun:         *dryRun,
	})
	if err != nil {
		logOut.Fatalw("user import failed", "err", err)
	}
	report(sum)
}

func attachmentsCmd(ctx context.Context, eng *engine.Engine, cfg *config.Config, rec credentials.Record, logOut *zap.SugaredLogger, args []string) {
	fs := flag.NewFlagSet("attachments", flag.ExitOnError)
	tenant := fs.Int("tenant", 0, "source tenant id (0 = base site)")
	idList := fs.String("ids", "", "comma-separated source attachment ids (empty = all)")
	dryRun := fs.Bool("dry-run", false, "resolve and report without writing")
	_ = fs.Parse(args)

	sum, err := eng.ImportAttachments(ctx, engine.AttachmentOptions{
		Tenant:            tenantPtr(*tenant),
		IncludeIDs:        splitIDs(*idList),
		OldUploadsBaseURL: oldBaseURL(cfg, rec),
		NewUploadsBaseURL: cfg.Media.NewBaseURL,
		DryRun:            *dryRun,
	})
	if err != nil {
		logOut.Fatalw("attachment import failed", "err", err)
	}
	report(sum)
}

// credentialsCmd seals or inspects the remote credential record.  `set`
// writes the sealed blob; `show` prints the connection settings with the
// secret redacted.
func credentialsCmd(ctx context.Context, st *store.SQL, logOut *zap.SugaredLogger, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: migrate credentials <set|show> [flags]")
		os.Exit(2)
	}

	switch args[0] {
	case "set":
		fs := flag.NewFlagSet("credentials set", flag.ExitOnError)
		host := fs.String("host", "localhost", "remote DB host, host:port, or socket path")
		db := fs.String("db", "", "remote database name")
		user := fs.String("user", "", "remote DB user")
		secret := fs.String("secret", "", "remote DB password")
		prefix := fs.String("prefix", "wp_", "remote table prefix")
		multi := fs.Bool("multi-tenant", false, "remote is a multi-tenant installation")
		mediaBase := fs.String("media-base", "", "remote uploads base URL")
		_ = fs.Parse(args[1:])

		rec := credentials.Defaults()
		rec.Host = *host
		rec.Database = *db
		rec.User = *user
		rec.Secret = *secret
		rec.TablePrefix = *prefix
		rec.IsMultiTenant = *multi
		rec.MediaBaseURL = *mediaBase

		if err := credentials.Save(ctx, st, rec, keyMaterial()); err != nil {
			logOut.Fatalw("save credentials", "err", err)
		}
		logOut.Infow("remote credentials sealed", "host", rec.Host, "db", rec.Database)

	case "show":
		rec, found, err := credentials.Load(ctx, st, keyMaterial())
		if err != nil {
			logOut.Fatalw("load credentials", "err", err)
		}
		if !found {
			fmt.Println("no remote credentials stored")
			return
		}
		rec.Secret = "********"
		out, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(out))

	default:
		fmt.Fprintln(os.Stderr, "usage: migrate credentials <set|show> [flags]")
		os.Exit(2)
	}
}

/*──────────────────────────── flag helpers ────────────────────────────────*/

func tenantPtr(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// oldBaseURL prefers the stored credential record's media base so one
// config file can serve several remotes.
func oldBaseURL(cfg *config.Config, rec credentials.Record) string {
	if rec.MediaBaseURL != "" {
		return rec.MediaBaseURL
	}
	return cfg.Media.OldBaseURL
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitIDs(s string) []int64 {
	var out []int64
	for _, p := range splitList(s) {
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// report prints the summary as indented JSON; operator output goes to
// stdout, structured events to the log.
func report(sum any) {
	out, _ := json.MarshalIndent(sum, "", "  ")
	fmt.Println(string(out))
}
