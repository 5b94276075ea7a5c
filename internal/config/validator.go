// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree into a `Config` instance.  Any tag
// mismatch or validation error aborts startup, ensuring a migration run
// never begins with partial, malformed, or missing configuration.
//
// The tag rules in use are `required` on Store.DSN, `oneof` on the
// write-mode default, and range checks on chunk size and media timeouts.
// One struct-level rule lives here: when both media base URLs are set they
// must differ, otherwise the URL rewriter degenerates into a no-op and
// every rewritten entry silently keeps its legacy links.

package config

import "github.com/go-playground/validator/v10"

//
// validator instance (package-level singleton)
//

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterStructValidation(validateMedia, Media{})
	return val
}

//
// struct-level rules
//

func validateMedia(sl validator.StructLevel) {
	m := sl.Current().Interface().(Media)
	if m.OldBaseURL != "" && m.OldBaseURL == m.NewBaseURL {
		sl.ReportError(m.NewBaseURL, "NewBaseURL", "new_base_url", "nefield", "OldBaseURL")
	}
}

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
