// internal/source/errors.go
//
// Typed errors for the remote side.  Only these two classes exist here:
// ConnectionError aborts a whole run, QueryError aborts one fetch.  The
// engine layers its per-row classes on top.
package source

import "fmt"

// ConnectionError wraps a failure to reach or authenticate against the
// remote database.  Fatal to the run; nothing beyond prior successful rows
// is committed.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("source: connect %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError wraps a malformed filter or a prepare/execute failure.  The
// current fetch is aborted; prior chunks' commits stand.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("source: %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
