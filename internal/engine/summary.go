// internal/engine/summary.go
//
// Per-invocation counters.  Created at run start, mutated throughout,
// returned to the caller; never persisted.
package engine

// AttachmentSummary counts binary resource work within a run.
type AttachmentSummary struct {
	Found      int
	Registered int // downloaded and registered this run
	Reused     int // already present, resolved by logical path
	Thumbnails int // featured images set
	Rewritten  int // entries whose content changed in the rewrite pass
	Missing    []MissingResource
	// Rewrites lists the URL substitutions a standalone ImportAttachments
	// run produced: per-file pairs first, then the base-URL map.  RunImport
	// applies its pairs inline and leaves this empty.
	Rewrites []Replacement
}

// RunSummary is the result of one RunImport.
type RunSummary struct {
	RunID    int64
	Found    int
	Imported int
	Updated  int
	Skipped  int
	Errors   []string
	// Map records source id → local id for every row that reached a
	// terminal mapped state.  Dry-run records 0 for rows that would be
	// created.
	Map map[int64]int64

	Attachments AttachmentSummary
}

func newRunSummary(runID int64) *RunSummary {
	return &RunSummary{RunID: runID, Map: make(map[int64]int64)}
}

func (s *RunSummary) addError(err error) {
	s.Errors = append(s.Errors, err.Error())
}

// TermImportSummary is the result of one ImportTerms.
type TermImportSummary struct {
	Found    int
	Imported int
	Updated  int
	// Errors is per source term id; a term can fail in more than one way.
	Errors map[int64][]string
	// Orphans lists terms whose parent could not be resolved and were
	// imported as roots.
	Orphans []int64
	Map     map[int64]int64
	RunID   int64
}

func newTermSummary(runID int64) *TermImportSummary {
	return &TermImportSummary{
		RunID:  runID,
		Errors: make(map[int64][]string),
		Map:    make(map[int64]int64),
	}
}

func (s *TermImportSummary) addError(sourceID int64, msg string) {
	s.Errors[sourceID] = append(s.Errors[sourceID], msg)
}

// UserImportSummary is the result of one ImportUsers.
type UserImportSummary struct {
	Found    int
	Imported int
	Updated  int
	Skipped  int
	Errors   []string
	Map      map[int64]int64
	RunID    int64
}

func newUserSummary(runID int64) *UserImportSummary {
	return &UserImportSummary{RunID: runID, Map: make(map[int64]int64)}
}
