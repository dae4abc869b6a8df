package validation

// Level grades a single cell or issue. Warnings surface to the user but
// never block the wizard; errors block insertion until fixed.
type Level string

const (
	LevelOK      Level = "ok"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Verdict is the per-cell outcome of row validation.
type Verdict struct {
	Level  Level  `json:"level"`
	Reason string `json:"reason,omitempty"`
}

func OK() Verdict {
	return Verdict{Level: LevelOK}
}

func Warn(reason string) Verdict {
	return Verdict{Level: LevelWarning, Reason: reason}
}

func Fail(reason string) Verdict {
	return Verdict{Level: LevelError, Reason: reason}
}

// IssueKind buckets validation findings. Parse, encoding and IO issues
// concern the file as a whole; header kinds concern the column list;
// the rest are per-cell data findings.
type IssueKind string

const (
	KindParse           IssueKind = "parse"
	KindEncoding        IssueKind = "encoding"
	KindIO              IssueKind = "io"
	KindHeaderMissing   IssueKind = "header_missing"
	KindHeaderUnknown   IssueKind = "header_unknown"
	KindHeaderForbidden IssueKind = "header_forbidden"
	KindValue           IssueKind = "value"
	KindRange           IssueKind = "range"
	KindUnresolved      IssueKind = "unresolved"
	KindAmbiguous       IssueKind = "ambiguous"
)

func (k IssueKind) isHeaderKind() bool {
	switch k {
	case KindParse, KindEncoding, KindIO, KindHeaderMissing, KindHeaderUnknown, KindHeaderForbidden:
		return true
	default:
		return false
	}
}

// Issue is one finding. Row is the 1-based file line (the header is
// line 1, so data issues start at 2); zero means the issue is not tied
// to a particular line.
type Issue struct {
	Row     int    `json:"row,omitempty"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// Summary aggregates every finding of one validation run. A re-run
// always builds a fresh Summary; partial merges across runs are not
// supported.
type Summary struct {
	Issues           map[IssueKind][]Issue `json:"issues"`
	HeaderErrorCount int                   `json:"header_error_count"`
	DataErrorCount   int                   `json:"data_error_count"`
	WarningCount     int                   `json:"warning_count"`
	Fatal            bool                  `json:"fatal"`
}

func NewSummary() *Summary {
	return &Summary{Issues: map[IssueKind][]Issue{}}
}

// Add records one finding and bumps the matching counter. File and
// header kinds count toward HeaderErrorCount, everything else toward
// DataErrorCount; warnings never count as errors.
func (s *Summary) Add(kind IssueKind, level Level, issue Issue) {
	s.Issues[kind] = append(s.Issues[kind], issue)
	if level == LevelWarning {
		s.WarningCount++
		return
	}
	if kind.isHeaderKind() {
		s.HeaderErrorCount++
	} else {
		s.DataErrorCount++
	}
}

// ReplaceResolutionIssues swaps the catalog resolution findings for the
// ones in latest, keeping every other finding and counter. Defaults
// merging fills and replaces reference cells after the first resolution
// pass, so first-pass findings may describe cells that no longer exist.
// Unresolved findings are always warnings and ambiguous ones always
// errors, which keeps the counters exact.
func (s *Summary) ReplaceResolutionIssues(latest *Summary) {
	s.WarningCount -= len(s.Issues[KindUnresolved])
	s.DataErrorCount -= len(s.Issues[KindAmbiguous])
	delete(s.Issues, KindUnresolved)
	delete(s.Issues, KindAmbiguous)
	for _, issue := range latest.Issues[KindUnresolved] {
		s.Add(KindUnresolved, LevelWarning, issue)
	}
	for _, issue := range latest.Issues[KindAmbiguous] {
		s.Add(KindAmbiguous, LevelError, issue)
	}
}

func (s *Summary) TotalErrorCount() int {
	return s.HeaderErrorCount + s.DataErrorCount
}

// HasErrors reports whether any error-level finding was recorded.
func (s *Summary) HasErrors() bool {
	return s.TotalErrorCount() > 0
}
