package script

// Outcome tags a result as clean or failed.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)

// TestOutcome records one pm.test(...) invocation. Immutable once appended.
type TestOutcome struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// RequestPatch is the minimal description of what a script changed on the
// request. A nil header value means "delete this header"; AuthRemoved marks
// an explicit pm.request.removeAuth() as opposed to auth never being set.
type RequestPatch struct {
	URL         *string            `json:"url,omitempty"`
	Method      *string            `json:"method,omitempty"`
	Headers     map[string]*string `json:"headers,omitempty"`
	Body        *string            `json:"body,omitempty"`
	Auth        *Auth              `json:"auth,omitempty"`
	AuthRemoved bool               `json:"authRemoved,omitempty"`
}

// Empty reports whether the patch carries no changes.
func (p *RequestPatch) Empty() bool {
	return p == nil || (p.URL == nil && p.Method == nil && len(p.Headers) == 0 &&
		p.Body == nil && p.Auth == nil && !p.AuthRemoved)
}

// ExecutionResult is the single answer produced for a job. Mutation maps are
// present only when the script actually changed the scope; partial state
// (tests run and console lines captured before a throw) is always preserved.
type ExecutionResult struct {
	ID      string  `json:"id"`
	Outcome Outcome `json:"outcome"`

	Tests   []TestOutcome `json:"tests,omitempty"`
	Console []string      `json:"consoleOutput,omitempty"`
	Error   string        `json:"error,omitempty"`

	EnvironmentUpdates map[string]string `json:"environmentUpdates,omitempty"`
	GlobalUpdates      map[string]string `json:"globalUpdates,omitempty"`
	RequestUpdates     *RequestPatch     `json:"requestUpdates,omitempty"`
}
