package script

// Phase identifies when a script runs relative to the HTTP call.
type Phase string

const (
	PhasePreRequest Phase = "pre-request"
	PhaseTest       Phase = "test"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p == PhasePreRequest || p == PhaseTest
}

// AuthParam is a single key/value parameter of an auth descriptor.
type AuthParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Auth describes request authentication. Params is keyed by auth type name
// ("bearer", "basic", ...), each holding an ordered parameter list, mirroring
// the shape the collection editor stores.
type Auth struct {
	Type   string                 `json:"type"`
	Params map[string][]AuthParam `json:"params,omitempty"`
}

// Param returns the value of the named parameter for the descriptor's
// current type.
func (a *Auth) Param(key string) (string, bool) {
	if a == nil {
		return "", false
	}
	for _, p := range a.Params[a.Type] {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// RequestSnapshot is the immutable request state a job runs against.
type RequestSnapshot struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
	Auth    *Auth             `json:"auth,omitempty"`
}

// ResponseSnapshot is the response state supplied to test-phase jobs.
type ResponseSnapshot struct {
	Code         int               `json:"code"`
	Status       string            `json:"status"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         string            `json:"body,omitempty"`
	ResponseTime int64             `json:"responseTime"` // milliseconds
}

// ExecutionJob describes one script invocation. Immutable once submitted:
// the worker copies every map before exposing it to the script.
type ExecutionJob struct {
	ID       string            `json:"-"`
	Script   string            `json:"-"`
	Phase    Phase             `json:"phase"`
	Request  RequestSnapshot   `json:"request"`
	Response *ResponseSnapshot `json:"response,omitempty"`

	Environment         map[string]string `json:"environment,omitempty"`
	Globals             map[string]string `json:"globals,omitempty"`
	CollectionVariables map[string]string `json:"collectionVariables,omitempty"`
}
