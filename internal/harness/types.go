package harness

// Trace event types.
const (
	EventFind   = "find"
	EventWrite  = "write"
	EventTouch  = "touch"
	EventRemove = "remove"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`
	Path string `json:"path"`

	// Find results. Error is set instead when the lookup failed.
	Bundle       bool     `json:"bundle,omitempty"`
	Kind         string   `json:"kind,omitempty"`
	ContentType  string   `json:"content_type,omitempty"`
	DigestPath   string   `json:"digest_path,omitempty"`
	Constituents []string `json:"constituents,omitempty"`
	Error        string   `json:"error,omitempty"`

	source string
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Finds returns the find events for path in trace order.
func (r *Result) Finds(path string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventFind && ev.Path == path {
			out = append(out, ev)
		}
	}
	return out
}
