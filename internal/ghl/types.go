package ghl

// API version headers expected by the upstream endpoints. The version is
// endpoint-specific, not global: conversations run on an older surface.
const (
	VersionDefault       = "2021-07-28"
	VersionConversations = "2021-04-15"
)

// Envelope is the normalized result of one upstream call: the HTTP status
// to relay and a JSON-serializable body. On success Body is the decoded
// upstream payload; on failure it is an ErrorBody. A non-2xx upstream
// answer is never rewritten into a 200.
type Envelope struct {
	Status int
	Body   any
}

// OK reports whether the envelope carries a successful upstream payload.
func (e *Envelope) OK() bool {
	return e.Status >= 200 && e.Status < 300
}

// errorBody returns the ErrorBody when the envelope carries one.
func (e *Envelope) errorBody() (ErrorBody, bool) {
	eb, ok := e.Body.(ErrorBody)
	return eb, ok
}

// ErrorBody is the error half of the envelope contract. Detail carries the
// raw upstream body for diagnosis; Raw carries unparseable 2xx text.
type ErrorBody struct {
	Error      string `json:"error"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Raw        string `json:"raw_response,omitempty"`
}
