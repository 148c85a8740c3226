package wims

import "fmt"

// The adm/raw protocol distinguishes four terminal outcomes: transport
// failure, a server that answered with something other than JSON, a job the
// service identity is not allowed to run, and a logical refusal. Each gets
// its own error type so callers can react to them separately.

// CommsError reports an HTTP-level failure reaching the WIMS server.
type CommsError struct {
	Job string
	Err error
}

func (e *CommsError) Error() string {
	return fmt.Sprintf("wims: comms failure on job %q: %v", e.Job, e.Err)
}

func (e *CommsError) Unwrap() error { return e.Err }

// ProtocolError reports a response body that is not well-formed JSON. This
// indicates an incompatible server, not a transient condition.
type ProtocolError struct {
	Job  string
	Body string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wims: invalid JSON response to job %q: %s", e.Job, truncate(e.Body, 200))
}

// NotAllowedError reports that the WIMS server refuses the job for our
// service identity. The fix is administrative, not technical.
type NotAllowedError struct {
	Job string
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("wims: job %q not allowed for this service identity, ask the wims admin to enable it", e.Job)
}

// RemoteError reports a well-formed response whose status/message pair did
// not match any accepted success or recoverable-empty pattern.
type RemoteError struct {
	Job     string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("wims: job %q failed: %s", e.Job, e.Message)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
