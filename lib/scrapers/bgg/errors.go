package bgg

import "fmt"

// AuthError means the upstream rejected the bearer token. It is never
// retried: the only fix is regenerating the credential.
type AuthError struct {
	Endpoint string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf(
		"catalog rejected the API token on %s: regenerate your token and update the config",
		e.Endpoint,
	)
}

// FatalError means a request exhausted its retry budget. Params are already
// redacted, the raw credential never appears here.
type FatalError struct {
	Endpoint string
	Params   string
	Attempts int
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf(
		"giving up on %s?%s after %d attempts: %v",
		e.Endpoint, e.Params, e.Attempts, e.Err,
	)
}

func (e *FatalError) Unwrap() error { return e.Err }

// transientError wraps a failure that the request state machine may retry:
// network errors, 5xx responses, pending jobs, recoverably malformed bodies.
type transientError struct {
	reason string
}

func (e *transientError) Error() string { return e.reason }
