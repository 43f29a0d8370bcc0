package portal

import "fmt"

// AuthError means the portal rejected our credentials or never issued a
// token. Retrying without operator intervention is pointless.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TransportError wraps network level failures. These are expected to clear
// on their own and are safe to retry next tick.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// InvalidResponseError means the portal answered but with an unexpected
// status or body shape.
type InvalidResponseError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *InvalidResponseError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d from %s", e.Message, e.StatusCode, e.Endpoint)
	}
	return fmt.Sprintf("%s from %s", e.Message, e.Endpoint)
}
