package types

import "encoding/json"

// SuccessEnvelope is the body of every 2xx response from the sandbox backend.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// RawEnvelope lets the client defer decoding of data until it knows the
// target type.
type RawEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// ErrorEnvelope is the body of every non-2xx response.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// APIError carries the error code, an operator-safe message, optional
// per-field details, and whether repeating the request may succeed.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}
