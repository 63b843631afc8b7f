// Package failcode holds the error codes shared by the search, ledger and fetch clients.
package failcode

import "github.com/morikuni/failure/v2"

// ErrorCode defines error types for outbound calls
type ErrorCode string

const (
	// Transport is a network or timeout failure on any outbound call
	Transport ErrorCode = "TransportError"
	// Configuration is a missing credential or endpoint for an operation that needs it
	Configuration ErrorCode = "ConfigurationError"
	// Upstream is a non-2xx answer from the search API or the ledger
	Upstream ErrorCode = "UpstreamError"
	// ProtocolMismatch is a 402 answer without x402 signaling
	ProtocolMismatch ErrorCode = "ProtocolMismatch"
	// InvalidResponse is a 2xx answer whose body could not be used
	InvalidResponse ErrorCode = "InvalidResponse"
	// InvalidArguments is a tool or CLI input that failed validation
	InvalidArguments ErrorCode = "InvalidArguments"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// Describe returns the user-facing message of err, falling back to its full text
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if msg := failure.MessageOf(err); msg != "" {
		return msg.String()
	}
	return err.Error()
}

var known = []ErrorCode{Transport, Configuration, Upstream, ProtocolMismatch, InvalidResponse, InvalidArguments}

// CodeOf returns the code carried by err, or "" when it has none of ours
func CodeOf(err error) ErrorCode {
	for _, c := range known {
		if failure.Is(err, c) {
			return c
		}
	}
	return ""
}
