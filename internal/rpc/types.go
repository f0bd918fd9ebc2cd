package rpc

import (
	"encoding/json"
)

// Standard wallet-protocol error codes, plus JSON-RPC reserved codes for
// parameter and internal failures.
const (
	CodeUserRejected      = 4001
	CodeNotAuthenticated  = 4100
	CodeUnsupportedMethod = 4200
	CodeInvalidParams     = -32602
	CodeInternal          = -32603
	CodeBusy              = -32002
	CodeUpstreamFailure   = -32003
)

// Request is an inbound wallet-protocol call. The id is caller-assigned
// and opaque; it is echoed verbatim in the response.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Error is the normalized failure shape crossing the transport boundary.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response carries exactly one of Result or Error, never both, never
// neither.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Result builds a success response. A result that cannot be serialized is
// an internal fault, not a half-formed success.
func Result(id string, v any) Response {
	raw, err := json.Marshal(v)
	if err != nil {
		return Fault(id, CodeInternal, "serialize result: "+err.Error())
	}
	return Response{ID: id, Result: raw}
}

// Fault builds an error response.
func Fault(id string, code int, message string) Response {
	return Response{ID: id, Error: &Error{Code: code, Message: message}}
}
