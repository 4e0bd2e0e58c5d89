package luna

import (
	"encoding/json"
	"fmt"
)

// ErrorCodeGeneric is the errorCode used for every failure this bus reports.
const ErrorCodeGeneric = -1

// Reply holds the fields shared by every bus response.
type Reply struct {
	ReturnValue bool   `json:"returnValue"`
	ErrorCode   int    `json:"errorCode,omitempty"`
	ErrorText   string `json:"errorText,omitempty"`
}

// OK is the bare success reply.
func OK() Reply { return Reply{ReturnValue: true} }

// Failure builds a failed reply with the generic error code.
func Failure(text string) Reply {
	return Reply{ReturnValue: false, ErrorCode: ErrorCodeGeneric, ErrorText: text}
}

// Stub is the success reply for routes that are not implemented. Unknown
// services still succeed so legacy callers keep running; the underscore
// fields say what was skipped.
type Stub struct {
	Reply
	Stubbed bool   `json:"_stubbed"`
	Service string `json:"_service,omitempty"`
	Method  string `json:"_method"`
}

// NewStub returns a stub for the given route. Handlers may leave service
// empty; the router fills it in.
func NewStub(service, method string) Stub {
	return Stub{Reply: OK(), Stubbed: true, Service: service, Method: method}
}

// Encode serializes a handler result. Marshal failures become a failure reply.
func Encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return EncodeError(fmt.Errorf("encode response: %w", err))
	}
	return string(data)
}

// EncodeError renders err as a failure response.
func EncodeError(err error) string {
	data, mErr := json.Marshal(Failure(err.Error()))
	if mErr != nil {
		return `{"returnValue":false,"errorCode":-1,"errorText":"internal error"}`
	}
	return string(data)
}
