// Package engineerr implements the engine's typed error taxonomy: every
// façade-level failure carries a stable Code for machine dispatch, a
// human-readable message, and an originating Caller breadcrumb, wrapping
// the lower-level sentinel errors the individual packages already return.
package engineerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code identifies an error kind for machine dispatch, independent of the
// human-readable message.
type Code string

const (
	CodeMissingParameter  Code = "MissingParameter"
	CodeInvalidRefName    Code = "InvalidRefName"
	CodeNoRefspec         Code = "NoRefspec"
	CodeNotFound          Code = "NotFound"
	CodeAlreadyExists     Code = "AlreadyExists"
	CodeInvalidOid        Code = "InvalidOid"
	CodeAmbiguousOid      Code = "AmbiguousOid"
	CodeIndexReset        Code = "IndexReset"
	CodeUnmergedPaths     Code = "UnmergedPaths"
	CodeUnsafeFilepath    Code = "UnsafeFilepath"
	CodeMaxDepth          Code = "MaxDepth"
	CodeSmartHTTP         Code = "SmartHttp"
	CodeRemoteCapability  Code = "RemoteCapability"
	CodePushRejected      Code = "PushRejected"
	CodeCorrupt           Code = "Corrupt"
	CodeCanceled          Code = "Canceled"
	CodeInternal          Code = "Internal"
)

// Error is the common shape every engineerr value satisfies: a code, the
// command that raised it, and a chain back to whatever lower-level
// sentinel (if any) triggered it.
type Error struct {
	code   Code
	caller string
	msg    string
	cause  error
}

func (e *Error) Error() string {
	if e.caller != "" {
		return fmt.Sprintf("%s: %s: %s", e.caller, e.code, e.msg)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }
func (e *Error) Code() Code    { return e.code }
func (e *Error) Caller() string { return e.caller }

func newErr(code Code, caller, msg string, cause error) *Error {
	return &Error{code: code, caller: caller, msg: msg, cause: cause}
}

// WithStack wraps err with a captured stack trace, for use at the façade
// boundary where an operation is about to surface to a caller far from
// where the underlying error originated, using
// github.com/pkg/errors at command entry points.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

// MissingParameter reports that a required façade argument (file-system
// provider, gitdir, ref name, ...) was not supplied.
func MissingParameter(parameter, caller string) error {
	return newErr(CodeMissingParameter, caller,
		fmt.Sprintf("missing required parameter %q", parameter), nil)
}

// InvalidRefName reports a ref argument that fails the git ref-name
// grammar, carrying a sanitised suggestion a caller can retry with.
func InvalidRefName(ref, suggestion, caller string) error {
	return newErr(CodeInvalidRefName, caller,
		fmt.Sprintf("invalid reference name %q (try %q)", ref, suggestion), nil)
}

func NoRefspec(remote, caller string) error {
	return newErr(CodeNoRefspec, caller, fmt.Sprintf("no refspec configured for remote %q", remote), nil)
}

func NotFound(what, caller string, cause error) error {
	return newErr(CodeNotFound, caller, fmt.Sprintf("%s not found", what), cause)
}

func AlreadyExists(what, caller string) error {
	return newErr(CodeAlreadyExists, caller, fmt.Sprintf("%s already exists", what), nil)
}

func InvalidOid(value, caller string) error {
	return newErr(CodeInvalidOid, caller, fmt.Sprintf("invalid object id %q", value), nil)
}

func AmbiguousOid(value string, candidates []string, caller string) error {
	return newErr(CodeAmbiguousOid, caller,
		fmt.Sprintf("short object id %q is ambiguous among %v", value, candidates), nil)
}

func IndexReset(filepath, caller string) error {
	return newErr(CodeIndexReset, caller, fmt.Sprintf("index entry for %q was reset", filepath), nil)
}

func UnmergedPaths(filepaths []string, caller string) error {
	return newErr(CodeUnmergedPaths, caller, fmt.Sprintf("unmerged paths: %v", filepaths), nil)
}

func UnsafeFilepath(filepath, caller string) error {
	return newErr(CodeUnsafeFilepath, caller, fmt.Sprintf("path %q escapes the work tree", filepath), nil)
}

func MaxDepth(depth int, caller string) error {
	return newErr(CodeMaxDepth, caller, fmt.Sprintf("exceeded maximum depth %d", depth), nil)
}

// SmartHTTPError carries a byte preview of an unexpected (non-smart)
// HTTP response body.
type SmartHTTPError struct {
	Err      *Error
	Preview  string
	Response string
}

func (e *SmartHTTPError) Error() string  { return e.Err.Error() }
func (e *SmartHTTPError) Unwrap() error  { return e.Err }
func (e *SmartHTTPError) Code() Code     { return e.Err.Code() }
func (e *SmartHTTPError) Caller() string { return e.Err.Caller() }

func SmartHTTP(preview, response, caller string) error {
	return &SmartHTTPError{
		Err:      newErr(CodeSmartHTTP, caller, fmt.Sprintf("unexpected non-smart response: %q", preview), nil),
		Preview:  preview,
		Response: response,
	}
}

// RemoteCapabilityError reports a requested protocol feature the remote
// did not advertise.
type RemoteCapabilityError struct {
	Err        *Error
	Capability string
	Parameter  string
}

func (e *RemoteCapabilityError) Error() string  { return e.Err.Error() }
func (e *RemoteCapabilityError) Unwrap() error  { return e.Err }
func (e *RemoteCapabilityError) Code() Code     { return e.Err.Code() }
func (e *RemoteCapabilityError) Caller() string { return e.Err.Caller() }

func RemoteCapability(capability, parameter, caller string) error {
	return &RemoteCapabilityError{
		Err:        newErr(CodeRemoteCapability, caller, fmt.Sprintf("remote does not support capability %q", capability), nil),
		Capability: capability,
		Parameter:  parameter,
	}
}

// PushRejectedError reports a per-ref push rejection reason.
type PushRejectedError struct {
	Err    *Error
	Reason string
}

func (e *PushRejectedError) Error() string  { return e.Err.Error() }
func (e *PushRejectedError) Unwrap() error  { return e.Err }
func (e *PushRejectedError) Code() Code     { return e.Err.Code() }
func (e *PushRejectedError) Caller() string { return e.Err.Caller() }

const (
	ReasonNotFastForward = "not-fast-forward"
	ReasonTagExists      = "tag-exists"
)

func PushRejected(reason, caller string) error {
	return &PushRejectedError{
		Err:    newErr(CodePushRejected, caller, fmt.Sprintf("push rejected: %s", reason), nil),
		Reason: reason,
	}
}

func Corrupt(what, detail, caller string) error {
	return newErr(CodeCorrupt, caller, fmt.Sprintf("%s is corrupt: %s", what, detail), nil)
}

func Canceled(caller string) error {
	return newErr(CodeCanceled, caller, "operation canceled", nil)
}

func Internal(detail, caller string) error {
	return newErr(CodeInternal, caller, fmt.Sprintf("internal invariant violated: %s", detail), nil)
}

// As reports whether err (or something in its chain) is an *Error, the
// typed-error analogue of errors.As for callers that want to read Code()
// without importing the concrete subtype.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
