// Package errors provides the result-code taxonomy and structured error
// type shared by every layer of the HTTP engine.
package errors

import (
	"fmt"
)

// ResultCode enumerates every outcome a socket, transport, or engine
// operation can report. Success is the zero value so an unset
// ResultCode reports success.
type ResultCode int

const (
	Success ResultCode = iota

	UrlInvalid
	SchemeNotSupported
	MethodError

	GetAddressFailed
	ConnectAddressError
	ConnectTypeInconsistent
	ConnectGenericError

	CreateSocketFailed
	GetFlagsFailed
	SetFlagsFailed
	SetNoSigPipeFailed

	Timeout
	Retry
	RetryReachMaxCount

	Disconnected
	Completed
	Failed

	ChunkSizeError

	RedirectError
	RedirectReachMaxCount
)

var resultCodeNames = map[ResultCode]string{
	Success:                 "Success",
	UrlInvalid:              "UrlInvalid",
	SchemeNotSupported:      "SchemeNotSupported",
	MethodError:             "MethodError",
	GetAddressFailed:        "GetAddressFailed",
	ConnectAddressError:     "ConnectAddressError",
	ConnectTypeInconsistent: "ConnectTypeInconsistent",
	ConnectGenericError:     "ConnectGenericError",
	CreateSocketFailed:      "CreateSocketFailed",
	GetFlagsFailed:          "GetFlagsFailed",
	SetFlagsFailed:          "SetFlagsFailed",
	SetNoSigPipeFailed:      "SetNoSigPipeFailed",
	Timeout:                 "Timeout",
	Retry:                   "Retry",
	RetryReachMaxCount:      "RetryReachMaxCount",
	Disconnected:            "Disconnected",
	Completed:               "Completed",
	Failed:                  "Failed",
	ChunkSizeError:          "ChunkSizeError",
	RedirectError:           "RedirectError",
	RedirectReachMaxCount:   "RedirectReachMaxCount",
}

// String implements fmt.Stringer.
func (c ResultCode) String() string {
	if name, ok := resultCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ResultCode(%d)", int(c))
}

// IsSuccess reports whether c represents success.
func (c ResultCode) IsSuccess() bool {
	return c == Success
}

// Error is a structured error carrying a ResultCode plus the OS-level
// errno that produced it, if any. Zero Errno means "not applicable".
type Error struct {
	Code  ResultCode
	Errno int
}

// New builds an *Error from a code and an OS errno (0 when not applicable).
func New(code ResultCode, errno int) *Error {
	return &Error{Code: code, Errno: errno}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Errno != 0 {
		return fmt.Sprintf("%s (errno %d)", e.Code, e.Errno)
	}
	return e.Code.String()
}

// Is allows errors.Is(err, target) style comparisons by matching on
// Code alone, ignoring Errno.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsTimeout reports whether err is a timeout result.
func IsTimeout(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Code == Timeout
}

// CodeOf extracts the ResultCode from err, or Success if err is nil,
// or Failed if err is a non-*Error.
func CodeOf(err error) ResultCode {
	if err == nil {
		return Success
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return Failed
}
