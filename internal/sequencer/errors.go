package sequencer

import (
	"errors"
	"fmt"

	"github.com/roach88/escalate/internal/rstmgr"
)

// ErrorCode categorizes boot failures.
type ErrorCode string

const (
	// CodeUnclassifiedReset: the reset info matched neither known cause.
	CodeUnclassifiedReset ErrorCode = "UNCLASSIFIED_RESET"

	// CodeUnexpectedResume: the interrupt wait returned on the power-on path.
	CodeUnexpectedResume ErrorCode = "UNEXPECTED_RESUME"

	// CodeCheckFailed: a peripheral operation failed.
	CodeCheckFailed ErrorCode = "CHECK_FAILED"

	// CodeAborted: the boot was cancelled from outside while suspended.
	CodeAborted ErrorCode = "ABORTED"
)

// Error is a failed boot. None of these are retried.
type Error struct {
	Code    ErrorCode
	Message string

	// Op names the failing operation (CheckFailed only).
	Op string

	// Raw is the reset info that led to the failure, when relevant.
	Raw rstmgr.ResetInfo

	Err error
}

func (e *Error) Error() string {
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsUnclassified reports whether err is an unclassified reset cause.
func IsUnclassified(err error) bool { return hasCode(err, CodeUnclassifiedReset) }

// IsUnexpectedResume reports whether err is a resume after suspension.
func IsUnexpectedResume(err error) bool { return hasCode(err, CodeUnexpectedResume) }

// IsCheckFailed reports whether err is a failed peripheral operation.
func IsCheckFailed(err error) bool { return hasCode(err, CodeCheckFailed) }

// IsAborted reports whether the boot was cancelled while suspended.
func IsAborted(err error) bool { return hasCode(err, CodeAborted) }

// NewUnclassifiedError creates an Error for an unrecognized reset cause.
func NewUnclassifiedError(raw rstmgr.ResetInfo) *Error {
	return &Error{
		Code:    CodeUnclassifiedReset,
		Message: fmt.Sprintf("reset info %d matches no known cause", uint32(raw)),
		Raw:     raw,
	}
}

// NewUnexpectedResumeError creates an Error for a wait that returned.
func NewUnexpectedResumeError() *Error {
	return &Error{
		Code:    CodeUnexpectedResume,
		Message: "interrupt wait returned; chip did not reset",
		Raw:     rstmgr.InfoPor,
	}
}

// NewCheckFailedError creates an Error for a failed peripheral operation.
func NewCheckFailedError(op string, err error) *Error {
	return &Error{
		Code: CodeCheckFailed,
		Op:   op,
		Err:  err,
	}
}

// NewAbortedError creates an Error for a suspended boot cancelled externally.
func NewAbortedError(err error) *Error {
	return &Error{
		Code:    CodeAborted,
		Message: "boot cancelled while waiting for interrupt",
		Err:     err,
	}
}
