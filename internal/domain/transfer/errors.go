// Package transfer defines the failure taxonomy shared by the archive codec,
// the staging manager and the import/export module.
package transfer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"syscall"
)

// ErrorCode classifies import/export failures.
type ErrorCode string

const (
	CodeBadRequest     ErrorCode = "bad_request"
	CodeForbidden      ErrorCode = "forbidden"
	CodeNotFound       ErrorCode = "not_found"
	CodeCorruptArchive ErrorCode = "corrupt_archive"
	CodeIO             ErrorCode = "io"
	CodePermission     ErrorCode = "permission"
	CodeStagingExpired ErrorCode = "staging_expired"
	CodePersistence    ErrorCode = "persistence"
	CodeConflict       ErrorCode = "conflict"
	CodeInternal       ErrorCode = "internal"
)

// Error is the canonical import/export error.
//
// Reconcile is set when live assets were already changed and could not be
// restored after a later step failed; the asset directory and the record may
// disagree until an operator intervenes.
type Error struct {
	Code      ErrorCode
	Op        string
	Message   string
	Cause     error
	Reconcile bool
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an error with explicit code and operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates err with code. Errors that already carry a code keep it.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return NewError(code, op, err.Error(), err)
}

// FromFS classifies a filesystem failure as permission or io.
func FromFS(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EROFS) || os.IsPermission(err) {
		return NewError(CodePermission, op, err.Error(), err)
	}
	return NewError(CodeIO, op, err.Error(), err)
}

// MarkReconcile flags err for manual reconciliation.
func MarkReconcile(err error) error {
	var te *Error
	if errors.As(err, &te) {
		te.Reconcile = true
		return err
	}
	return &Error{Code: CodePersistence, Message: errString(err), Cause: err, Reconcile: true}
}

// IsCode reports whether err (or a wrapped error) carries code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the code when available.
func CodeOf(err error) ErrorCode {
	var te *Error
	if !errors.As(err, &te) {
		return ""
	}
	return te.Code
}

// NeedsReconcile reports whether err was flagged by MarkReconcile.
func NeedsReconcile(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Reconcile
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
