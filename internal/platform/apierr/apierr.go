package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/studyport-backend/internal/domain/transfer"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

var statusByCode = map[transfer.ErrorCode]int{
	transfer.CodeBadRequest:     http.StatusBadRequest,
	transfer.CodeCorruptArchive: http.StatusBadRequest,
	transfer.CodeForbidden:      http.StatusForbidden,
	transfer.CodeNotFound:       http.StatusNotFound,
	transfer.CodeConflict:       http.StatusConflict,
	transfer.CodeStagingExpired: http.StatusGone,
	transfer.CodePermission:     http.StatusInternalServerError,
	transfer.CodeIO:             http.StatusInternalServerError,
	transfer.CodePersistence:    http.StatusInternalServerError,
	transfer.CodeInternal:       http.StatusInternalServerError,
}

// From converts any error into an API error. Existing API errors pass
// through; import/export errors map by code; anything else is a 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	code := transfer.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		return New(http.StatusInternalServerError, string(transfer.CodeInternal), err)
	}
	return New(status, string(code), err)
}
