package cerr

import (
	"errors"
	"fmt"
)

// Error carries a Code alongside a user-facing message. Msg must be
// self-sufficient for retry: not-found errors enumerate legal candidates,
// ambiguous errors enumerate the tied candidates with their ids.
type Error struct {
	Code Code
	Msg  string // returned to the user together with the code
	Err  error  // underlying error kept for logs
}

func NewError(code Code, msg string, underlying error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  underlying,
	}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code.String(), e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code.String(), e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the user-facing message of err, falling back to
// err.Error() when err is not a *cerr.Error.
func Message(err error) string {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Msg
	}
	return err.Error()
}

func IsCode(err error, code Code) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}
