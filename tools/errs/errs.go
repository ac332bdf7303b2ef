package errs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CodeError is the error currency of the module. Every failure a caller can
// react to carries a stable code; Detail accumulates context as the error
// travels up.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// WithDetail returns a copy carrying additional detail. The receiver is
// never mutated, so the predefined sentinels stay clean.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// Wrap attaches a stack trace.
func (e *CodeError) Wrap() error {
	return errors.WithStack(e)
}

// WrapMsg attaches detail plus a stack trace in one step.
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	return errors.WithStack(e.WithDetail(toString(msg, kv)))
}

// Is matches by code so wrapped errors still compare equal to their
// sentinel via errors.Is.
func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func toString(msg string, kv []any) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		}
	}
	return sb.String()
}

// Wrap adds a stack trace to an arbitrary error.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

// WrapMsg annotates and adds a stack trace.
func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(errors.WithMessage(err, toString(msg, kv)))
}

// Is reports whether err carries the same code as the sentinel.
func Is(err error, sentinel *CodeError) bool {
	return errors.Is(err, sentinel)
}
