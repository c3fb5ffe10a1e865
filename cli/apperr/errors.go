// Package apperr classifies failures of the deploy pipeline.
//
// Every error carries a kind sentinel for errors.Is() and, where there is
// one, the underlying cause. Both are reachable through Unwrap so callers
// can test for ErrUpload and context.Canceled on the same value.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrIO       = errors.New("io error")
	ErrAPI      = errors.New("api error")
	ErrUpload   = errors.New("upload error")
	ErrProtocol = errors.New("protocol error")
	ErrDecode   = errors.New("decode error")
)

type Error struct {
	Kind    error  // one of the sentinels above
	Op      string // stage or call that failed, e.g. "archive", "/_controller/artifact"
	Message string
	Status  int    // HTTP status, when the failure came off the wire
	Body    string // response diagnostics, truncated
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	} else if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func IO(op string, cause error) error {
	return &Error{Kind: ErrIO, Op: op, Cause: cause}
}

// API reports a control plane call that came back with an application
// level failure. message is the remote message, verbatim.
func API(op string, status int, message string) error {
	return &Error{Kind: ErrAPI, Op: op, Status: status, Message: message}
}

// Transport reports a control plane call that never produced a response.
func Transport(op string, cause error) error {
	return &Error{Kind: ErrAPI, Op: op, Message: "request failed", Cause: cause}
}

func Upload(op, format string, args ...any) error {
	return &Error{Kind: ErrUpload, Op: op, Message: fmt.Sprintf(format, args...)}
}

// UploadFailed reports an upload that never produced a response.
func UploadFailed(op string, cause error) error {
	return &Error{Kind: ErrUpload, Op: op, Message: "request failed", Cause: cause}
}

func UploadStatus(op string, status int, body string) error {
	return &Error{
		Kind:    ErrUpload,
		Op:      op,
		Status:  status,
		Body:    body,
		Message: fmt.Sprintf("fail to upload archive, HTTP %d: %s", status, body),
	}
}

func Protocol(op, format string, args ...any) error {
	return &Error{Kind: ErrProtocol, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Decode(op string, cause error) error {
	return &Error{Kind: ErrDecode, Op: op, Message: "malformed response", Cause: cause}
}

// Is reports whether err is an *Error of the given kind. It is a shorthand
// for errors.Is with one of the package sentinels.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
