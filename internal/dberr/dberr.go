// Package dberr defines the error taxonomy shared by the query compiler, the
// execution layer and the result wrappers. Every typed error matches its
// sentinel through errors.Is, so callers can branch on the class of failure
// without caring which layer produced it.
package dberr

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per failure class.
var (
	ErrMalformedQuery  = errors.New("malformed query")
	ErrTransport       = errors.New("transport error")
	ErrServer          = errors.New("server error")
	ErrDeserialization = errors.New("deserialization error")
	ErrNotFound        = errors.New("not found")
)

// MalformedQueryError is a local contract violation detected before any
// request is sent.
type MalformedQueryError struct {
	Reason string
}

// Malformed builds a MalformedQueryError from a format string.
func Malformed(format string, args ...any) *MalformedQueryError {
	return &MalformedQueryError{Reason: fmt.Sprintf(format, args...)}
}

func (e *MalformedQueryError) Error() string {
	return "malformed query: " + e.Reason
}

func (e *MalformedQueryError) Is(target error) bool { return target == ErrMalformedQuery }

// TransportError wraps a network or connection failure for operation Op.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ServerError is an error reported by the remote database. Code is the HTTP
// status, ErrorNum the database specific error number.
type ServerError struct {
	Op       string
	Code     int
	ErrorNum int
	Message  string
}

func (e *ServerError) Error() string {
	if e.ErrorNum != 0 {
		return fmt.Sprintf("%s: server error %d (errorNum %d): %s", e.Op, e.Code, e.ErrorNum, e.Message)
	}
	return fmt.Sprintf("%s: server error %d: %s", e.Op, e.Code, e.Message)
}

func (e *ServerError) Is(target error) bool { return target == ErrServer }

// DeserializationError reports a document that could not be mapped to the
// requested record type. Index is the position of the offending document.
type DeserializationError struct {
	Collection string
	Index      int
	Err        error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("decode %s document %d: %v", e.Collection, e.Index, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

func (e *DeserializationError) Is(target error) bool { return target == ErrDeserialization }

// NotFoundError is returned when exactly one document was required but Count
// documents matched.
type NotFoundError struct {
	Item  string
	Count int
}

func (e *NotFoundError) Error() string {
	if e.Count > 1 {
		return fmt.Sprintf("%s not found: %d documents matched, expected one", e.Item, e.Count)
	}
	return fmt.Sprintf("%s not found", e.Item)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
