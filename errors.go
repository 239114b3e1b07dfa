package redish

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gomodule/redigo/redis"
)

var (
	// ErrNil is returned by Command when the reply is nil and the
	// requested Go type cannot represent an absent value. It is the same
	// value as redigo's redis.ErrNil. It is also wrapped in a FormatError
	// when an absent key or value is found in a map reply.
	ErrNil = redis.ErrNil

	// ErrNotBool is wrapped in a FormatError when a reply is decoded as a
	// Bool but is not one of the integers 1 and 0 or the case-insensitive
	// strings "1", "0", "true" and "false". Any other value always fails,
	// it is never interpreted as true or false.
	ErrNotBool = errors.New("redish: value is not a boolean")

	// ErrClosed is returned when a command is executed on a closed
	// connection.
	ErrClosed = errors.New("redish: closed")
)

// ServerError is an error reply sent by the server. Its value is the
// server message, verbatim.
type ServerError string

func (e ServerError) Error() string { return string(e) }

// Prefix returns the error code of the message, which is the first word
// of the message by convention (e.g. "ERR", "WRONGTYPE" or "EXECABORT").
func (e ServerError) Prefix() string {
	s := string(e)
	if ix := strings.IndexByte(s, ' '); ix >= 0 {
		return s[:ix]
	}
	return s
}

// IsServerError returns true if err is or wraps a ServerError with the
// provided prefix. If prefix is empty, it returns true for any
// ServerError.
func IsServerError(err error, prefix string) bool {
	var se ServerError
	if !errors.As(err, &se) {
		return false
	}
	return prefix == "" || se.Prefix() == prefix
}

// ConnectionError is returned when a connection to the server cannot be
// established.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("redish: connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError is returned when a reply of an unknown kind is received.
// It indicates a bug in the transport and is never retried.
type ProtocolError struct {
	Kind Kind
	// Value is set when the transport produced a Go value that has no
	// corresponding reply kind.
	Value interface{}
}

func (e *ProtocolError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("redish: protocol violation: unexpected reply value of type %T", e.Value)
	}
	return fmt.Sprintf("redish: protocol violation: unexpected reply kind %s", e.Kind)
}

// FormatError is returned when the text of a reply cannot be converted
// to the requested shape. Err is one of the strconv errors
// (strconv.ErrSyntax, strconv.ErrRange), ErrNotBool or ErrNil.
type FormatError struct {
	Shape Shape
	Text  string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("redish: cannot decode %q as %s: %v", e.Text, e.Shape, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// TypeMismatchError is returned when the decoded reply does not match
// the requested shape or Go type.
type TypeMismatchError struct {
	Requested string
	Actual    string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("redish: type mismatch: requested %s, got %s", e.Requested, e.Actual)
}

// TransactionFailedError is returned when an optimistic transaction
// was aborted more times than allowed by its retry budget.
type TransactionFailedError struct {
	Name    string
	Retries int
}

func (e *TransactionFailedError) Error() string {
	return fmt.Sprintf("redish: transaction %s failed after %d retries", e.Name, e.Retries)
}

// ExecError is returned by Conn.Transact when the transaction was
// committed but some of its commands failed. Redis does not roll back
// the other commands, their replies are in Results.
type ExecError struct {
	Name string

	// Results holds the reply of each queued command, as returned by
	// Transact. The element of a failed command is nil.
	Results []*string

	// Errors holds the error of each queued command, nil for the commands
	// that succeeded. It has the same length as Results.
	Errors []error
}

func (e *ExecError) Error() string {
	var n int
	var first error
	for _, err := range e.Errors {
		if err != nil {
			if first == nil {
				first = err
			}
			n++
		}
	}
	return fmt.Sprintf("redish: transaction %s committed with %d failed command(s): %v", e.Name, n, first)
}

// Unwrap returns the errors of the failed commands.
func (e *ExecError) Unwrap() []error {
	var errs []error
	for _, err := range e.Errors {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
