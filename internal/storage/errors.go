package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ConnFailure is the operator-facing cause of a database connection failure
type ConnFailure string

const (
	FailureHostUnreachable ConnFailure = "host_unreachable"
	FailureAuth            ConnFailure = "auth_failed"
	FailureMissingSchema   ConnFailure = "missing_schema"
	FailureServerRestart   ConnFailure = "server_restart"
	FailureUnknown         ConnFailure = "unknown"
)

// Hint returns a message an operator can act on
func (f ConnFailure) Hint() string {
	switch f {
	case FailureHostUnreachable:
		return "could not reach the database server, check that it is running and the host is correct"
	case FailureAuth:
		return "access denied, check the database credentials"
	case FailureMissingSchema:
		return "database or table does not exist, check the database name and table prefix"
	case FailureServerRestart:
		return "database server went away, try again later"
	default:
		return "database connection failed"
	}
}

// ConnError is a classified database connection failure
type ConnError struct {
	Cause ConnFailure
	Err   error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("%s: %v", e.Cause.Hint(), e.Err)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}

// WrapConnError classifies err and wraps it in a ConnError. Nil stays nil.
func WrapConnError(err error) error {
	if err == nil {
		return nil
	}
	var cerr *ConnError
	if errors.As(err, &cerr) {
		return err
	}
	return &ConnError{Cause: ClassifyConnError(err), Err: err}
}

// ClassifyConnError maps driver and network errors from either pgx or
// lib/pq onto a ConnFailure
func ClassifyConnError(err error) ConnFailure {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return ClassifyCode(pgErr.Code)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return ClassifyCode(string(pqErr.Code))
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureHostUnreachable
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, context.DeadlineExceeded) {
		return FailureHostUnreachable
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) {
		return FailureServerRestart
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureHostUnreachable
	}

	return FailureUnknown
}

// ClassifyCode maps a PostgreSQL SQLSTATE onto a ConnFailure
func ClassifyCode(code string) ConnFailure {
	switch code {
	case "28P01", "28000":
		return FailureAuth
	case "3D000", "3F000", "42P01":
		return FailureMissingSchema
	case "57P01", "57P02", "57P03", "08006", "08003":
		return FailureServerRestart
	case "08001", "08004":
		return FailureHostUnreachable
	default:
		return FailureUnknown
	}
}
