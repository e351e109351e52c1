// Package errs holds the fatal error kinds surfaced to callers. Data quality problems inside a
// workbook are never reported through these types; they degrade to NULL or a skipped row.
package errs

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ConnectivityError reports that the catalog could not be reached or rejected the credentials.
type ConnectivityError struct {
	Dialect string
	Host    string
	Err     error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("unable to reach %s catalog at %s: %v", e.Dialect, e.Host, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// UnsupportedDialectError reports a dialect tag that has no catalog or literal rules.
type UnsupportedDialectError struct {
	Dialect string
}

func (e *UnsupportedDialectError) Error() string {
	if e.Dialect == "" {
		return "missing database dialect"
	}
	return fmt.Sprintf("unsupported database dialect: %q", e.Dialect)
}

// MalformedInputError reports a structure, connection or dialect payload that is missing or unparsable.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

func Connectivity(dialect, host string, err error) error {
	return errors.WithStack(&ConnectivityError{Dialect: dialect, Host: host, Err: err})
}

func UnsupportedDialect(dialect string) error {
	return errors.WithStack(&UnsupportedDialectError{Dialect: dialect})
}

func Malformed(reason string, err error) error {
	return errors.WithStack(&MalformedInputError{Reason: reason, Err: err})
}

func IsConnectivity(err error) bool {
	var target *ConnectivityError
	return errors.As(err, &target)
}

func IsUnsupportedDialect(err error) bool {
	var target *UnsupportedDialectError
	return errors.As(err, &target)
}

func IsMalformed(err error) bool {
	var target *MalformedInputError
	return errors.As(err, &target)
}
