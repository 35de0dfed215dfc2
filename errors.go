package mockldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory separates the two failure classes callers can encounter.
type ErrorCategory string

const (
	// CategoryAuthoring covers test-authoring mistakes: malformed filters,
	// unknown URIs, calls that must be seeded.
	CategoryAuthoring ErrorCategory = "authoring"

	// CategoryDirectory covers simulated directory outcomes that mirror what
	// a real server would return.
	CategoryDirectory ErrorCategory = "directory"
)

// Error kinds. Every error returned by this package wraps exactly one of
// these, so tests can assert with errors.Is.
var (
	ErrFilterSyntax       = errors.New("filter syntax error")
	ErrUnsupportedFilter  = errors.New("unsupported filter construct")
	ErrInvalidDNSyntax    = errors.New("invalid DN syntax")
	ErrNoSuchEntry        = errors.New("no such entry")
	ErrEntryAlreadyExists = errors.New("entry already exists")
	ErrNoSuchAttribute    = errors.New("no such attribute")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrProtocol           = errors.New("protocol error")
	ErrSeedRequired       = errors.New("seed required")
	ErrNoSuchDirectory    = errors.New("no such directory")
)

// Error provides structured information about a failed mock operation.
type Error struct {
	Op         Operation     // The operation that failed
	Kind       error         // One of the package error kinds
	ResultCode uint16        // Equivalent LDAP result code
	Category   ErrorCategory // Authoring mistake or simulated outcome
	DN         string        // DN involved in the operation (if applicable)
	Message    string        // Human-readable message
	Cause      error         // Underlying error
}

func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("mock LDAP %s failed (code %d)", e.Op, e.ResultCode))
	} else {
		parts = append(parts, fmt.Sprintf("mock LDAP operation failed (code %d)", e.ResultCode))
	}

	if e.Kind != nil {
		parts = append(parts, e.Kind.Error())
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.DN != "" {
		parts = append(parts, fmt.Sprintf("DN: %s", e.DN))
	}

	return strings.Join(parts, " - ")
}

// Unwrap exposes both the error kind and the underlying cause.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// GetCategory returns the error category.
func (e *Error) GetCategory() ErrorCategory {
	return e.Category
}

// GetLDAPCode returns the equivalent LDAP result code.
func (e *Error) GetLDAPCode() uint16 {
	return e.ResultCode
}

// newError creates an error of the given kind with code and category filled in.
func newError(kind error, dn, message string) *Error {
	return &Error{
		Kind:       kind,
		ResultCode: resultCode(kind),
		Category:   categorize(kind),
		DN:         dn,
		Message:    message,
	}
}

// resultCode maps an error kind to the LDAP result code a real server (or
// client library) would produce for the same outcome.
func resultCode(kind error) uint16 {
	switch kind {
	case ErrFilterSyntax:
		return ldap.LDAPResultFilterError
	case ErrUnsupportedFilter:
		return ldap.LDAPResultNotSupported
	case ErrInvalidDNSyntax:
		return ldap.LDAPResultInvalidDNSyntax
	case ErrNoSuchEntry:
		return ldap.LDAPResultNoSuchObject
	case ErrEntryAlreadyExists:
		return ldap.LDAPResultEntryAlreadyExists
	case ErrNoSuchAttribute:
		return ldap.LDAPResultNoSuchAttribute
	case ErrInvalidCredentials:
		return ldap.LDAPResultInvalidCredentials
	case ErrProtocol:
		return ldap.LDAPResultProtocolError
	case ErrSeedRequired:
		return ldap.LDAPResultUnwillingToPerform
	case ErrNoSuchDirectory:
		return ldap.LDAPResultConnectError
	default:
		return ldap.LDAPResultOther
	}
}

// categorize maps an error kind to its failure class.
func categorize(kind error) ErrorCategory {
	switch kind {
	case ErrFilterSyntax,
		ErrUnsupportedFilter,
		ErrSeedRequired,
		ErrNoSuchDirectory:
		return CategoryAuthoring
	default:
		return CategoryDirectory
	}
}

// WrapError stamps an operation onto an error produced lower in the stack.
func WrapError(op Operation, err error) error {
	if err == nil {
		return nil
	}

	if e, ok := err.(*Error); ok {
		if e.Op == "" {
			e.Op = op
		}
		return e
	}

	return &Error{
		Op:         op,
		ResultCode: ldap.LDAPResultOther,
		Category:   CategoryDirectory,
		Message:    err.Error(),
		Cause:      err,
	}
}

// IsAuthoringError checks if an error reflects a test-authoring mistake
// rather than a simulated directory outcome.
func IsAuthoringError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Category == CategoryAuthoring
	}
	return false
}

// IsSeedRequired checks if an error demands an explicit seed.
func IsSeedRequired(err error) bool {
	return errors.Is(err, ErrSeedRequired)
}

// IsNoSuchEntry checks if an error indicates a missing entry.
func IsNoSuchEntry(err error) bool {
	return errors.Is(err, ErrNoSuchEntry)
}

// IsInvalidCredentials checks if an error indicates a failed bind.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsEntryAlreadyExists checks if an error indicates a duplicate add.
func IsEntryAlreadyExists(err error) bool {
	return errors.Is(err, ErrEntryAlreadyExists)
}

// IsNoSuchAttribute checks if an error indicates a missing attribute.
func IsNoSuchAttribute(err error) bool {
	return errors.Is(err, ErrNoSuchAttribute)
}

// IsNoSuchDirectory checks if an error indicates an unknown URI.
func IsNoSuchDirectory(err error) bool {
	return errors.Is(err, ErrNoSuchDirectory)
}
