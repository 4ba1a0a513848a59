package directory

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// DirectoryError is an enhanced error carrying operation context for directory
// lookups. It wraps the underlying failure while preserving the operation name,
// the target server and the LDAP result code where one exists.
type DirectoryError struct {
	// Op is the operation name (e.g., "AcquireSession", "SearchPeople")
	Op string
	// DN is the distinguished name involved in the operation (if applicable)
	DN string
	// Server is the directory server URL
	Server string
	// Code is the LDAP result code (if applicable)
	Code int
	// Err is the underlying error
	Err error
	// Context contains additional context information for debugging
	Context map[string]any
	// Timestamp indicates when the error occurred
	Timestamp time.Time
}

// Error implements the error interface, providing a formatted error message.
func (e *DirectoryError) Error() string {
	if e.DN != "" {
		return fmt.Sprintf("directory %s failed for DN %q on server %q: %v", e.Op, e.DN, e.Server, e.Err)
	}
	return fmt.Sprintf("directory %s failed on server %q: %v", e.Op, e.Server, e.Err)
}

// Unwrap implements the Go 1.13+ error unwrapping interface.
func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// Is implements the Go 1.13+ error comparison interface for errors.Is.
func (e *DirectoryError) Is(target error) bool {
	if dirErr, ok := target.(*DirectoryError); ok {
		return e.Op == dirErr.Op && e.Code == dirErr.Code
	}
	return errors.Is(e.Err, target)
}

// NewDirectoryError creates a new enhanced directory error.
func NewDirectoryError(op, server string, err error) *DirectoryError {
	return &DirectoryError{
		Op:        op,
		Server:    server,
		Err:       err,
		Context:   make(map[string]any),
		Timestamp: time.Now(),
	}
}

// WithDN adds a distinguished name to the error context.
func (e *DirectoryError) WithDN(dn string) *DirectoryError {
	e.DN = dn
	return e
}

// WithCode adds an LDAP result code to the error context.
func (e *DirectoryError) WithCode(code int) *DirectoryError {
	e.Code = code
	return e
}

// WithContext adds additional context information to the error.
func (e *DirectoryError) WithContext(key string, value any) *DirectoryError {
	e.Context[key] = value
	return e
}

// Sentinel errors for common directory failures. These provide a stable API
// for error classification with errors.Is.
var (
	ErrConnectionFailed = errors.New("directory: connection failed")
	ErrBindRejected     = errors.New("directory: bind rejected")
	ErrInvalidFilter    = errors.New("directory: invalid filter")
	ErrEntryNotFound    = errors.New("directory: entry not found")
	ErrSessionClosed    = errors.New("directory: session closed")
	ErrUnsupportedAuth  = errors.New("directory: unsupported authentication method")
	ErrExportTooLarge   = errors.New("directory: export exceeds configured size ceiling")
	ErrExportFormat     = errors.New("directory: export format not allowed")
)

// ConfigurationError reports an invalid or missing configuration setting.
// Configuration errors are fatal at startup; no partial operation follows one.
type ConfigurationError struct {
	// Field names the offending configuration field, e.g. "ldap.server"
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Reason)
}

func configError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// BindError reports an authentication rejection by the directory server. The
// server's diagnostic message is preserved for operators.
type BindError struct {
	Server     string
	Method     AuthMethod
	Diagnostic string
	Err        error
}

func (e *BindError) Error() string {
	if e.Diagnostic != "" {
		return fmt.Sprintf("bind (%s) rejected by %q: %s", e.Method, e.Server, e.Diagnostic)
	}
	return fmt.Sprintf("bind (%s) failed against %q: %v", e.Method, e.Server, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

func (e *BindError) Is(target error) bool { return target == ErrBindRejected }

// ConnectionError reports that a session could not be established after the
// configured number of attempts. It carries the attempt count and the last
// underlying failure, never a raw transport error.
type ConnectionError struct {
	Server   string
	Attempts int
	LastErr  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %q after %d attempts: %v", e.Server, e.Attempts, e.LastErr)
}

func (e *ConnectionError) Unwrap() error { return e.LastErr }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnectionFailed }

// SearchError reports a malformed query or an unrecoverable mid-search
// failure. Search errors are not retried beyond the executor's single
// reconnect-and-resume.
type SearchError struct {
	Op     string
	Filter string
	Reason string
	Err    error
}

func (e *SearchError) Error() string {
	if e.Filter != "" {
		return fmt.Sprintf("search %s failed for filter %q: %s", e.Op, e.Filter, e.Reason)
	}
	return fmt.Sprintf("search %s failed: %s", e.Op, e.Reason)
}

func (e *SearchError) Unwrap() error { return e.Err }

// bindDiagnostic extracts the server diagnostic from a go-ldap error, falling
// back to the plain error text.
func bindDiagnostic(err error) string {
	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return fmt.Sprintf("%s (result code %d)", ldap.LDAPResultCodeMap[ldapErr.ResultCode], ldapErr.ResultCode)
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// isNetworkError reports whether err was a transport-level failure rather
// than a protocol-level rejection.
func isNetworkError(err error) bool {
	return ldap.IsErrorWithCode(err, ldap.ErrorNetwork)
}

// isBindRejection reports whether err was an authentication rejection. The
// retry policy does not distinguish the two classes; this exists for audit
// detail only.
func isBindRejection(err error) bool {
	return ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultInappropriateAuthentication) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultUnwillingToPerform)
}

// maskSensitiveData masks credentials and other sensitive values for logging.
func maskSensitiveData(data string) string {
	if len(data) <= 4 {
		return "***"
	}
	return data[:2] + "***" + data[len(data)-2:]
}
