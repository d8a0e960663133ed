// Package errs defines the portal's failure taxonomy. Every external-call
// failure is converted to one of these kinds at the component boundary so
// handlers can map them to HTTP codes without inspecting transport errors.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the session layer and the HTTP surface.
type Kind string

const (
	IPNotResolved         Kind = "ip_not_resolved"        // transient: client IP lookup still pending
	DirectoryUnavailable  Kind = "directory_unavailable"  // external user directory unreachable
	InvalidCredentials    Kind = "invalid_credentials"    // unknown user or wrong password (deliberately conflated)
	IPNotAuthorized       Kind = "ip_not_authorized"      // credentials OK, source IP not in allowlist
	ProviderUnreachable   Kind = "provider_unreachable"   // transport failure probing the provider
	ProviderBadResponse   Kind = "provider_bad_response"  // non-200 or non-JSON provider reply
	ProviderLoginRejected Kind = "provider_login_rejected" // JSON reply without user_info
	CatalogFetchFailed    Kind = "catalog_fetch_failed"   // degrades to empty catalog, never fatal
)

// Retryable reports whether a failure of this kind can succeed on a plain retry.
func (k Kind) Retryable() bool {
	switch k {
	case IPNotResolved, DirectoryUnavailable, ProviderUnreachable, CatalogFetchFailed:
		return true
	}
	return false
}

// Error carries a taxonomy kind plus an optional observed IP (IPNotAuthorized)
// and the underlying cause for logs.
type Error struct {
	Kind       Kind
	ObservedIP string // set for IPNotAuthorized
	cause      error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.ObservedIP != "" {
		msg = fmt.Sprintf("%s (ip %s)", msg, e.ObservedIP)
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// New returns a taxonomy error with no underlying cause.
func New(kind Kind) *Error { return &Error{Kind: kind} }

// Wrap attaches a cause to a taxonomy kind.
func Wrap(kind Kind, cause error) *Error { return &Error{Kind: kind, cause: cause} }

// NotAuthorized builds an IPNotAuthorized error carrying the observed IP
// for display, per the login screen contract.
func NotAuthorized(observedIP string) *Error {
	return &Error{Kind: IPNotAuthorized, ObservedIP: observedIP}
}

// KindOf extracts the taxonomy kind from err, or "" if err is not ours.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is lets errors.Is match two taxonomy errors by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}
