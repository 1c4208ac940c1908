package auth

import "errors"

var (
	// ErrUnknownRole is returned when a string does not name a marketplace role.
	ErrUnknownRole = errors.New("unknown role")

	// ErrMalformedPrincipal is returned when a principal lacks an id or a valid role.
	ErrMalformedPrincipal = errors.New("malformed principal")

	// ErrNoCredentials is returned by a credential store that holds nothing.
	ErrNoCredentials = errors.New("no stored credentials")

	// ErrCorruptCredentials is returned when only part of the credential pair could be read.
	ErrCorruptCredentials = errors.New("corrupt stored credentials")

	// ErrUnauthorized means the remote service explicitly rejected the bearer credential.
	// It is the only authoritative signal that a stored credential is invalid.
	ErrUnauthorized = errors.New("authentication rejected")

	// ErrTransient covers network failures, timeouts, and unavailable upstreams.
	// It never invalidates a stored credential.
	ErrTransient = errors.New("transient failure")

	// ErrRejected is returned when login or registration input was refused.
	ErrRejected = errors.New("request rejected")

	// ErrMalformedResponse is returned when a collaborator answered with an unusable payload.
	ErrMalformedResponse = errors.New("malformed response")
)

// IsTransient reports whether err is a connectivity-class failure.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsUnauthorized reports whether err is an explicit authentication rejection.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }
