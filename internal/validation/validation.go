// Package validation provides input validation functions.
package validation

import (
	"errors"
	"regexp"
	"unicode"
)

var (
	// ErrInvalidIdentity is the base error for identity validation failures.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrIdentityEmpty is returned when identity is empty.
	ErrIdentityEmpty = wrap(ErrInvalidIdentity, "identity is required")
	// ErrIdentityTooLong is returned when identity exceeds 128 characters.
	ErrIdentityTooLong = wrap(ErrInvalidIdentity, "identity must be at most 128 characters")
	// ErrIdentityInvalidChars is returned when identity is not a safe path component.
	ErrIdentityInvalidChars = wrap(ErrInvalidIdentity, "identity can only contain letters, numbers, and . _ : @ -")

	// ErrInvalidAppID is the base error for application id validation failures.
	ErrInvalidAppID = errors.New("invalid application id")
	// ErrAppIDTooLong is returned when an application id exceeds 255 characters.
	ErrAppIDTooLong = wrap(ErrInvalidAppID, "application id must be at most 255 characters")
	// ErrAppIDInvalidChars is returned when an application id contains invalid characters.
	ErrAppIDInvalidChars = wrap(ErrInvalidAppID, "application id can only contain letters, numbers, and . _ : @ / -")

	// ErrInvalidRecordKey is the base error for record key validation failures.
	ErrInvalidRecordKey = errors.New("invalid record key")
	// ErrRecordKeyEmpty is returned when a record key is empty.
	ErrRecordKeyEmpty = wrap(ErrInvalidRecordKey, "record key is required")
	// ErrRecordKeyTooLong is returned when a record key exceeds 255 characters.
	ErrRecordKeyTooLong = wrap(ErrInvalidRecordKey, "record key must be at most 255 characters")
	// ErrRecordKeyControlChars is returned when a record key contains control characters.
	ErrRecordKeyControlChars = wrap(ErrInvalidRecordKey, "record key cannot contain control characters")
)

var (
	identityRegex = regexp.MustCompile(`^[A-Za-z0-9._:@-]+$`)
	appIDRegex    = regexp.MustCompile(`^[A-Za-z0-9._:@/-]+$`)
)

type validationError struct {
	base error
	msg  string
}

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return e.base }

func wrap(base error, msg string) error {
	return &validationError{base: base, msg: msg}
}

// Identity validates a vault identity. Identities name a directory on
// disk, so "." and ".." are rejected.
// Rules: 1-128 characters, letters, numbers, and . _ : @ - only.
func Identity(identity string) error {
	if identity == "" {
		return ErrIdentityEmpty
	}
	if len(identity) > 128 {
		return ErrIdentityTooLong
	}
	if identity == "." || identity == ".." || !identityRegex.MatchString(identity) {
		return ErrIdentityInvalidChars
	}
	return nil
}

// AppID validates a calling application id. The empty id is valid and
// denotes the manager application.
// Rules: 0-255 characters, letters, numbers, and . _ : @ / - only.
func AppID(appID string) error {
	if appID == "" {
		return nil
	}
	if len(appID) > 255 {
		return ErrAppIDTooLong
	}
	if !appIDRegex.MatchString(appID) {
		return ErrAppIDInvalidChars
	}
	return nil
}

// RecordKey validates a record key.
// Rules: 1-255 characters, no control characters.
func RecordKey(key string) error {
	if key == "" {
		return ErrRecordKeyEmpty
	}
	if len(key) > 255 {
		return ErrRecordKeyTooLong
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return ErrRecordKeyControlChars
		}
	}
	return nil
}
