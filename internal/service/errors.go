package service

import "errors"

// Kind classifies failures of the auth flows.  Handlers map each kind to
// one HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindExpired
	KindNotFound
	KindForbidden
)

// Error is a classified, client-safe failure.  Message is shown to the
// caller as is.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error of the same kind, so errors.Is(err, ErrAuth)
// works regardless of the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrConflict   = &Error{Kind: KindConflict, Message: "already exists"}
	ErrAuth       = &Error{Kind: KindAuth, Message: "unauthorized"}
	ErrExpired    = &Error{Kind: KindExpired, Message: "expired"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden  = &Error{Kind: KindForbidden, Message: "forbidden"}
)

func validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }
func conflict(msg string) error   { return &Error{Kind: KindConflict, Message: msg} }
func authFailed(msg string) error { return &Error{Kind: KindAuth, Message: msg} }
func expired(msg string) error    { return &Error{Kind: KindExpired, Message: msg} }
func notFound(msg string) error   { return &Error{Kind: KindNotFound, Message: msg} }
func forbidden(msg string) error  { return &Error{Kind: KindForbidden, Message: msg} }

// Messages shared by several flows.  The credential message is identical
// for unknown users and wrong passwords.
const (
	MsgInvalidCredentials = "invalid credentials"
	MsgDeactivated        = "account deactivated, contact admin"
	MsgInvalidCode        = "invalid code"
	MsgCodeExpired        = "code expired, request a new one"
	MsgPasswordTooShort   = "password must be at least 8 characters"
)

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
