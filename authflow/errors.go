package authflow

import "errors"

// Terminal flow errors. Each maps to a stable client-facing code that is
// independent of the provider's own error vocabulary.
var (
	// ErrInvalidState covers expired, replayed and forged state tokens.
	// The three cases are deliberately indistinguishable.
	ErrInvalidState = errors.New("invalid state")

	// ErrTokenInvalid reports an unusable token: the provider withheld a
	// refresh token, or a first-party session token failed verification.
	ErrTokenInvalid = errors.New("token invalid")

	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrAuthFailed   = errors.New("authentication failed")
	ErrMissingData  = errors.New("missing or malformed data")
)

// Client-facing error codes surfaced at the HTTP boundary.
const (
	CodeInvalidState = "INVALID_STATE"
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeUserExists   = "USER_EXISTS"
	CodeUserNotFound = "USER_NOT_FOUND"
	CodeAuthFailed   = "AUTH_FAILED"
	CodeMissingData  = "MISSING_DATA"
)

// Code maps a flow error to its client-facing code. The second return is
// false for errors outside the taxonomy (provider and internal failures).
func Code(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState, true
	case errors.Is(err, ErrTokenInvalid):
		return CodeTokenInvalid, true
	case errors.Is(err, ErrUserExists):
		return CodeUserExists, true
	case errors.Is(err, ErrUserNotFound):
		return CodeUserNotFound, true
	case errors.Is(err, ErrAuthFailed):
		return CodeAuthFailed, true
	case errors.Is(err, ErrMissingData):
		return CodeMissingData, true
	}
	return "", false
}
