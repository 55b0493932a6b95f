package auth

import (
	"fmt"
	"net/http"
)

// Failure codes for Error.Code.
const (
	CodeInvalidSession     = "invalid_session"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUpstream           = "upstream_error"
)

// Error is the typed failure every Service operation can return. Status is
// the transport status the caller should map it to.
type Error struct {
	Status  int
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches by failure code, so errors.Is(err, ErrInvalidSession) holds for
// any invalid-session failure regardless of how it was built.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrInvalidSession covers not-found, forged and fully expired sessions.
// One shared value: a forged sessionId must be indistinguishable from a
// missing one, so every invalid-session path returns this exact error.
var ErrInvalidSession = &Error{
	Status:  http.StatusUnauthorized,
	Code:    CodeInvalidSession,
	Message: "invalid session",
}

// ErrInvalidCredentials matches any login rejection via errors.Is; concrete
// failures carry the IdP's own status code.
var ErrInvalidCredentials = &Error{
	Status:  http.StatusUnauthorized,
	Code:    CodeInvalidCredentials,
	Message: "invalid credentials",
}

// ErrUpstream matches any unexpected IdP or store failure via errors.Is.
var ErrUpstream = &Error{
	Status:  http.StatusInternalServerError,
	Code:    CodeUpstream,
	Message: "upstream failure",
}

func invalidCredentials(status int, message string) *Error {
	if status == 0 {
		status = http.StatusUnauthorized
	}
	return &Error{Status: status, Code: CodeInvalidCredentials, Message: message}
}

func upstreamError(status int, message string, cause error) *Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &Error{Status: status, Code: CodeUpstream, Message: message, cause: cause}
}
