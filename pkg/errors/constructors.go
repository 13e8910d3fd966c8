package errors

import "fmt"

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context. The wrapped error
// becomes the Cause of the new error. Returns nil if err is nil.
//
// Example:
//
//	row := pool.QueryRow(ctx, sql, id)
//	if err := row.Scan(&u); err != nil {
//	    return errors.Wrap(err, errors.CodeInternalDatabase, "failed to load user")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with a formatted message. Returns nil if
// err is nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Validation creates a new validation error ([CodeValidation]).
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a new validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// NotFound creates a new not found error ([CodeNotFound]).
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// NotFoundf creates a new not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// Unauthorized creates a new authentication error ([CodeAuthentication]).
// Use this when credentials are missing or could not be validated.
func Unauthorized(message string) *Error {
	return New(CodeAuthentication, message)
}

// Forbidden creates a new authorization error ([CodeAuthorization]).
// Use this when the caller is authenticated but not permitted.
func Forbidden(message string) *Error {
	return New(CodeAuthorization, message)
}

// Conflict creates a new conflict error ([CodeConflict]).
func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

// Internal creates a new internal error ([CodeInternal]).
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Unavailable creates a new unavailable error ([CodeUnavailable]).
func Unavailable(message string) *Error {
	return New(CodeUnavailable, message)
}

// Timeout creates a new timeout error ([CodeTimeout]).
func Timeout(message string) *Error {
	return New(CodeTimeout, message)
}

// FromError converts any error into an *Error. If err is already an *Error
// (anywhere in its chain), that error is returned unchanged; otherwise err
// is wrapped as [CodeInternal]. Returns nil if err is nil.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}
	return Wrap(err, CodeInternal, "unexpected error")
}
