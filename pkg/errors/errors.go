package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeConfig          Code = "CONFIG_ERROR"
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeIdempotency     Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit       Code = "RATE_LIMIT_EXCEEDED"
	CodePaymentDeclined Code = "PAYMENT_DECLINED"
	CodeInternal        Code = "INTERNAL_ERROR"
	CodeDependency      Code = "DEPENDENCY_ERROR"
)

// Metadata describes how the renewal engine treats an error class.
type Metadata struct {
	// Fatal errors abort the whole run before any mutation.
	Fatal bool
	// Retryable errors may succeed on the next scheduled run.
	Retryable   bool
	Description string
}

var metadataByCode = map[Code]Metadata{
	CodeConfig: {
		Fatal:       true,
		Retryable:   false,
		Description: "configuration invalid",
	},
	CodeValidation: {
		Fatal:       false,
		Retryable:   false,
		Description: "validation failed",
	},
	CodeUnauthorized: {
		Fatal:       true,
		Retryable:   false,
		Description: "gateway credentials rejected",
	},
	CodeNotFound: {
		Fatal:       false,
		Retryable:   false,
		Description: "resource not found",
	},
	CodeConflict: {
		Fatal:       false,
		Retryable:   false,
		Description: "conflict detected",
	},
	CodeIdempotency: {
		Fatal:       false,
		Retryable:   false,
		Description: "idempotency key reused",
	},
	CodeRateLimit: {
		Fatal:       false,
		Retryable:   true,
		Description: "rate limit exceeded",
	},
	CodePaymentDeclined: {
		Fatal:       false,
		Retryable:   true,
		Description: "payment declined",
	},
	CodeInternal: {
		Fatal:       false,
		Retryable:   true,
		Description: "internal error",
	},
	CodeDependency: {
		Fatal:       false,
		Retryable:   true,
		Description: "dependency unavailable",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the first typed error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsFatal reports whether err should abort a renewal run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(CodeOf(err)).Fatal
}
