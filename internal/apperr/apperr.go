// Package apperr is the error taxonomy surfaced to callers of the client
// packages. Every error carries a user-facing message next to the
// developer-facing cause.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindCredentials
	KindNotFound
	KindValidation
	KindConflict
	KindInsufficientStock
	KindTransport
	KindPermission
)

func (k Kind) String() string {
	switch k {
	case KindCredentials:
		return "credentials"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindTransport:
		return "transport"
	case KindPermission:
		return "permission"
	}
	return "unknown"
}

// User-facing messages.
const (
	MsgInvalidCredentials = "Geçersiz kullanıcı adı veya şifre"
	MsgProfileUnavailable = "Kullanıcı bilgileri alınamadı"
	MsgNotFound           = "Kayıt bulunamadı"
	MsgValidation         = "Girilen bilgiler geçersiz"
	MsgConflict           = "Bu kayıt zaten mevcut veya kullanımda"
	MsgInsufficientStock  = "Yetersiz stok"
	MsgTransport          = "İşlem başarısız oldu, lütfen tekrar deneyin"
	MsgPermission         = "Bu işlem için yetkiniz yok"
)

// Error is a classified failure of one operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with the default message for kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: defaultMessage(kind), Err: err}
}

// Validation wraps a request validation failure.
func Validation(op string, err error) *Error {
	return New(KindValidation, op, err)
}

// Transport wraps a failed or timed-out remote call.
func Transport(op string, err error) *Error {
	return New(KindTransport, op, err)
}

// WithOp re-labels err for the operation boundary op. An *Error keeps its kind
// and message; anything else is treated as a transport failure.
func WithOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{Kind: ae.Kind, Op: op, Message: ae.Message, Err: ae.Err}
	}
	return Transport(op, err)
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return MsgTransport
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindCredentials:
		return MsgInvalidCredentials
	case KindNotFound:
		return MsgNotFound
	case KindValidation:
		return MsgValidation
	case KindConflict:
		return MsgConflict
	case KindInsufficientStock:
		return MsgInsufficientStock
	case KindPermission:
		return MsgPermission
	}
	return MsgTransport
}
