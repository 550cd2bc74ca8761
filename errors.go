package protodict

import (
	"errors"
	"fmt"
)

// Sentinel errors for conversion failures.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrNilMessage indicates a nil message or message type was supplied.
	ErrNilMessage = errors.New("proto message is nil")

	// ErrUnknownField indicates a mapping key that matches no declared field.
	// Only reported when strict decoding is enabled.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownEnumName indicates a symbolic enum name that the enum does not declare.
	ErrUnknownEnumName = errors.New("unknown enum name")

	// ErrUnknownEnumValue indicates an enum number with no declared name while
	// encoding with enum labels.
	ErrUnknownEnumValue = errors.New("unknown enum value")

	// ErrUnknownExtension indicates an extension number that is not registered
	// for the target message type.
	ErrUnknownExtension = errors.New("unknown extension number")

	// ErrMalformedBytes indicates a bytes field whose value is not valid base64.
	ErrMalformedBytes = errors.New("malformed base64 bytes")

	// ErrInvalidValue indicates a mapping value of the wrong type or out of
	// range for the field it is assigned to.
	ErrInvalidValue = errors.New("invalid value")
)

// Operations reported in Error.Op.
const (
	// OpEncode marks errors raised while building a mapping from a message.
	OpEncode = "encode"

	// OpDecode marks errors raised while populating a message from a mapping.
	OpDecode = "decode"
)

// Error is a structured conversion error. It records which direction failed,
// the path of the offending field and the underlying cause.
//
// Error supports unwrapping, so callers match the cause with errors.Is():
//
//	_, err := protodict.Decode(m, msg)
//	if errors.Is(err, protodict.ErrUnknownField) {
//		// reject the request
//	}
type Error struct {
	// Op is the failing direction, OpEncode or OpDecode.
	Op string

	// Path is the dotted field path of the failing value, e.g. "nested.req",
	// "items[2]" or "___X.100". Empty for errors about the message itself.
	Path string

	// Err is the underlying error, usually one of the sentinel errors.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("protodict: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("protodict: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error for the same operation (with an
// empty Op in target matching any operation), or matches the underlying error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*Error); ok && t.Err == nil && t.Path == "" {
		if t.Op == "" || t.Op == e.Op {
			return true
		}
	}

	return errors.Is(e.Err, target)
}

// IsEncodeError reports whether err was raised by the encoder.
func IsEncodeError(err error) bool {
	return errors.Is(err, &Error{Op: OpEncode})
}

// IsDecodeError reports whether err was raised by the decoder.
func IsDecodeError(err error) bool {
	return errors.Is(err, &Error{Op: OpDecode})
}

func encodeError(path string, err error) *Error {
	return &Error{Op: OpEncode, Path: path, Err: err}
}

func decodeError(path string, err error) *Error {
	return &Error{Op: OpDecode, Path: path, Err: err}
}

// invalidf wraps ErrInvalidValue with a formatted detail message.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidValue, fmt.Sprintf(format, args...))
}
