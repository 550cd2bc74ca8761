package protodict

import (
	"log/slog"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// UnknownEnumPolicy selects what the encoder does with an enum number that
// has no declared name when enum labels are requested.
type UnknownEnumPolicy int

const (
	// UnknownEnumError fails the encode with ErrUnknownEnumValue.
	UnknownEnumError UnknownEnumPolicy = iota

	// UnknownEnumNumber falls back to emitting the raw enum number.
	UnknownEnumNumber
)

// String returns the configuration name of the policy.
func (p UnknownEnumPolicy) String() string {
	switch p {
	case UnknownEnumError:
		return "error"
	case UnknownEnumNumber:
		return "number"
	default:
		return "unknown"
	}
}

// ParseUnknownEnumPolicy parses a policy name as produced by String.
// An empty name selects UnknownEnumError.
func ParseUnknownEnumPolicy(name string) (UnknownEnumPolicy, bool) {
	switch name {
	case "", "error":
		return UnknownEnumError, true
	case "number":
		return UnknownEnumNumber, true
	default:
		return UnknownEnumError, false
	}
}

// EncodeOption configures Encode.
type EncodeOption func(*encodeOptions)

// encodeOptions holds the encoder configuration for a single call.
type encodeOptions struct {
	enumLabels    bool
	unknownEnums  UnknownEnumPolicy
	int64AsString bool
	jsonNames     bool
}

// WithEnumLabels encodes enum fields as their declared symbolic name instead
// of their number.
func WithEnumLabels(enabled bool) EncodeOption {
	return func(o *encodeOptions) {
		o.enumLabels = enabled
	}
}

// WithUnknownEnumPolicy sets how enum numbers without a declared name are
// encoded when enum labels are enabled. The default is UnknownEnumError.
func WithUnknownEnumPolicy(p UnknownEnumPolicy) EncodeOption {
	return func(o *encodeOptions) {
		o.unknownEnums = p
	}
}

// WithInt64AsString renders 64-bit integer kinds as decimal strings.
// Use this when the mapping is consumed by JSON parsers that read every
// number as a float64.
func WithInt64AsString(enabled bool) EncodeOption {
	return func(o *encodeOptions) {
		o.int64AsString = enabled
	}
}

// WithJSONNames keys the mapping by each field's JSON name (lowerCamelCase)
// instead of its declared name. Decode such mappings with AcceptJSONNames.
func WithJSONNames(enabled bool) EncodeOption {
	return func(o *encodeOptions) {
		o.jsonNames = enabled
	}
}

func newEncodeOptions(opts []EncodeOption) *encodeOptions {
	o := &encodeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DecodeOption configures Decode.
type DecodeOption func(*decodeOptions)

// decodeOptions holds the decoder configuration for a single call.
type decodeOptions struct {
	strict   bool
	resolver protoregistry.ExtensionTypeResolver
	aliases  EnumAliasResolver
	logger   *slog.Logger

	jsonNames bool
}

// EnumAliasResolver maps an alternative spelling of an enum value, such as
// "syn" for SYN_SCAN, to the declared value name.
type EnumAliasResolver interface {
	ResolveEnumAlias(enum protoreflect.FullName, alias string) (string, bool)
}

// WithStrict controls whether mapping keys that match no declared field are
// rejected with ErrUnknownField (true, the default) or skipped.
func WithStrict(strict bool) DecodeOption {
	return func(o *decodeOptions) {
		o.strict = strict
	}
}

// AcceptJSONNames also matches mapping keys against each field's JSON name
// when no field has the key as its declared name. Off by default, so strict
// decoding accepts declared names only.
func AcceptJSONNames(enabled bool) DecodeOption {
	return func(o *decodeOptions) {
		o.jsonNames = enabled
	}
}

// WithExtensionResolver sets the registry used to resolve extension numbers
// found under ExtensionKey. Defaults to protoregistry.GlobalTypes.
func WithExtensionResolver(r protoregistry.ExtensionTypeResolver) DecodeOption {
	return func(o *decodeOptions) {
		o.resolver = r
	}
}

// WithEnumAliases accepts enum aliases known to r wherever a declared enum
// name is expected. Declared names always take precedence.
func WithEnumAliases(r EnumAliasResolver) DecodeOption {
	return func(o *decodeOptions) {
		o.aliases = r
	}
}

// WithLogger sets the logger that receives debug records for keys skipped in
// non-strict mode. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) DecodeOption {
	return func(o *decodeOptions) {
		o.logger = logger
	}
}

func newDecodeOptions(opts []DecodeOption) *decodeOptions {
	o := &decodeOptions{strict: true}
	for _, opt := range opts {
		opt(o)
	}
	if o.resolver == nil {
		o.resolver = protoregistry.GlobalTypes
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
