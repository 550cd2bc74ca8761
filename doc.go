// Package protodict converts protocol buffer messages to plain
// map[string]any mappings and back.
//
// A mapping produced by Encode contains only values that encoding/json
// serializes directly: numbers, strings, booleans, nested mappings and
// lists. Decode reverses the conversion, validating every key against the
// message schema. Both directions walk the message with protoreflect, so
// generated types and dynamicpb messages are handled alike.
//
// # Field Handling
//
// Leaf kinds are converted through a single kind dispatch table shared by
// both directions:
//   - bool, string: unchanged
//   - 32-bit integers and floats: native Go values of the field width
//   - 64-bit integers: native int64/uint64, or decimal strings with
//     WithInt64AsString
//   - double/float NaN and infinities: "NaN", "Infinity", "-Infinity"
//   - bytes: standard base64 strings
//
// Enums encode as their number, or as their declared name with
// WithEnumLabels. Decode accepts either form, plus any alias known to the
// resolver given with WithEnumAliases (see package enum). Messages become nested
// mappings, repeated fields become []any and map fields become
// map[string]any keyed by the stringified map key.
//
// # Extensions
//
// Populated extension fields are gathered under the reserved ExtensionKey
// ("___X"), whose value maps each extension's field number, as a string, to
// its encoded value:
//
//	{
//		"strng": "string",
//		"___X": {"100": 123.4, "103": {"req": "nested"}}
//	}
//
// Decode resolves the numbers through protoregistry.GlobalTypes, or the
// resolver given with WithExtensionResolver.
//
// # Null Values
//
// A nil value in a decoded mapping clears the field, for scalar, repeated
// and message fields alike.
//
// # Example Usage
//
//	m, err := protodict.Encode(msg, protodict.WithEnumLabels(true))
//	if err != nil {
//		return err
//	}
//
//	out := &pb.MessageOfTypes{}
//	if _, err := protodict.Decode(m, out); err != nil {
//		return err
//	}
//
// # Errors
//
// Every failure is a *Error carrying the direction and field path. Match the
// cause with errors.Is against ErrUnknownField, ErrUnknownEnumName,
// ErrUnknownEnumValue, ErrUnknownExtension, ErrMalformedBytes or
// ErrInvalidValue.
package protodict
