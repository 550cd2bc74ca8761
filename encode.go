package protodict

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Encode converts a proto message to a map[string]any representation that
// encoding/json can serialize directly.
//
// Fields are visited in declaration order. A field is included when:
//   - it is a repeated or map field with at least one element
//   - it tracks presence (proto2 optional, proto3 optional, oneof members,
//     messages) and is set
//   - it has no presence tracking (proto3 scalars) or is required; these are
//     always emitted, with the default value when unset
//
// Nested messages are always emitted as mappings, even when empty, so
// "present but empty" survives the round trip. Populated extensions are
// collected under ExtensionKey, keyed by their field number.
//
// Example:
//
//	m, err := protodict.Encode(resp, protodict.WithEnumLabels(true))
//	if err != nil {
//		return err
//	}
//	data, err := json.Marshal(m)
func Encode(msg proto.Message, opts ...EncodeOption) (map[string]any, error) {
	if msg == nil {
		return nil, encodeError("", ErrNilMessage)
	}

	e := &encoder{opts: newEncodeOptions(opts)}
	return e.message(msg.ProtoReflect(), "")
}

// EncodeAll encodes each message in order. It stops at the first error,
// reporting the index of the failing message.
func EncodeAll[T proto.Message](msgs []T, opts ...EncodeOption) ([]map[string]any, error) {
	if msgs == nil {
		return nil, nil
	}

	results := make([]map[string]any, 0, len(msgs))
	for i, msg := range msgs {
		m, err := Encode(msg, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to encode message %d: %w", i, err)
		}
		results = append(results, m)
	}

	return results, nil
}

type encoder struct {
	opts *encodeOptions
}

func (e *encoder) message(msg protoreflect.Message, path string) (map[string]any, error) {
	result := make(map[string]any)
	fields := msg.Descriptor().Fields()

	for i := 0; i < fields.Len(); i++ {
		field := fields.Get(i)
		if !shouldEncode(msg, field) {
			continue
		}

		name := e.fieldKey(field)
		value, err := e.field(field, msg.Get(field), joinPath(path, name))
		if err != nil {
			return nil, err
		}
		result[name] = value
	}

	exts, err := e.extensions(msg, path)
	if err != nil {
		return nil, err
	}
	if exts != nil {
		result[ExtensionKey] = exts
	}

	return result, nil
}

// shouldEncode reports whether a declared field belongs in the mapping.
func shouldEncode(msg protoreflect.Message, field protoreflect.FieldDescriptor) bool {
	switch {
	case field.IsList():
		return msg.Get(field).List().Len() > 0
	case field.IsMap():
		return msg.Get(field).Map().Len() > 0
	case field.Cardinality() == protoreflect.Required:
		return true
	case field.HasPresence():
		return msg.Has(field)
	default:
		return true
	}
}

func (e *encoder) fieldKey(field protoreflect.FieldDescriptor) string {
	if e.opts.jsonNames {
		return field.JSONName()
	}
	return string(field.Name())
}

// field encodes a whole field value, expanding lists and maps.
func (e *encoder) field(field protoreflect.FieldDescriptor, value protoreflect.Value, path string) (any, error) {
	switch {
	case field.IsList():
		list := value.List()
		result := make([]any, 0, list.Len())
		for i := 0; i < list.Len(); i++ {
			v, err := e.value(field, list.Get(i), indexPath(path, i))
			if err != nil {
				return nil, err
			}
			result = append(result, v)
		}
		return result, nil

	case field.IsMap():
		valField := field.MapValue()
		result := make(map[string]any, value.Map().Len())
		var err error
		value.Map().Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
			key := mapKeyString(k)
			var encoded any
			encoded, err = e.value(valField, v, joinPath(path, key))
			if err != nil {
				return false
			}
			result[key] = encoded
			return true
		})
		if err != nil {
			return nil, err
		}
		return result, nil

	default:
		return e.value(field, value, path)
	}
}

// value encodes a single element by kind.
func (e *encoder) value(field protoreflect.FieldDescriptor, value protoreflect.Value, path string) (any, error) {
	switch field.Kind() {
	case protoreflect.EnumKind:
		return e.enum(field, value.Enum(), path)

	case protoreflect.MessageKind, protoreflect.GroupKind:
		return e.message(value.Message(), path)

	default:
		c, err := lookupCoercion(field.Kind())
		if err != nil {
			return nil, encodeError(path, err)
		}
		return c.encode(value, e.opts), nil
	}
}

func (e *encoder) enum(field protoreflect.FieldDescriptor, num protoreflect.EnumNumber, path string) (any, error) {
	if !e.opts.enumLabels {
		return int32(num), nil
	}

	enumVal := field.Enum().Values().ByNumber(num)
	if enumVal != nil {
		return string(enumVal.Name()), nil
	}

	if e.opts.unknownEnums == UnknownEnumNumber {
		return int32(num), nil
	}
	return nil, encodeError(path, fmt.Errorf("%w %d for enum %s", ErrUnknownEnumValue, num, field.Enum().FullName()))
}

// mapKeyString renders a map key as a mapping key. JSON object keys are
// always strings, so integer and bool keys use their decimal/literal form.
func mapKeyString(k protoreflect.MapKey) string {
	switch v := k.Interface().(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
