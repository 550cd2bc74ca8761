package protodict

import (
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Decode populates target from a mapping produced by Encode (or any
// document of the same shape) and returns target itself.
//
// Each key is matched against the declared field names, then against the
// fields' JSON names. A nil value clears the field. Nested messages are
// decoded into the message already held by target, so partial mappings
// accumulate; repeated fields are replaced; map fields are merged.
// Enum fields accept the enum number or a declared name.
//
// With strict decoding (the default) an unknown key fails with
// ErrUnknownField. WithStrict(false) skips such keys; every other error
// remains fatal. On error target may be partially populated and should be
// discarded.
func Decode(m map[string]any, target proto.Message, opts ...DecodeOption) (proto.Message, error) {
	if target == nil {
		return nil, decodeError("", ErrNilMessage)
	}
	if m == nil {
		return nil, decodeError("", invalidf("mapping cannot be nil"))
	}

	d := &decoder{opts: newDecodeOptions(opts)}
	if err := d.message(target.ProtoReflect(), m, ""); err != nil {
		return nil, err
	}

	return target, nil
}

// DecodeType constructs a fresh message of type mt and decodes m into it.
func DecodeType(m map[string]any, mt protoreflect.MessageType, opts ...DecodeOption) (proto.Message, error) {
	if mt == nil {
		return nil, decodeError("", ErrNilMessage)
	}
	return Decode(m, mt.New().Interface(), opts...)
}

// DecodeNew decodes m into a freshly constructed message of type T.
//
// Example:
//
//	req, err := protodict.DecodeNew[*pb.CreateRequest](m)
func DecodeNew[T proto.Message](m map[string]any, opts ...DecodeOption) (T, error) {
	var zero T
	msg, err := DecodeType(m, zero.ProtoReflect().Type(), opts...)
	if err != nil {
		return zero, err
	}
	return msg.(T), nil
}

// DecodeAll decodes multiple mappings. The factory function is called for
// each mapping to create a new message instance.
//
// Example:
//
//	hosts, err := protodict.DecodeAll(rows, func() *pb.Host {
//		return &pb.Host{}
//	})
func DecodeAll[T proto.Message](ms []map[string]any, factory func() T, opts ...DecodeOption) ([]T, error) {
	if ms == nil {
		return nil, nil
	}

	results := make([]T, 0, len(ms))
	for i, m := range ms {
		target := factory()
		if _, err := Decode(m, target, opts...); err != nil {
			return nil, fmt.Errorf("failed to decode mapping %d: %w", i, err)
		}
		results = append(results, target)
	}

	return results, nil
}

type decoder struct {
	opts *decodeOptions
}

func (d *decoder) message(msg protoreflect.Message, m map[string]any, path string) error {
	fields := msg.Descriptor().Fields()

	for _, key := range sortedKeys(m) {
		raw := m[key]

		if key == ExtensionKey {
			if err := d.extensions(msg, raw, path); err != nil {
				return err
			}
			continue
		}

		field := fields.ByName(protoreflect.Name(key))
		if field == nil && d.opts.jsonNames {
			field = fields.ByJSONName(key)
		}
		if field == nil {
			if d.opts.strict {
				return decodeError(joinPath(path, key), fmt.Errorf("%w %q in %s", ErrUnknownField, key, msg.Descriptor().FullName()))
			}
			d.opts.logger.Debug("skipping unknown field",
				"field", joinPath(path, key),
				"message", string(msg.Descriptor().FullName()))
			continue
		}

		if err := d.field(msg, field, raw, joinPath(path, key)); err != nil {
			return err
		}
	}

	return nil
}

// field assigns one mapping value to a field of msg.
func (d *decoder) field(msg protoreflect.Message, field protoreflect.FieldDescriptor, raw any, path string) error {
	if raw == nil {
		msg.Clear(field)
		return nil
	}

	switch {
	case field.IsList():
		items, ok := raw.([]any)
		if !ok {
			return decodeError(path, invalidf("expected list, got %T", raw))
		}
		msg.Clear(field)
		list := msg.Mutable(field).List()
		for i, item := range items {
			v, err := d.element(field, list.NewElement, item, indexPath(path, i))
			if err != nil {
				return err
			}
			list.Append(v)
		}
		return nil

	case field.IsMap():
		entries, ok := raw.(map[string]any)
		if !ok {
			return decodeError(path, invalidf("expected mapping, got %T", raw))
		}
		mp := msg.Mutable(field).Map()
		keyField, valField := field.MapKey(), field.MapValue()
		for _, key := range sortedKeys(entries) {
			entryPath := joinPath(path, key)
			k, err := decodeMapKey(keyField, key)
			if err != nil {
				return decodeError(entryPath, err)
			}
			v, err := d.element(valField, mp.NewValue, entries[key], entryPath)
			if err != nil {
				return err
			}
			mp.Set(k, v)
		}
		return nil

	case field.Kind() == protoreflect.MessageKind || field.Kind() == protoreflect.GroupKind:
		sub, ok := raw.(map[string]any)
		if !ok {
			return decodeError(path, invalidf("expected mapping, got %T", raw))
		}
		return d.message(msg.Mutable(field).Message(), sub, path)

	default:
		v, err := d.value(field, raw, path)
		if err != nil {
			return err
		}
		msg.Set(field, v)
		return nil
	}
}

// element decodes a list element or map value. newValue allocates the
// container's element type for message kinds.
func (d *decoder) element(field protoreflect.FieldDescriptor, newValue func() protoreflect.Value, raw any, path string) (protoreflect.Value, error) {
	if raw == nil {
		return protoreflect.Value{}, decodeError(path, invalidf("null is not a valid element"))
	}

	if field.Kind() != protoreflect.MessageKind && field.Kind() != protoreflect.GroupKind {
		return d.value(field, raw, path)
	}

	sub, ok := raw.(map[string]any)
	if !ok {
		return protoreflect.Value{}, decodeError(path, invalidf("expected mapping, got %T", raw))
	}
	v := newValue()
	if err := d.message(v.Message(), sub, path); err != nil {
		return protoreflect.Value{}, err
	}
	return v, nil
}

// value decodes a single enum or leaf value.
func (d *decoder) value(field protoreflect.FieldDescriptor, raw any, path string) (protoreflect.Value, error) {
	if field.Kind() == protoreflect.EnumKind {
		num, err := d.enum(field.Enum(), raw)
		if err != nil {
			return protoreflect.Value{}, decodeError(path, err)
		}
		return protoreflect.ValueOfEnum(num), nil
	}

	c, err := lookupCoercion(field.Kind())
	if err != nil {
		return protoreflect.Value{}, decodeError(path, err)
	}
	v, err := c.decode(raw)
	if err != nil {
		return protoreflect.Value{}, decodeError(path, err)
	}
	return v, nil
}

// enum accepts an enum number, a declared enum name, or an alias known to
// the configured EnumAliasResolver.
func (d *decoder) enum(enum protoreflect.EnumDescriptor, raw any) (protoreflect.EnumNumber, error) {
	if name, ok := raw.(string); ok {
		enumVal := enum.Values().ByName(protoreflect.Name(name))
		if enumVal == nil && d.opts.aliases != nil {
			if resolved, found := d.opts.aliases.ResolveEnumAlias(enum.FullName(), name); found {
				enumVal = enum.Values().ByName(protoreflect.Name(resolved))
			}
		}
		if enumVal == nil {
			return 0, fmt.Errorf("%w %q for enum %s", ErrUnknownEnumName, name, enum.FullName())
		}
		return enumVal.Number(), nil
	}

	i64, err := toInt64(raw)
	if err != nil {
		return 0, err
	}
	if i64 < math.MinInt32 || i64 > math.MaxInt32 {
		return 0, invalidf("enum number %d overflows int32", i64)
	}
	return protoreflect.EnumNumber(i64), nil
}

// decodeMapKey parses a mapping key into a map key of the declared key kind.
func decodeMapKey(field protoreflect.FieldDescriptor, key string) (protoreflect.MapKey, error) {
	switch field.Kind() {
	case protoreflect.StringKind:
		return protoreflect.ValueOfString(key).MapKey(), nil

	case protoreflect.BoolKind:
		b, err := strconv.ParseBool(key)
		if err != nil {
			return protoreflect.MapKey{}, invalidf("cannot parse %q as bool map key", key)
		}
		return protoreflect.ValueOfBool(b).MapKey(), nil

	default:
		c, err := lookupCoercion(field.Kind())
		if err != nil {
			return protoreflect.MapKey{}, err
		}
		v, err := c.decode(key)
		if err != nil {
			return protoreflect.MapKey{}, err
		}
		return v.MapKey(), nil
	}
}
