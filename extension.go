package protodict

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// ExtensionKey is the reserved mapping key holding a message's extension
// fields. Its value maps each extension's field number, as a decimal string,
// to the encoded extension value. Declared field names are identifiers and
// can never collide with it.
const ExtensionKey = "___X"

// extensions encodes every populated extension of msg. It returns nil when
// the message has none, so the caller omits ExtensionKey entirely.
func (e *encoder) extensions(msg protoreflect.Message, path string) (map[string]any, error) {
	var (
		result map[string]any
		err    error
	)

	msg.Range(func(field protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		if !field.IsExtension() {
			return true
		}

		key := strconv.Itoa(int(field.Number()))
		var encoded any
		encoded, err = e.field(field, v, joinPath(joinPath(path, ExtensionKey), key))
		if err != nil {
			return false
		}

		if result == nil {
			result = make(map[string]any)
		}
		result[key] = encoded
		return true
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// extensions decodes the value stored under ExtensionKey into msg.
func (d *decoder) extensions(msg protoreflect.Message, raw any, path string) error {
	path = joinPath(path, ExtensionKey)
	if raw == nil {
		return nil
	}

	entries, ok := raw.(map[string]any)
	if !ok {
		return decodeError(path, invalidf("expected extension mapping, got %T", raw))
	}

	fullName := msg.Descriptor().FullName()
	for _, key := range sortedKeys(entries) {
		entryPath := joinPath(path, key)

		xt, err := d.resolveExtension(fullName, key)
		if err != nil {
			return decodeError(entryPath, err)
		}

		field := xt.TypeDescriptor()
		value := entries[key]
		if value == nil {
			msg.Clear(field)
			continue
		}

		switch {
		case field.IsList() || field.IsMap():
			if err := d.field(msg, field, value, entryPath); err != nil {
				return err
			}

		case field.Kind() == protoreflect.MessageKind || field.Kind() == protoreflect.GroupKind:
			sub, ok := value.(map[string]any)
			if !ok {
				return decodeError(entryPath, invalidf("expected mapping, got %T", value))
			}
			nested := xt.New()
			if err := d.message(nested.Message(), sub, entryPath); err != nil {
				return err
			}
			msg.Set(field, nested)

		default:
			v, err := d.value(field, value, entryPath)
			if err != nil {
				return err
			}
			msg.Set(field, v)
		}
	}

	return nil
}

// resolveExtension looks up the extension type registered for the message
// under the decimal field number key.
func (d *decoder) resolveExtension(message protoreflect.FullName, key string) (protoreflect.ExtensionType, error) {
	num, err := strconv.ParseInt(key, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a field number", ErrUnknownExtension, key)
	}

	xt, err := d.opts.resolver.FindExtensionByNumber(message, protoreflect.FieldNumber(num))
	if err != nil {
		if errors.Is(err, protoregistry.NotFound) {
			return nil, fmt.Errorf("%w %d for %s", ErrUnknownExtension, num, message)
		}
		return nil, fmt.Errorf("failed to resolve extension %d for %s: %w", num, message, err)
	}

	return xt, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
