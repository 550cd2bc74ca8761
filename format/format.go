// Package format serializes protodict mappings to bytes.
//
// Each Format turns a map[string]any produced by protodict.Encode into a
// document and parses documents back into mappings that protodict.Decode
// accepts. JSON, YAML and MessagePack are provided.
package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zero-day-ai/protodict"
	"google.golang.org/protobuf/proto"
)

// Format defines the interface for mapping serialization and deserialization.
type Format interface {
	// Name is the short identifier used in configuration, e.g. "json".
	Name() string

	// ContentType is the MIME type of the serialized document.
	ContentType() string

	// Marshal serializes a mapping.
	Marshal(m map[string]any) ([]byte, error)

	// Unmarshal parses a document into a mapping.
	Unmarshal(data []byte) (map[string]any, error)
}

var formats = map[string]Format{
	"json":    JSON(),
	"yaml":    YAML(),
	"yml":     YAML(),
	"msgpack": MsgPack(),
}

// Lookup returns the format registered under name (case-insensitive).
func Lookup(name string) (Format, error) {
	f, ok := formats[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names lists the registered format names.
func Names() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EncodeMessage encodes msg to a mapping and serializes it with f.
func EncodeMessage(f Format, msg proto.Message, opts ...protodict.EncodeOption) ([]byte, error) {
	m, err := protodict.Encode(msg, opts...)
	if err != nil {
		return nil, err
	}

	data, err := f.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", f.Name(), err)
	}
	return data, nil
}

// DecodeMessage parses data with f and decodes the mapping into target.
func DecodeMessage(f Format, data []byte, target proto.Message, opts ...protodict.DecodeOption) (proto.Message, error) {
	m, err := f.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", f.Name(), err)
	}
	return protodict.Decode(m, target, opts...)
}

// normalize rewrites decoded documents into the shapes protodict.Decode
// expects: map[string]any for every mapping and []any for every list.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
		return val, nil

	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			key, err := mapKey(k)
			if err != nil {
				return nil, err
			}
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil

	case []any:
		for i, item := range val {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			val[i] = n
		}
		return val, nil

	default:
		return v, nil
	}
}

func mapKey(k any) (string, error) {
	switch key := k.(type) {
	case string:
		return key, nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(key), nil
	default:
		return "", fmt.Errorf("unsupported mapping key type %T", k)
	}
}

// normalizeDocument normalizes a top-level document, which must be a mapping.
func normalizeDocument(v any) (map[string]any, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return map[string]any{}, nil
	}
	m, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document must be a mapping, got %T", n)
	}
	return m, nil
}
