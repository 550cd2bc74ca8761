// Package descriptors loads message and extension types at runtime from a
// serialized FileDescriptorSet, such as one produced by
//
//	protoc --include_imports --descriptor_set_out=schema.binpb schema.proto
//	buf build -o schema.binpb
//
// so that protodict can convert messages without generated Go code.
package descriptors

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ErrMessageNotFound is returned when a message name is not in the set.
var ErrMessageNotFound = errors.New("message type not found")

// Set holds the files and dynamic types built from a descriptor set.
type Set struct {
	files *protoregistry.Files
	types *dynamicpb.Types
}

// Load reads and parses binary FileDescriptorSets from paths and merges them.
// A file present in more than one set is kept once.
func Load(paths ...string) (*Set, error) {
	merged := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]bool)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read descriptor set: %w", err)
		}

		fds := &descriptorpb.FileDescriptorSet{}
		if err := proto.Unmarshal(data, fds); err != nil {
			return nil, fmt.Errorf("failed to parse descriptor set %s: %w", path, err)
		}

		for _, fd := range fds.GetFile() {
			if seen[fd.GetName()] {
				continue
			}
			seen[fd.GetName()] = true
			merged.File = append(merged.File, fd)
		}
	}

	return FromFileDescriptorSet(merged)
}

// FromFileDescriptorSet builds a Set. Every import must be present in fds.
func FromFileDescriptorSet(fds *descriptorpb.FileDescriptorSet) (*Set, error) {
	files, err := protodesc.NewFiles(fds)
	if err != nil {
		return nil, fmt.Errorf("failed to build descriptors: %w", err)
	}

	return &Set{
		files: files,
		types: dynamicpb.NewTypes(files),
	}, nil
}

// MessageType returns the dynamic message type for a fully-qualified name,
// e.g. "scan.v1.Target". A leading dot is accepted.
func (s *Set) MessageType(name string) (protoreflect.MessageType, error) {
	if len(name) > 0 && name[0] == '.' {
		name = name[1:]
	}

	mt, err := s.types.FindMessageByName(protoreflect.FullName(name))
	if err != nil {
		if errors.Is(err, protoregistry.NotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, name)
		}
		return nil, err
	}
	return mt, nil
}

// Resolver returns the extension resolver for the set, suitable for
// protodict.WithExtensionResolver.
func (s *Set) Resolver() protoregistry.ExtensionTypeResolver {
	return s.types
}

// Files returns the file registry backing the set.
func (s *Set) Files() *protoregistry.Files {
	return s.files
}

// MessageNames lists the fully-qualified names of every message in the set,
// including nested messages, sorted by name.
func (s *Set) MessageNames() []string {
	var names []string
	s.files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		names = appendMessageNames(names, fd.Messages())
		return true
	})
	sort.Strings(names)
	return names
}

func appendMessageNames(names []string, msgs protoreflect.MessageDescriptors) []string {
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if md.IsMapEntry() {
			continue
		}
		names = append(names, string(md.FullName()))
		names = appendMessageNames(names, md.Messages())
	}
	return names
}
