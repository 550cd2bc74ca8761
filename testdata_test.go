package protodict

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Test schemas, equivalent to:
//
//	// sample.proto
//	syntax = "proto2";
//	package tests;
//	message MessageOfTypes {
//	  message NestedType { required string req = 1; }
//	  enum Enum { A = 0; B = 1; C = 2; }
//	  optional double dubl = 1; ... optional sfixed64 sf64 = 12;
//	  optional bool bol = 13; optional string strng = 14; optional bytes byts = 15;
//	  optional NestedType nested = 16; optional Enum enm = 17;
//	  repeated Enum enmRepeated = 18; repeated uint32 range = 19;
//	  repeated NestedType nestedRepeated = 20; optional string optional_string = 21;
//	  map<int32, NestedType> nested_map = 22;
//	  extensions 100 to 199;
//	}
//	extend MessageOfTypes { optional double extDouble = 100; optional string extString = 101;
//	                        repeated int64 extNumbers = 104; }
//	message NestedExtension {
//	  extend MessageOfTypes { optional int32 extInt = 102; optional MessageOfTypes.NestedType extNested = 103; }
//	}
//
//	// sample_proto3.proto
//	syntax = "proto3";
//	package tests3;
//	message SomeMessage {
//	  message Nested { string name = 1; }
//	  enum SomeEnum { ZERO = 0; ONE = 1; }
//	  map<string, string> some_map = 1; SomeEnum enum_field = 2; bool bool_field = 3;
//	  optional int64 counter = 4;
//	  oneof choice { string label = 5; Nested item = 6; }
//	  map<bool, int32> flags = 7;
//	}

const (
	messageOfTypesName = "tests.MessageOfTypes"
	someMessageName    = "tests3.SomeMessage"
)

func scalarField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func typedField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalarField(name, number, typ)
	f.TypeName = proto.String(typeName)
	return f
}

func repeatedField(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func extensionField(f *descriptorpb.FieldDescriptorProto, extendee string) *descriptorpb.FieldDescriptorProto {
	f.Extendee = proto.String(extendee)
	return f
}

func mapEntry(name string, key, value *descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name:    proto.String(name),
		Field:   []*descriptorpb.FieldDescriptorProto{key, value},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}
}

func enumType(name string, values ...string) *descriptorpb.EnumDescriptorProto {
	e := &descriptorpb.EnumDescriptorProto{Name: proto.String(name)}
	for i, v := range values {
		e.Value = append(e.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v),
			Number: proto.Int32(int32(i)),
		})
	}
	return e
}

func sampleProto2() *descriptorpb.FileDescriptorProto {
	nested := &descriptorpb.DescriptorProto{
		Name: proto.String("NestedType"),
		Field: []*descriptorpb.FieldDescriptorProto{{
			Name:   proto.String("req"),
			Number: proto.Int32(1),
			Label:  descriptorpb.FieldDescriptorProto_LABEL_REQUIRED.Enum(),
			Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
		}},
	}

	msg := &descriptorpb.DescriptorProto{
		Name: proto.String("MessageOfTypes"),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalarField("dubl", 1, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
			scalarField("flot", 2, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
			scalarField("i32", 3, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			scalarField("i64", 4, descriptorpb.FieldDescriptorProto_TYPE_INT64),
			scalarField("ui32", 5, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
			scalarField("ui64", 6, descriptorpb.FieldDescriptorProto_TYPE_UINT64),
			scalarField("si32", 7, descriptorpb.FieldDescriptorProto_TYPE_SINT32),
			scalarField("si64", 8, descriptorpb.FieldDescriptorProto_TYPE_SINT64),
			scalarField("f32", 9, descriptorpb.FieldDescriptorProto_TYPE_FIXED32),
			scalarField("f64", 10, descriptorpb.FieldDescriptorProto_TYPE_FIXED64),
			scalarField("sf32", 11, descriptorpb.FieldDescriptorProto_TYPE_SFIXED32),
			scalarField("sf64", 12, descriptorpb.FieldDescriptorProto_TYPE_SFIXED64),
			scalarField("bol", 13, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
			scalarField("strng", 14, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalarField("byts", 15, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
			typedField("nested", 16, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".tests.MessageOfTypes.NestedType"),
			typedField("enm", 17, descriptorpb.FieldDescriptorProto_TYPE_ENUM, ".tests.MessageOfTypes.Enum"),
			repeatedField(typedField("enmRepeated", 18, descriptorpb.FieldDescriptorProto_TYPE_ENUM, ".tests.MessageOfTypes.Enum")),
			repeatedField(scalarField("range", 19, descriptorpb.FieldDescriptorProto_TYPE_UINT32)),
			repeatedField(typedField("nestedRepeated", 20, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".tests.MessageOfTypes.NestedType")),
			scalarField("optional_string", 21, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			repeatedField(typedField("nested_map", 22, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".tests.MessageOfTypes.NestedMapEntry")),
		},
		NestedType: []*descriptorpb.DescriptorProto{
			nested,
			mapEntry("NestedMapEntry",
				scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				typedField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".tests.MessageOfTypes.NestedType")),
		},
		EnumType: []*descriptorpb.EnumDescriptorProto{enumType("Enum", "A", "B", "C")},
		ExtensionRange: []*descriptorpb.DescriptorProto_ExtensionRange{
			{Start: proto.Int32(100), End: proto.Int32(200)},
		},
	}

	holder := &descriptorpb.DescriptorProto{
		Name: proto.String("NestedExtension"),
		Extension: []*descriptorpb.FieldDescriptorProto{
			extensionField(scalarField("extInt", 102, descriptorpb.FieldDescriptorProto_TYPE_INT32), ".tests.MessageOfTypes"),
			extensionField(typedField("extNested", 103, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".tests.MessageOfTypes.NestedType"), ".tests.MessageOfTypes"),
		},
	}

	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String("tests/sample.proto"),
		Package:     proto.String("tests"),
		Syntax:      proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{msg, holder},
		Extension: []*descriptorpb.FieldDescriptorProto{
			extensionField(scalarField("extDouble", 100, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE), ".tests.MessageOfTypes"),
			extensionField(scalarField("extString", 101, descriptorpb.FieldDescriptorProto_TYPE_STRING), ".tests.MessageOfTypes"),
			extensionField(repeatedField(scalarField("extNumbers", 104, descriptorpb.FieldDescriptorProto_TYPE_INT64)), ".tests.MessageOfTypes"),
		},
	}
}

func sampleProto3() *descriptorpb.FileDescriptorProto {
	label := scalarField("label", 5, descriptorpb.FieldDescriptorProto_TYPE_STRING)
	label.OneofIndex = proto.Int32(0)
	item := typedField("item", 6, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".tests3.SomeMessage.Nested")
	item.OneofIndex = proto.Int32(0)
	counter := scalarField("counter", 4, descriptorpb.FieldDescriptorProto_TYPE_INT64)
	counter.OneofIndex = proto.Int32(1)
	counter.Proto3Optional = proto.Bool(true)

	msg := &descriptorpb.DescriptorProto{
		Name: proto.String("SomeMessage"),
		Field: []*descriptorpb.FieldDescriptorProto{
			repeatedField(typedField("some_map", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".tests3.SomeMessage.SomeMapEntry")),
			typedField("enum_field", 2, descriptorpb.FieldDescriptorProto_TYPE_ENUM, ".tests3.SomeMessage.SomeEnum"),
			scalarField("bool_field", 3, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
			counter,
			label,
			item,
			repeatedField(typedField("flags", 7, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".tests3.SomeMessage.FlagsEntry")),
		},
		NestedType: []*descriptorpb.DescriptorProto{
			{
				Name:  proto.String("Nested"),
				Field: []*descriptorpb.FieldDescriptorProto{scalarField("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)},
			},
			mapEntry("SomeMapEntry",
				scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			mapEntry("FlagsEntry",
				scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
				scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32)),
		},
		EnumType:  []*descriptorpb.EnumDescriptorProto{enumType("SomeEnum", "ZERO", "ONE")},
		OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("choice")}, {Name: proto.String("_counter")}},
	}

	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String("tests/sample_proto3.proto"),
		Package:     proto.String("tests3"),
		Syntax:      proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{msg},
	}
}

// newTestTypes builds a dynamic type registry holding both test schemas.
func newTestTypes(t testing.TB) *dynamicpb.Types {
	t.Helper()

	files, err := protodesc.NewFiles(&descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{sampleProto2(), sampleProto3()},
	})
	require.NoError(t, err)

	return dynamicpb.NewTypes(files)
}

// schema bundles the test registry with accessors for its types.
type schema struct {
	t     testing.TB
	types *dynamicpb.Types
}

func newSchema(t testing.TB) *schema {
	return &schema{t: t, types: newTestTypes(t)}
}

func (s *schema) messageType(name string) protoreflect.MessageType {
	s.t.Helper()
	mt, err := s.types.FindMessageByName(protoreflect.FullName(name))
	require.NoError(s.t, err)
	return mt
}

func (s *schema) extension(name string) protoreflect.ExtensionType {
	s.t.Helper()
	xt, err := s.types.FindExtensionByName(protoreflect.FullName(name))
	require.NoError(s.t, err)
	return xt
}

func (s *schema) newMessageOfTypes() protoreflect.Message {
	return s.messageType(messageOfTypesName).New()
}

func (s *schema) newSomeMessage() protoreflect.Message {
	return s.messageType(someMessageName).New()
}

func field(msg protoreflect.Message, name string) protoreflect.FieldDescriptor {
	return msg.Descriptor().Fields().ByName(protoreflect.Name(name))
}

func setField(msg protoreflect.Message, name string, v protoreflect.Value) {
	msg.Set(field(msg, name), v)
}

// populateMessageOfTypes fills every field of MessageOfTypes with a value at
// the edge of its range.
func (s *schema) populateMessageOfTypes() protoreflect.Message {
	m := s.newMessageOfTypes()

	setField(m, "dubl", protoreflect.ValueOfFloat64(1.7e+308))
	setField(m, "flot", protoreflect.ValueOfFloat32(3.4e+038))
	setField(m, "i32", protoreflect.ValueOfInt32(math.MaxInt32))
	setField(m, "i64", protoreflect.ValueOfInt64(math.MaxInt64))
	setField(m, "ui32", protoreflect.ValueOfUint32(math.MaxUint32))
	setField(m, "ui64", protoreflect.ValueOfUint64(math.MaxUint64))
	setField(m, "si32", protoreflect.ValueOfInt32(-math.MaxInt32))
	setField(m, "si64", protoreflect.ValueOfInt64(-math.MaxInt64))
	setField(m, "f32", protoreflect.ValueOfUint32(math.MaxInt32))
	setField(m, "f64", protoreflect.ValueOfUint64(math.MaxInt64))
	setField(m, "sf32", protoreflect.ValueOfInt32(-math.MaxInt32))
	setField(m, "sf64", protoreflect.ValueOfInt64(-math.MaxInt64))
	setField(m, "bol", protoreflect.ValueOfBool(true))
	setField(m, "strng", protoreflect.ValueOfString("string"))
	setField(m, "byts", protoreflect.ValueOfBytes([]byte("\n\x14\x1e")))

	nested := m.Mutable(field(m, "nested")).Message()
	setField(nested, "req", protoreflect.ValueOfString("req"))

	setField(m, "enm", protoreflect.ValueOfEnum(2))
	enms := m.Mutable(field(m, "enmRepeated")).List()
	enms.Append(protoreflect.ValueOfEnum(0))
	enms.Append(protoreflect.ValueOfEnum(2))

	rng := m.Mutable(field(m, "range")).List()
	for i := 0; i < 10; i++ {
		rng.Append(protoreflect.ValueOfUint32(uint32(i)))
	}

	setField(m, "optional_string", protoreflect.ValueOfString("optional"))
	return m
}

// addNestedRepeated appends count NestedType elements with req set to their index.
func addNestedRepeated(m protoreflect.Message, count int) {
	list := m.Mutable(field(m, "nestedRepeated")).List()
	for i := 0; i < count; i++ {
		el := list.NewElement()
		setField(el.Message(), "req", protoreflect.ValueOfString(strconv.Itoa(i)))
		list.Append(el)
	}
}
