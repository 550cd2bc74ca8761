// Package grpccodec carries proto messages over gRPC as protodict mappings
// serialized with a format.Format.
//
// The codec is registered under a content subtype and selected per call:
//
//	c, _ := grpccodec.New("json", protodict.WithEnumLabels(true))
//	grpccodec.Register(c)
//
//	conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(c.Name()))
//
// The server and client must register codecs with the same name.
package grpccodec

import (
	"fmt"

	"github.com/zero-day-ai/protodict"
	"github.com/zero-day-ai/protodict/format"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// NamePrefix prefixes every codec name so protodict codecs never shadow the
// codecs gRPC registers itself.
const NamePrefix = "protodict-"

// Codec implements encoding.Codec on top of protodict.Encode and
// protodict.Decode.
type Codec struct {
	format     format.Format
	encodeOpts []protodict.EncodeOption
	decodeOpts []protodict.DecodeOption
}

var _ encoding.Codec = (*Codec)(nil)

// New creates a codec for the named format. Unmarshal uses default decode
// options; pair WithJSONNames with protodict.AcceptJSONNames via NewWithFormat.
func New(formatName string, encodeOpts ...protodict.EncodeOption) (*Codec, error) {
	f, err := format.Lookup(formatName)
	if err != nil {
		return nil, err
	}
	return NewWithFormat(f, encodeOpts, nil), nil
}

// NewWithFormat creates a codec for f with explicit encode and decode options.
func NewWithFormat(f format.Format, encodeOpts []protodict.EncodeOption, decodeOpts []protodict.DecodeOption) *Codec {
	return &Codec{
		format:     f,
		encodeOpts: encodeOpts,
		decodeOpts: decodeOpts,
	}
}

// Name returns the content subtype, e.g. "protodict-json".
func (c *Codec) Name() string {
	return NamePrefix + c.format.Name()
}

// Marshal encodes v, which must be a proto.Message.
func (c *Codec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("failed to marshal, message is %T, want proto.Message", v)
	}
	return format.EncodeMessage(c.format, msg, c.encodeOpts...)
}

// Unmarshal resets v, which must be a proto.Message, and decodes data into it.
func (c *Codec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("failed to unmarshal, message is %T, want proto.Message", v)
	}

	proto.Reset(msg)
	_, err := format.DecodeMessage(c.format, data, msg, c.decodeOpts...)
	return err
}

// Register registers c with gRPC. It must be called during initialization,
// before any connection or server is created.
func Register(c *Codec) {
	encoding.RegisterCodec(c)
}
