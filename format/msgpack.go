package format

import (
	"github.com/vmihailenco/msgpack/v5"
)

// msgpackFormat serializes mappings as MessagePack, a binary format that is
// more compact than JSON and keeps integer widths.
type msgpackFormat struct{}

// MsgPack returns the MessagePack format. Content-Type: application/msgpack
func MsgPack() Format { return msgpackFormat{} }

func (msgpackFormat) Name() string        { return "msgpack" }
func (msgpackFormat) ContentType() string { return "application/msgpack" }

func (msgpackFormat) Marshal(m map[string]any) ([]byte, error) {
	return msgpack.Marshal(m)
}

func (msgpackFormat) Unmarshal(data []byte) (map[string]any, error) {
	var v any
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return normalizeDocument(v)
}
