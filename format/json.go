package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

type jsonFormat struct{}

// JSON returns the JSON format (RFC 8259). Numbers are decoded as
// json.Number so 64-bit integers keep their exact value.
func JSON() Format { return jsonFormat{} }

func (jsonFormat) Name() string        { return "json" }
func (jsonFormat) ContentType() string { return "application/json" }

func (jsonFormat) Marshal(m map[string]any) ([]byte, error) {
	return json.Marshal(m)
}

func (jsonFormat) Unmarshal(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON document")
	}

	return normalizeDocument(v)
}
