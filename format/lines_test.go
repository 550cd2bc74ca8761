package format

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONLines(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []map[string]any
		wantErr string
	}{
		{
			name:  "multiple records",
			input: "{\"name\":\"a\",\"number\":1}\n{\"name\":\"b\",\"number\":2}\n",
			want: []map[string]any{
				{"name": "a", "number": json.Number("1")},
				{"name": "b", "number": json.Number("2")},
			},
		},
		{
			name:  "skips blank lines",
			input: "\n{\"name\":\"a\"}\n   \n{\"name\":\"b\"}",
			want:  []map[string]any{{"name": "a"}, {"name": "b"}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:    "reports line number",
			input:   "{\"name\":\"a\"}\n\n{\"name\":\n",
			wantErr: "failed to parse JSON at line 3",
		},
		{
			name:    "non-mapping record",
			input:   "[1]\n",
			wantErr: "document must be a mapping",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSONLines([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteJSONLines(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSONLines(&buf, []map[string]any{
		{"name": "a"},
		{"number": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"a\"}\n{\"number\":2}\n", buf.String())

	parsed, err := ParseJSONLines(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, parsed, 2)
}

func TestWriteJSONLines_MarshalError(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSONLines(&buf, []map[string]any{{"bad": make(chan int)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to marshal record 0")
}
