package format

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// maxLineSize bounds a single newline-delimited record.
const maxLineSize = 16 * 1024 * 1024

// ParseJSONLines parses newline-delimited JSON mappings. Empty lines are
// skipped.
func ParseJSONLines(data []byte) ([]map[string]any, error) {
	var results []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		m, err := JSON().Unmarshal(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		results = append(results, m)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading JSON lines: %w", err)
	}

	return results, nil
}

// WriteJSONLines writes each mapping as one line of JSON.
func WriteJSONLines(w io.Writer, ms []map[string]any) error {
	for i, m := range ms {
		data, err := JSON().Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal record %d: %w", i, err)
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return nil
}
