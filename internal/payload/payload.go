package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotStructured is returned when text does not parse as structured data
var ErrNotStructured = errors.New("payload is not structured data")

// Serialize converts an in-memory value to canonical text: compact JSON
// with sorted object keys. The output is deterministic for a given value.
func Serialize(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}
	return string(data), nil
}

// Deserialize parses canonical text back into an in-memory value
func Deserialize(text string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotStructured, err)
	}

	// Reject trailing garbage after the first document
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after document", ErrNotStructured)
	}

	return v, nil
}

// Normalize re-serializes structured text into canonical form, so that
// semantically equal documents encrypt from identical plaintext.
func Normalize(text string) (string, error) {
	v, err := Deserialize(text)
	if err != nil {
		return "", err
	}
	return Serialize(v)
}
