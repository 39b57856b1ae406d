package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrInvalidEncoding is returned by Decode for text that is not valid base64
var ErrInvalidEncoding = errors.New("invalid base64 encoding")

// Encode converts raw bytes to standard base64 text.
// The base64 alphabet contains no comma, so encoded fields can be safely
// joined with a comma delimiter.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode converts standard base64 text back to raw bytes.
// It is the exact left inverse of Encode: Decode(Encode(b)) == b for every
// byte sequence b, including the empty one.
func Decode(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return data, nil
}
