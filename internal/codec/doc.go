// Package codec converts between raw byte buffers and transport-safe text.
//
// The encoding is standard base64 (RFC 4648, with padding). It has no
// cryptographic meaning; it only makes ciphertext and nonce bytes safe to
// carry in a plain text file. The alphabet excludes the comma, which the
// envelope format uses as a field delimiter.
package codec
