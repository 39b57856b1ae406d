// Package crypto provides key derivation and authenticated encryption for sealbox.
//
// Key derivation uses PBKDF2-HMAC-SHA256 with:
//   - caller-supplied or random 32-byte salt (not secret, stored unencrypted)
//   - 100,000 iterations as a deliberate cost factor against offline guessing
//   - 256-bit output consumed into an opaque Key handle
//
// Encryption uses AES-256-GCM with:
//   - 12-byte random nonce per encryption operation, never reused per key
//   - 128-bit authentication tag appended to the ciphertext
//   - text envelope format: base64(ciphertext||tag) + "," + base64(nonce)
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call Key.Destroy() when done with encryption operations
package crypto
