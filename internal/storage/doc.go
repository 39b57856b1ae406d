// Package storage provides the BBolt database interface for the .sealbox vault.
//
// Database structure uses three buckets:
//   - config: KDF parameters (salt, iterations), timestamps, vault ID (unencrypted)
//   - index: Manifest of encrypted files (unencrypted, for status without a password)
//   - private: Encrypted password-check envelope
//
// Envelope files themselves live next to their plaintext sources on disk;
// the database only records where they are and what they were made from.
// The unencrypted index bucket enables sealbox status to work without
// requiring a password.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
