// Package core implements sealbox vault operations.
//
// A vault is a directory with a .sealbox database holding the KDF salt,
// iteration count, an encrypted password check value, and a manifest of
// tracked files. Encrypted file contents live outside the database, in
// .enc envelope files written next to their plaintext sources, so they can
// be committed and shared while the plaintexts stay local.
//
// Operations that touch file contents (encrypt, decrypt, diff, passwd)
// require unlocking the vault first, which derives the key and verifies it
// against the check value. Status and manifest removal work without a
// password.
package core
