package crypto

import (
	"fmt"
	"strings"

	"github.com/illarion/sealbox/internal/codec"
)

// envelopeDelimiter separates the ciphertext field from the nonce field.
// Both fields are base64, whose alphabet excludes the comma, so the
// delimiter can never collide with field content.
const envelopeDelimiter = ","

// Encrypt encrypts plaintext under the key and packs the result into a
// self-contained text envelope of the form
//
//	base64(ciphertext||tag) + "," + base64(nonce)
//
// A fresh random 12-byte nonce is drawn per call, so encrypting the same
// plaintext twice yields different envelopes.
func Encrypt(key *Key, plaintext string) (string, error) {
	nonce, err := GenerateRandom(NonceSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCipher, err)
	}

	ciphertext, err := key.seal(nonce, []byte(plaintext))
	if err != nil {
		return "", err
	}

	return codec.Encode(ciphertext) + envelopeDelimiter + codec.Encode(nonce), nil
}

// Decrypt unpacks a text envelope produced by Encrypt and recovers the
// plaintext. It fails with ErrMalformedEnvelope when the envelope does not
// parse into two decodable fields, and with ErrAuthFailed when the
// authentication tag check fails (wrong key, corrupted or tampered data).
// The two cases are distinct so callers can report "corrupt file" versus
// "wrong key".
func Decrypt(key *Key, envelope string) (string, error) {
	ctField, nonceField, found := strings.Cut(envelope, envelopeDelimiter)
	if !found || ctField == "" || nonceField == "" {
		return "", fmt.Errorf("%w: expected two comma-separated fields", ErrMalformedEnvelope)
	}

	ciphertext, err := codec.Decode(ctField)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext field: %v", ErrMalformedEnvelope, err)
	}

	nonce, err := codec.Decode(nonceField)
	if err != nil {
		return "", fmt.Errorf("%w: nonce field: %v", ErrMalformedEnvelope, err)
	}
	if len(nonce) != NonceSize {
		return "", fmt.Errorf("%w: nonce must decode to %d bytes", ErrMalformedEnvelope, NonceSize)
	}

	// Even an empty plaintext carries a full authentication tag.
	if len(ciphertext) < TagSize {
		return "", fmt.Errorf("%w: ciphertext shorter than authentication tag", ErrMalformedEnvelope)
	}

	plaintext, err := key.open(nonce, ciphertext)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
