package core

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/illarion/sealbox/internal/crypto"
)

// PasswordEnvVar allows supplying the vault password non-interactively
const PasswordEnvVar = "SEALBOX_PASSWORD"

// ReadPassword prompts for a password without echoing it to the terminal
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	return password, nil
}

// ReadPasswordConfirm prompts for a password twice and verifies the entries
// match, for initial setup and password changes
func ReadPasswordConfirm(prompt string) ([]byte, error) {
	password, err := ReadPassword(prompt + ": ")
	if err != nil {
		return nil, err
	}

	if len(password) == 0 {
		crypto.ClearBytes(password)
		return nil, fmt.Errorf("password cannot be empty")
	}

	confirm, err := ReadPassword("Confirm password: ")
	if err != nil {
		crypto.ClearBytes(password)
		return nil, err
	}
	defer crypto.ClearBytes(confirm)

	if !crypto.ConstantTimeCompare(password, confirm) {
		crypto.ClearBytes(password)
		return nil, fmt.Errorf("passwords do not match")
	}

	return password, nil
}

// GetPasswordFromEnv returns the password from the environment, or nil if
// not set
func GetPasswordFromEnv() []byte {
	if value := os.Getenv(PasswordEnvVar); value != "" {
		return []byte(value)
	}
	return nil
}
