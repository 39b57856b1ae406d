package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/illarion/sealbox/internal/core"
	"github.com/illarion/sealbox/internal/crypto"
	"github.com/illarion/sealbox/internal/keyring"
)

// PasswordSource records where a password came from, so commands know
// whether offering to save it to the keyring makes sense
type PasswordSource int

const (
	SourceEnv PasswordSource = iota
	SourceKeyring
	SourcePrompt
)

// GetPassword retrieves the password from environment or prompts the user.
// The caller is responsible for calling crypto.ClearBytes on the result.
func GetPassword(prompt string) ([]byte, error) {
	if password := core.GetPasswordFromEnv(); password != nil {
		return password, nil
	}

	password, err := core.ReadPassword(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	return password, nil
}

// GetPasswordOrExit is like GetPassword but exits on error
func GetPasswordOrExit(prompt string) []byte {
	password, err := GetPassword(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return password
}

// GetPasswordWithRetry tries the environment, then the OS keyring, then an
// interactive prompt. A keyring password that fails verification is stale
// (the vault password changed elsewhere), so it is dropped and the user is
// prompted instead.
func GetPasswordWithRetry(ctx context.Context, prompt string, vaultID string, verify func(context.Context, []byte) error) ([]byte, PasswordSource, error) {
	if password := core.GetPasswordFromEnv(); password != nil {
		return password, SourceEnv, nil
	}

	if vaultID != "" {
		if stored, err := keyring.GetPassword(vaultID); err == nil {
			password := []byte(stored)
			if err := verify(ctx, password); err == nil {
				return password, SourceKeyring, nil
			}
			crypto.ClearBytes(password)
			fmt.Fprintln(os.Stderr, "Stored password is no longer valid, removing from keyring")
			_ = keyring.DeletePassword(vaultID)
		}
	}

	password, err := core.ReadPassword(prompt)
	if err != nil {
		return nil, SourcePrompt, fmt.Errorf("failed to read password: %w", err)
	}
	return password, SourcePrompt, nil
}

// OfferToSavePassword asks whether to remember the password in the OS
// keyring. Skipped when stdin is not interactive.
func OfferToSavePassword(vaultID string, password []byte) {
	if core.GetPasswordFromEnv() != nil {
		return
	}

	fmt.Fprint(os.Stderr, "Save password to OS keyring? [y/N] ")
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil {
		return
	}
	if !strings.EqualFold(strings.TrimSpace(answer), "y") {
		return
	}

	if err := keyring.SavePassword(vaultID, string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save to keyring: %s\n", err)
		return
	}
	fmt.Println("Password saved to keyring")
}

// HandleError handles common errors consistently
func HandleError(err error) {
	switch {
	case errors.Is(err, core.ErrNotInitialized):
		fmt.Fprintf(os.Stderr, "Error: sealbox not initialized\n")
		fmt.Fprintf(os.Stderr, "Run 'sealbox init' first\n")
	case errors.Is(err, core.ErrAlreadyExists):
		fmt.Fprintf(os.Stderr, "Error: .sealbox already exists in this directory\n")
		fmt.Fprintf(os.Stderr, "Use 'sealbox status' to see current state\n")
	case errors.Is(err, core.ErrWrongPassword):
		fmt.Fprintf(os.Stderr, "Error: wrong password\n")
	case errors.Is(err, core.ErrNoEncryptedFiles):
		fmt.Fprintf(os.Stderr, "Error: no encrypted files in vault\n")
		fmt.Fprintf(os.Stderr, "Use 'sealbox encrypt <file>' to add files\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}
