package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/illarion/sealbox/internal/core"
	"github.com/illarion/sealbox/internal/crypto"
)

// Init creates a new .sealbox vault in the current directory. A non-empty
// salt makes the derived key reproducible across machines sharing it.
func Init(ctx context.Context, salt string) {
	box, err := core.New(".")
	if err != nil {
		HandleError(err)
	}
	defer box.Close()

	password, err := getPasswordForInit()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(password)

	if err := box.Init(ctx, password, []byte(salt)); err != nil {
		if errors.Is(err, core.ErrAlreadyExists) {
			fmt.Fprintf(os.Stderr, "Error: .sealbox already exists in this directory\n")
			fmt.Fprintf(os.Stderr, "Use 'sealbox status' to see current state\n")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}

	fmt.Println("✓ Initialized .sealbox")
}

// getPasswordForInit checks the environment first, then prompts with
// confirmation
func getPasswordForInit() ([]byte, error) {
	if password := core.GetPasswordFromEnv(); password != nil {
		return password, nil
	}
	return core.ReadPasswordConfirm("Enter new password")
}
