package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/sealbox/internal/core"
	"github.com/illarion/sealbox/internal/crypto"
)

// Encrypt seals files into .enc envelope files next to their sources
func Encrypt(ctx context.Context, patterns []string, canonical bool, remove bool) {
	box, err := core.New(".")
	if err != nil {
		HandleError(err)
	}
	defer box.Close()

	vaultID, _ := box.GetVaultID()

	password, source, err := GetPasswordWithRetry(ctx, "Enter password: ", vaultID, box.VerifyPassword)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	sess, err := box.Unlock(ctx, password)
	if err != nil {
		HandleError(err)
	}
	defer sess.Clear()

	result, err := box.EncryptFiles(ctx, sess, patterns, core.EncryptOptions{
		Canonical: canonical,
		Remove:    remove,
	})
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("\n")
	if len(result.Encrypted) > 0 {
		fmt.Printf("encrypted: %d files\n", len(result.Encrypted))
	}
	if len(result.Skipped) > 0 {
		fmt.Printf("skipped: %d files\n", len(result.Skipped))
	}
	if len(result.Errors) > 0 {
		fmt.Printf("error: %d errors occurred\n", len(result.Errors))
	}

	if source == SourcePrompt {
		vaultID, err := box.GetOrCreateVaultID()
		if err != nil {
			return
		}
		OfferToSavePassword(vaultID, password)
	}
}
