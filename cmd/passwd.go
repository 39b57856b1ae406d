package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/sealbox/internal/core"
	"github.com/illarion/sealbox/internal/crypto"
	"github.com/illarion/sealbox/internal/keyring"
)

// Passwd changes the vault password and re-encrypts all envelope files
func Passwd(ctx context.Context) {
	box, err := core.New(".")
	if err != nil {
		HandleError(err)
	}
	defer box.Close()

	vaultID, _ := box.GetVaultID()

	currentPassword, _, err := GetPasswordWithRetry(ctx, "Enter current password: ", vaultID, box.VerifyPassword)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(currentPassword)

	newPassword, err := core.ReadPasswordConfirm("Enter new password")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(newPassword)

	if err := box.ChangePassword(ctx, currentPassword, newPassword); err != nil {
		HandleError(err)
	}

	// Keep the keyring in sync with the new password when an entry exists
	if vaultID != "" && keyring.HasPassword(vaultID) {
		if err := keyring.SavePassword(vaultID, string(newPassword)); err == nil {
			fmt.Println("Keyring updated with new password")
		}
	}

	fmt.Println("password changed successfully")
}
