package cmd

import (
	"context"

	"github.com/illarion/sealbox/internal/core"
	"github.com/illarion/sealbox/internal/crypto"
)

// Diff compares decrypted vault contents with local files
func Diff(ctx context.Context) {
	box, err := core.New(".")
	if err != nil {
		HandleError(err)
	}
	defer box.Close()

	vaultID, _ := box.GetVaultID()

	password, _, err := GetPasswordWithRetry(ctx, "Enter password: ", vaultID, box.VerifyPassword)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	sess, err := box.Unlock(ctx, password)
	if err != nil {
		HandleError(err)
	}
	defer sess.Clear()

	if err := box.Diff(ctx, sess); err != nil {
		HandleError(err)
	}
}
