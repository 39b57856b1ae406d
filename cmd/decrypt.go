package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/sealbox/internal/core"
	"github.com/illarion/sealbox/internal/crypto"
)

// Decrypt restores files from envelope files with conflict resolution
func Decrypt(ctx context.Context, patterns []string, force bool, keepLocal bool, keepBoth bool) {
	flagCount := boolToInt(force) + boolToInt(keepLocal) + boolToInt(keepBoth)
	if flagCount > 1 {
		fmt.Fprintf(os.Stderr, "error: --force, --keep-local, and --keep-both are mutually exclusive\n")
		os.Exit(1)
	}

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

	var strategy core.ConflictStrategy
	switch {
	case force:
		strategy = core.StrategyUseVault
	case keepLocal:
		strategy = core.StrategyKeepLocal
	case keepBoth:
		strategy = core.StrategyKeepBoth
	default:
		strategy = core.StrategyAsk
	}

	result, err := box.DecryptFiles(ctx, sess, patterns, strategy)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("\n")
	if len(result.Restored) > 0 {
		fmt.Printf("decrypted: %d files\n", len(result.Restored))
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
