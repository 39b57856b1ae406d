package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/sealbox/internal/core"
)

// Remove drops files from the vault manifest and deletes their envelope
// files. No password required.
func Remove(ctx context.Context, patterns []string) {
	if len(patterns) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: sealbox rm <file> [file...]")
		os.Exit(1)
	}

	box, err := core.New(".")
	if err != nil {
		HandleError(err)
	}
	defer box.Close()

	removed, err := box.RemoveFiles(ctx, patterns, true)
	if err != nil {
		HandleError(err)
	}

	if removed == 0 {
		fmt.Println("No matching files in vault")
		return
	}
	fmt.Printf("removed: %d files\n", removed)
}
