package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/illarion/sealbox/internal/core"
)

// Status shows the current state of the vault. No password required.
func Status(ctx context.Context) {
	box, err := core.New(".")
	if err != nil {
		HandleError(err)
	}
	defer box.Close()

	status, err := box.Status(ctx)
	if err != nil {
		if errors.Is(err, core.ErrNotInitialized) {
			fmt.Println("No .sealbox vault found in current directory")
			fmt.Println("Run 'sealbox init' to create one")
			return
		}
		HandleError(err)
	}

	fmt.Println("Encrypted files:")
	if len(status.Files) == 0 {
		fmt.Println("  (none)")
	} else {
		for _, file := range status.Files {
			fmt.Printf("  %s %s (%s)\n", statusIcon(file.Status), file.Path, file.Status)
		}
	}

	fmt.Printf("\nFiles: %d tracked, %d modified, %d missing\n",
		status.TrackedCount, status.ModifiedCount, status.MissingCount)
	fmt.Printf("Total size: %s\n", formatSize(status.TotalSize))
	fmt.Printf("Encryption: %s (PBKDF2, %d iterations)\n", status.Algorithm, status.KDFIterations)

	if !status.LastSealed.IsZero() {
		fmt.Printf("Last sealed: %s\n", status.LastSealed.Format(time.RFC3339))
	}

	if _, err := os.Stat(core.VaultFile); err == nil {
		fmt.Println(".sealbox: present")
	}
}

func statusIcon(status string) string {
	switch status {
	case "unchanged":
		return "✓"
	case "modified":
		return "✗"
	case "encrypted only":
		return "●"
	default:
		return "?"
	}
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
