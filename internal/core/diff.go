package core

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/term"
)

// ConflictStrategy determines how to resolve a conflict between a local
// file and the decrypted vault version
type ConflictStrategy int

const (
	StrategyAsk       ConflictStrategy = iota // Prompt the user for each conflict
	StrategyKeepLocal                         // Always keep the local version
	StrategyUseVault                          // Always overwrite with the vault version
	StrategyKeepBoth                          // Keep local, write vault version alongside
)

// ConflictResolution is the outcome for a single conflicted file
type ConflictResolution int

const (
	ResolutionSkip ConflictResolution = iota
	ResolutionKeepLocal
	ResolutionUseVault
	ResolutionKeepBoth
)

// CompareFiles returns true if the two contents are identical
func CompareFiles(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	hashA := sha256.Sum256(a)
	hashB := sha256.Sum256(b)
	return hashA == hashB
}

// DetectFileType guesses a file's kind from its extension, for display in
// conflict prompts
func DetectFileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".env":
		return "env"
	case ".toml", ".ini", ".cfg", ".conf":
		return "config"
	case ".pem", ".key", ".crt":
		return "certificate"
	default:
		if strings.HasPrefix(filepath.Base(path), ".env") {
			return "env"
		}
		return "text"
	}
}

// HandleConflict resolves a conflict between local and vault contents
// according to the strategy. StrategyAsk shows a diff and prompts
// interactively.
func HandleConflict(path string, local, vault []byte, strategy ConflictStrategy) (ConflictResolution, error) {
	switch strategy {
	case StrategyKeepLocal:
		return ResolutionKeepLocal, nil
	case StrategyUseVault:
		return ResolutionUseVault, nil
	case StrategyKeepBoth:
		return ResolutionKeepBoth, nil
	}

	fmt.Printf("\nconflict: %s (%s) differs from vault version\n", path, DetectFileType(path))

	diff, err := GenerateUnifiedDiff(path, vault, local)
	if err == nil && diff != "" {
		fmt.Print(diff)
	}

	fmt.Printf("\n[k]eep local, [u]se vault, keep [b]oth, [s]kip? ")
	choice, err := readChoice()
	if err != nil {
		return ResolutionSkip, fmt.Errorf("%s: cannot read choice: %w", path, err)
	}
	fmt.Println(choice)

	switch choice {
	case "k":
		return ResolutionKeepLocal, nil
	case "u":
		return ResolutionUseVault, nil
	case "b":
		return ResolutionKeepBoth, nil
	default:
		return ResolutionSkip, nil
	}
}

// readChoice reads a single keypress without waiting for Enter. Falls back
// to line input when stdin is not a terminal.
func readChoice() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		var line string
		if _, err := fmt.Scanln(&line); err != nil {
			return "", err
		}
		if line == "" {
			return "", nil
		}
		return strings.ToLower(line[:1]), nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return "", err
	}
	defer term.Restore(fd, oldState)

	buf := make([]byte, 1)
	if _, err := os.Stdin.Read(buf); err != nil {
		return "", err
	}

	return strings.ToLower(string(buf)), nil
}

// GenerateUnifiedDiff produces a unified diff between vault (old) and local
// (new) contents in git-style format. Returns "" when contents match.
func GenerateUnifiedDiff(path string, vault, local []byte) (string, error) {
	if CompareFiles(vault, local) {
		return "", nil
	}

	dmp := diffmatchpatch.New()

	vaultChars, localChars, lineArray := dmp.DiffLinesToChars(string(vault), string(local))
	diffs := dmp.DiffMain(vaultChars, localChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("--- vault/%s\n", path))
	sb.WriteString(fmt.Sprintf("+++ local/%s\n", path))

	for _, d := range diffs {
		lines := strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n")
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			prefix = " "
		}
		for _, line := range lines {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	return sb.String(), nil
}
