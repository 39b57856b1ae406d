package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/illarion/sealbox/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(ctx, os.Args[2:])
	case "encrypt":
		runEncrypt(ctx, os.Args[2:])
	case "decrypt":
		runDecrypt(ctx, os.Args[2:])
	case "rm":
		runRm(ctx, os.Args[2:])
	case "status", "ls":
		runStatus(ctx, os.Args[2:])
	case "diff":
		runDiff(ctx, os.Args[2:])
	case "passwd":
		runPasswd(ctx, os.Args[2:])
	case "keyring":
		runKeyring(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runInit(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	salt := fs.String("salt", "", "Use a fixed salt instead of a random one")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Init(ctx, *salt)
}

func runEncrypt(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("encrypt", flag.ExitOnError)
	canonical := fs.Bool("canonical", false, "Normalize JSON payloads before encryption")
	removeShort := fs.Bool("r", false, "Remove original files after encryption")
	removeLong := fs.Bool("rm", false, "Remove original files after encryption")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if len(fs.Args()) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: sealbox encrypt [--canonical] [-r|--rm] <file> [file...]")
		os.Exit(1)
	}

	cmd.Encrypt(ctx, fs.Args(), *canonical, *removeShort || *removeLong)
}

func runDecrypt(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("decrypt", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite local files without asking")
	keepLocal := fs.Bool("keep-local", false, "Skip all conflicts, keep local versions")
	keepBoth := fs.Bool("keep-both", false, "Keep both local and vault versions")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Decrypt(ctx, fs.Args(), *force, *keepLocal, *keepBoth)
}

func runRm(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Remove(ctx, fs.Args())
}

func runStatus(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Status(ctx)
}

func runDiff(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Diff(ctx)
}

func runPasswd(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Passwd(ctx)
}

func runKeyring(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: sealbox keyring <save|rm|status>")
		os.Exit(1)
	}

	switch args[0] {
	case "save":
		cmd.KeyringSave(ctx)
	case "rm", "delete":
		cmd.KeyringDelete()
	case "status":
		cmd.KeyringStatus()
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: sealbox keyring <save|rm|status>")
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("sealbox - Password-based file encryption for config secrets")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sealbox <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init        Create a .sealbox vault in current directory")
	fmt.Println("  encrypt     Encrypt files into .enc envelope files")
	fmt.Println("  decrypt     Decrypt envelope files back to plaintext")
	fmt.Println("  rm          Remove files from the vault")
	fmt.Println("  ls, status  Show vault status")
	fmt.Println("  diff        Compare vault contents with local files")
	fmt.Println("  passwd      Change vault password")
	fmt.Println("  keyring     Manage password in the OS keyring")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  sealbox init                    # Create new vault")
	fmt.Println("  sealbox encrypt .env --rm       # Encrypt .env and remove original")
	fmt.Println("  sealbox decrypt                 # Decrypt all files")
	fmt.Println("  sealbox status                  # Check vault status")
	fmt.Println()
	fmt.Println("Use 'sealbox help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "init":
		fmt.Println("sealbox init [--salt <text>]")
		fmt.Println()
		fmt.Println("Creates a .sealbox vault in the current directory.")
		fmt.Println("Prompts for a password that will be used for encryption.")
		fmt.Println("The password is not stored anywhere - you must remember it.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --salt    Use a fixed salt so the same password yields the same")
		fmt.Println("            key on other machines. The salt is not a secret.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  sealbox init                     # Create new vault, random salt")
		fmt.Println("  sealbox init --salt my-team      # Create vault with shared salt")
	case "encrypt":
		fmt.Println("sealbox encrypt [--canonical] [-r|--rm] <file> [file...]")
		fmt.Println()
		fmt.Println("Encrypts files into .enc envelope files written next to the originals.")
		fmt.Println("Envelope files are safe to commit; the plaintexts stay local.")
		fmt.Println("Supports glob patterns for multiple files.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --canonical     Normalize JSON payloads (sorted keys) before encryption")
		fmt.Println("  -r, --rm        Remove original files after encryption")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  sealbox encrypt .env              # Encrypt a single file")
		fmt.Println("  sealbox encrypt .env --rm         # Encrypt and remove original")
		fmt.Println("  sealbox encrypt \"config/*.json\" --canonical")
	case "decrypt":
		fmt.Println("sealbox decrypt [--force|--keep-local|--keep-both] [<file> [file...]]")
		fmt.Println()
		fmt.Println("Decrypts envelope files back to their plaintext form.")
		fmt.Println("When run without file arguments, decrypts all tracked files.")
		fmt.Println("Patterns may also name .enc files directly, including ones")
		fmt.Println("received from another machine sharing the same salt and password.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --force        Overwrite local files without asking")
		fmt.Println("  --keep-local   Skip all conflicts, keep local versions")
		fmt.Println("  --keep-both    Keep both versions (save vault as .from-vault)")
		fmt.Println()
		fmt.Println("Interactive mode (default):")
		fmt.Println("  - Skips unchanged files")
		fmt.Println("  - For conflicts, shows a diff and offers:")
		fmt.Println("    [k] Keep local version")
		fmt.Println("    [u] Use vault version (overwrite local)")
		fmt.Println("    [b] Keep both (save vault as .from-vault)")
		fmt.Println("    [s] Skip this file")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  sealbox decrypt                  # Decrypt all files")
		fmt.Println("  sealbox decrypt .env             # Decrypt specific file")
		fmt.Println("  sealbox decrypt secrets.enc      # Decrypt a received envelope")
		fmt.Println("  sealbox decrypt --force          # Overwrite all")
	case "rm":
		fmt.Println("sealbox rm <file> [file...]")
		fmt.Println()
		fmt.Println("Removes files from the vault manifest and deletes their envelope files.")
		fmt.Println("Local plaintext files are not touched.")
		fmt.Println("Supports glob patterns for multiple files.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  sealbox rm .env")
		fmt.Println("  sealbox rm \"config/*.json\"")
	case "ls":
		fmt.Println("sealbox ls")
		fmt.Println()
		fmt.Println("Alias for 'sealbox status'. Shows vault status.")
	case "status":
		fmt.Println("sealbox status")
		fmt.Println()
		fmt.Println("Shows vault status including:")
		fmt.Println("  - File count and total size")
		fmt.Println("  - Encryption details")
		fmt.Println("  - File states (unchanged, modified, encrypted only)")
		fmt.Println()
		fmt.Println("Does not require a password.")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  sealbox status")
	case "diff":
		fmt.Println("sealbox diff")
		fmt.Println()
		fmt.Println("Compares decrypted vault contents with local files.")
		fmt.Println("Shows a unified diff for each modified file.")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  sealbox diff")
	case "passwd":
		fmt.Println("sealbox passwd")
		fmt.Println()
		fmt.Println("Changes the vault password.")
		fmt.Println("Requires both the current and new passwords.")
		fmt.Println("Re-encrypts all envelope files with a key derived from the new")
		fmt.Println("password and a fresh salt.")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  sealbox passwd")
	case "keyring":
		fmt.Println("sealbox keyring <save|rm|status>")
		fmt.Println()
		fmt.Println("Manages the vault password in the OS keyring.")
		fmt.Println("  save     Verify and store the password")
		fmt.Println("  rm       Remove the stored password")
		fmt.Println("  status   Report whether a password is stored")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  sealbox keyring save")
		fmt.Println("  sealbox keyring status")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}
