package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/illarion/sealbox/internal/crypto"
	"github.com/illarion/sealbox/internal/payload"
	"github.com/illarion/sealbox/internal/security"
	"github.com/illarion/sealbox/internal/session"
	"github.com/illarion/sealbox/internal/storage"
)

const (
	VaultFile           = ".sealbox"
	EnvelopeExt         = ".enc" // Suffix for envelope files written next to their sources
	DirPermSecure       = 0700   // Directory: owner rwx only
	FilePermSecure      = 0600   // File: owner rw only
	passwordCheckString = "sealbox-password-check"
)

var (
	ErrNotInitialized   = errors.New("sealbox not initialized")
	ErrAlreadyExists    = errors.New("sealbox already exists")
	ErrWrongPassword    = errors.New("wrong password")
	ErrSessionLocked    = errors.New("session has no active key")
	ErrNoEncryptedFiles = errors.New("no encrypted files in vault")
)

// Sealbox manages password-based encryption of files in a directory.
// Vault configuration (salt, iterations, manifest) lives in a .sealbox
// database; envelope files live on disk next to their plaintext sources.
type Sealbox struct {
	path      string // .sealbox database path
	validator *security.PathValidator
}

// New creates a Sealbox instance rooted at the given directory
func New(path string) (*Sealbox, error) {
	validator, err := security.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize path validator: %w", err)
	}

	return &Sealbox{
		path:      filepath.Join(path, VaultFile),
		validator: validator,
	}, nil
}

// Close releases resources held by the Sealbox instance
func (s *Sealbox) Close() error {
	if s.validator != nil {
		return s.validator.Close()
	}
	return nil
}

func (s *Sealbox) rootDir() string {
	return filepath.Dir(s.path)
}

// openStore opens the existing vault database. bolt.Open would create the
// file, so existence is checked first.
func (s *Sealbox) openStore() (*storage.Store, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, ErrNotInitialized
	}
	db, err := storage.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// Init creates a new .sealbox vault. The salt may be user-supplied (it must
// then be the same text on every machine that decrypts these files); when
// empty, a random salt is generated. Either way the salt is stored
// unencrypted in the vault config, since it is not a secret.
func (s *Sealbox) Init(ctx context.Context, password, salt []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := os.Stat(s.path); err == nil {
		return ErrAlreadyExists
	}

	db, err := storage.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	var kdf *crypto.KDF
	if len(salt) > 0 {
		kdf = &crypto.KDF{Salt: salt, Iterations: crypto.DefaultIters}
	} else {
		kdf, err = crypto.NewKDF()
		if err != nil {
			return fmt.Errorf("failed to create KDF: %w", err)
		}
	}

	if err := db.SetSalt(kdf.Salt); err != nil {
		return fmt.Errorf("failed to store salt: %w", err)
	}
	if err := db.SetIterations(uint32(kdf.Iterations)); err != nil {
		return fmt.Errorf("failed to store iterations: %w", err)
	}

	key, err := kdf.Derive(ctx, password)
	if err != nil {
		return fmt.Errorf("failed to derive key: %w", err)
	}

	return storeCheckValue(db, key)
}

// storeCheckValue encrypts a fixed check string so later sessions can
// distinguish a wrong password before touching any user files.
func storeCheckValue(db *storage.Store, key *crypto.Key) error {
	checksum := sha256.Sum256([]byte(passwordCheckString))
	envelope, err := crypto.Encrypt(key, hex.EncodeToString(checksum[:]))
	if err != nil {
		return fmt.Errorf("failed to encrypt check value: %w", err)
	}
	return db.StoreCheckValue(envelope)
}

// Unlock derives the vault key from the password and verifies it against
// the stored check value. On success it returns a session holding the
// single active key; deriving again replaces it.
func (s *Sealbox) Unlock(ctx context.Context, password []byte) (*session.Session, error) {
	db, err := s.openStore()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return s.unlockWithStore(ctx, db, password)
}

func (s *Sealbox) unlockWithStore(ctx context.Context, db *storage.Store, password []byte) (*session.Session, error) {
	salt, err := db.GetSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to get salt: %w", err)
	}

	iterations, err := db.GetIterations()
	if err != nil {
		return nil, fmt.Errorf("failed to get iterations: %w", err)
	}

	kdf := &crypto.KDF{
		Salt:       salt,
		Iterations: int(iterations),
	}

	key, err := kdf.Derive(ctx, password)
	if err != nil {
		return nil, err
	}

	checkEnvelope, err := db.GetCheckValue()
	if err != nil {
		key.Destroy()
		return nil, ErrWrongPassword
	}

	checkText, err := crypto.Decrypt(key, checkEnvelope)
	if err != nil {
		key.Destroy()
		return nil, ErrWrongPassword
	}

	checksum := sha256.Sum256([]byte(passwordCheckString))
	if !crypto.ConstantTimeCompare([]byte(checkText), []byte(hex.EncodeToString(checksum[:]))) {
		key.Destroy()
		return nil, ErrWrongPassword
	}

	sess := session.New()
	sess.SetKey(key)
	return sess, nil
}

// VerifyPassword checks if the password is correct for this vault
func (s *Sealbox) VerifyPassword(ctx context.Context, password []byte) error {
	sess, err := s.Unlock(ctx, password)
	if err != nil {
		return err
	}
	sess.Clear()
	return nil
}

// EncryptOptions controls EncryptFiles behavior
type EncryptOptions struct {
	Canonical bool // Normalize structured payloads to canonical JSON before encryption
	Remove    bool // Remove plaintext originals after encryption
}

// EncryptResult contains the results of an encrypt operation
type EncryptResult struct {
	Encrypted []string // Files encrypted into envelope files
	Skipped   []string // Files skipped
	Errors    []string // Files with errors
}

// EncryptFiles encrypts each matched file's text into a sibling envelope
// file and records a manifest entry for change tracking. The session key is
// captured once at call start.
func (s *Sealbox) EncryptFiles(ctx context.Context, sess *session.Session, patterns []string, opts EncryptOptions) (*EncryptResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := sess.Key()
	if key == nil {
		return nil, ErrSessionLocked
	}

	db, err := s.openStore()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	result := &EncryptResult{}

	for _, file := range s.expandPatterns(patterns) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.encryptSingleFile(db, key, file, opts, result)
	}

	if len(result.Encrypted) == 0 && len(result.Errors) == 0 {
		return nil, fmt.Errorf("no files matched")
	}

	if err := db.UpdateModified(); err != nil {
		fmt.Printf("warning: failed to update modification time: %v\n", err)
	}

	return result, nil
}

// encryptSingleFile validates and encrypts one file. Failures go into the
// result as errors; only fatal conditions would return from the caller.
func (s *Sealbox) encryptSingleFile(db *storage.Store, key *crypto.Key, file string, opts EncryptOptions, result *EncryptResult) {
	inputPath, err := s.normalizeToRelative(file)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		fmt.Printf("error: %v\n", err)
		return
	}

	validPath, err := s.validator.ValidateAndNormalize(inputPath)
	if err != nil {
		msg := fmt.Sprintf("invalid path %s: %v", file, err)
		result.Errors = append(result.Errors, msg)
		fmt.Printf("error: %s\n", msg)
		return
	}

	info, err := s.validator.StatInRoot(validPath)
	if err != nil {
		result.Skipped = append(result.Skipped, validPath)
		fmt.Printf("warning: cannot access %s: %v\n", validPath, err)
		return
	}
	if info.IsDir() {
		result.Skipped = append(result.Skipped, validPath)
		fmt.Printf("warning: skipping directory %s\n", validPath)
		return
	}

	data, err := s.validator.ReadFileInRoot(validPath)
	if err != nil {
		result.Skipped = append(result.Skipped, validPath)
		fmt.Printf("warning: cannot read %s: %v\n", validPath, err)
		return
	}
	defer crypto.ClearBytes(data)

	if !utf8.Valid(data) {
		msg := fmt.Sprintf("%s: not valid UTF-8 text", validPath)
		result.Errors = append(result.Errors, msg)
		fmt.Printf("error: %s\n", msg)
		return
	}

	text := string(data)
	if opts.Canonical {
		text, err = payload.Normalize(text)
		if err != nil {
			msg := fmt.Sprintf("%s: %v", validPath, err)
			result.Errors = append(result.Errors, msg)
			fmt.Printf("error: %s\n", msg)
			return
		}
	}

	envelope, err := crypto.Encrypt(key, text)
	if err != nil {
		msg := fmt.Sprintf("%s: cannot encrypt: %v", validPath, err)
		result.Errors = append(result.Errors, msg)
		fmt.Printf("error: %s\n", msg)
		return
	}

	envelopePath := validPath + EnvelopeExt
	if err := s.validator.WriteFileInRoot(envelopePath, []byte(envelope+"\n"), FilePermSecure); err != nil {
		msg := fmt.Sprintf("%s: cannot write envelope: %v", validPath, err)
		result.Errors = append(result.Errors, msg)
		fmt.Printf("error: %s\n", msg)
		return
	}

	hash := sha256.Sum256([]byte(text))
	entry := storage.ManifestEntry{
		Path:     validPath,
		Envelope: envelopePath,
		Size:     int64(len(text)),
		ModTime:  info.ModTime(),
		Hash:     hex.EncodeToString(hash[:]),
		Sealed:   time.Now(),
	}
	if err := db.UpdateManifest(entry); err != nil {
		msg := fmt.Sprintf("%s: failed to update manifest: %v", validPath, err)
		result.Errors = append(result.Errors, msg)
		fmt.Printf("error: %s\n", msg)
		return
	}

	if opts.Remove {
		if err := s.validator.RemoveInRoot(validPath); err != nil {
			fmt.Printf("warning: cannot remove %s: %v\n", validPath, err)
		} else {
			fmt.Printf("removed: %s\n", validPath)
		}
	}

	result.Encrypted = append(result.Encrypted, validPath)
	fmt.Printf("encrypted: %s -> %s\n", validPath, envelopePath)
}

// DecryptResult contains the results of a decrypt operation
type DecryptResult struct {
	Restored []string // Files written back from envelopes
	Skipped  []string // Files skipped due to conflicts or user choice
	Errors   []string // Files with errors
}

// DecryptFiles decrypts envelope files back into plaintext files, with
// conflict handling when a differing local file exists. Without patterns,
// every manifest entry is decrypted. Patterns may also name envelope files
// directly, including ones not present in the manifest.
func (s *Sealbox) DecryptFiles(ctx context.Context, sess *session.Session, patterns []string, strategy ConflictStrategy) (*DecryptResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := sess.Key()
	if key == nil {
		return nil, ErrSessionLocked
	}

	db, err := s.openStore()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	targets, err := s.resolveDecryptTargets(db, patterns)
	if err != nil {
		return nil, err
	}

	result := &DecryptResult{}

	for _, entry := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.decryptSingleFile(key, entry, strategy, result)
	}

	return result, nil
}

// resolveDecryptTargets maps patterns to manifest entries, falling back to
// ad-hoc envelope files for patterns the manifest doesn't know about.
func (s *Sealbox) resolveDecryptTargets(db *storage.Store, patterns []string) ([]storage.ManifestEntry, error) {
	entries, err := db.GetManifest()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	if len(patterns) == 0 {
		if len(entries) == 0 {
			return nil, ErrNoEncryptedFiles
		}
		return entries, nil
	}

	var targets []storage.ManifestEntry
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		normalized := filepath.ToSlash(strings.TrimSuffix(pattern, EnvelopeExt))
		matched := false

		for _, entry := range entries {
			if seen[entry.Path] {
				continue
			}
			if entry.Path == normalized || globMatch(normalized, entry.Path) {
				targets = append(targets, entry)
				seen[entry.Path] = true
				matched = true
			}
		}
		if matched {
			continue
		}

		// Not in the manifest: accept a direct envelope file path.
		if !strings.HasSuffix(pattern, EnvelopeExt) {
			continue
		}
		envPath, err := s.normalizeToRelative(pattern)
		if err != nil {
			continue
		}
		validEnv, err := s.validator.ValidateAndNormalize(envPath)
		if err != nil {
			continue
		}
		if _, err := s.validator.StatInRoot(validEnv); err != nil {
			continue
		}
		path := strings.TrimSuffix(validEnv, EnvelopeExt)
		if !seen[path] {
			targets = append(targets, storage.ManifestEntry{Path: path, Envelope: validEnv})
			seen[path] = true
		}
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("no encrypted files match the specified patterns")
	}
	return targets, nil
}

func globMatch(pattern, path string) bool {
	matched, _ := filepath.Match(pattern, path)
	return matched
}

func (s *Sealbox) decryptSingleFile(key *crypto.Key, entry storage.ManifestEntry, strategy ConflictStrategy, result *DecryptResult) {
	validPath, err := s.validator.ValidateExistingPath(entry.Path)
	if err != nil {
		msg := fmt.Sprintf("%s: invalid path from manifest: %v", entry.Path, err)
		result.Errors = append(result.Errors, msg)
		fmt.Printf("error: %s\n", msg)
		return
	}

	envData, err := s.validator.ReadFileInRoot(entry.Envelope)
	if err != nil {
		msg := fmt.Sprintf("%s: cannot read envelope: %v", validPath, err)
		result.Errors = append(result.Errors, msg)
		fmt.Printf("error: %s\n", msg)
		return
	}

	text, err := crypto.Decrypt(key, strings.TrimSpace(string(envData)))
	if err != nil {
		// Wrong key and corrupt envelope are distinct conditions; keep
		// them apart so the user knows which problem they have.
		var msg string
		switch {
		case errors.Is(err, crypto.ErrAuthFailed):
			msg = fmt.Sprintf("%s: wrong key or tampered data", validPath)
		case errors.Is(err, crypto.ErrMalformedEnvelope):
			msg = fmt.Sprintf("%s: corrupt envelope: %v", validPath, err)
		default:
			msg = fmt.Sprintf("%s: cannot decrypt: %v", validPath, err)
		}
		result.Errors = append(result.Errors, msg)
		fmt.Printf("error: %s\n", msg)
		return
	}
	vaultData := []byte(text)
	defer crypto.ClearBytes(vaultData)

	// Integrity check against the manifest hash, when we have one.
	if entry.Hash != "" {
		hash := sha256.Sum256(vaultData)
		if hex.EncodeToString(hash[:]) != entry.Hash {
			msg := fmt.Sprintf("%s: failed integrity check", validPath)
			result.Errors = append(result.Errors, msg)
			fmt.Printf("error: %s\n", msg)
			return
		}
	}

	localData, err := s.validator.ReadFileInRoot(validPath)
	fileExists := err == nil
	if fileExists {
		defer crypto.ClearBytes(localData)

		if CompareFiles(localData, vaultData) {
			result.Skipped = append(result.Skipped, validPath)
			fmt.Printf("skipped: %s (unchanged)\n", validPath)
			return
		}

		conflict, err := HandleConflict(validPath, localData, vaultData, strategy)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			fmt.Printf("error: %s\n", err.Error())
			return
		}

		switch conflict {
		case ResolutionKeepLocal, ResolutionSkip:
			result.Skipped = append(result.Skipped, validPath)
			fmt.Printf("skipped: %s (kept local version)\n", validPath)
			return
		case ResolutionKeepBoth:
			vaultCopy := validPath + ".from-vault"
			if err := s.validator.WriteFileInRoot(vaultCopy, vaultData, FilePermSecure); err != nil {
				msg := fmt.Sprintf("%s: cannot write vault copy: %v", vaultCopy, err)
				result.Errors = append(result.Errors, msg)
				fmt.Printf("error: %s\n", msg)
				return
			}
			result.Restored = append(result.Restored, vaultCopy)
			fmt.Printf("saved: %s (vault version)\n", vaultCopy)
			result.Skipped = append(result.Skipped, validPath)
			fmt.Printf("skipped: %s (kept local version)\n", validPath)
			return
		case ResolutionUseVault:
			// Fall through to write
		}
	}

	if dir := filepath.Dir(validPath); dir != "." && dir != "/" {
		if err := s.validator.MkdirAllInRoot(dir, DirPermSecure); err != nil {
			msg := fmt.Sprintf("%s: cannot create directory: %v", validPath, err)
			result.Errors = append(result.Errors, msg)
			fmt.Printf("error: %s\n", msg)
			return
		}
	}

	if err := s.validator.WriteFileInRoot(validPath, vaultData, FilePermSecure); err != nil {
		msg := fmt.Sprintf("%s: cannot write file: %v", validPath, err)
		result.Errors = append(result.Errors, msg)
		fmt.Printf("error: %s\n", msg)
		return
	}

	result.Restored = append(result.Restored, validPath)
	fmt.Printf("decrypted: %s\n", validPath)
}

// Diff prints a unified diff between decrypted envelope contents and local
// plaintext files for every manifest entry
func (s *Sealbox) Diff(ctx context.Context, sess *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := sess.Key()
	if key == nil {
		return ErrSessionLocked
	}

	db, err := s.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.GetManifest()
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	hasChanges := false

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		validPath, err := s.validator.ValidateExistingPath(entry.Path)
		if err != nil {
			continue
		}

		localData, err := s.validator.ReadFileInRoot(validPath)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Printf("File not in working directory: %s\n", validPath)
			} else {
				fmt.Printf("error: cannot read %s: %v\n", validPath, err)
			}
			continue
		}

		envData, err := s.validator.ReadFileInRoot(entry.Envelope)
		if err != nil {
			crypto.ClearBytes(localData)
			fmt.Printf("error: cannot read envelope for %s: %v\n", validPath, err)
			continue
		}

		text, err := crypto.Decrypt(key, strings.TrimSpace(string(envData)))
		if err != nil {
			crypto.ClearBytes(localData)
			fmt.Printf("error: cannot decrypt %s: %v\n", validPath, err)
			continue
		}
		vaultData := []byte(text)

		diff, err := GenerateUnifiedDiff(validPath, vaultData, localData)
		if err != nil {
			crypto.ClearBytes(vaultData)
			crypto.ClearBytes(localData)
			fmt.Printf("error: cannot generate diff for %s: %v\n", validPath, err)
			continue
		}

		if diff != "" {
			fmt.Print(diff)
			hasChanges = true
		}

		crypto.ClearBytes(vaultData)
		crypto.ClearBytes(localData)
	}

	if !hasChanges {
		fmt.Println("No changes detected")
	}

	return nil
}

// FileStatus represents the status of one encrypted file
type FileStatus struct {
	Path   string
	Status string
}

// StatusInfo contains vault status information
type StatusInfo struct {
	Files          []FileStatus
	LastSealed     time.Time
	TrackedCount   int
	ModifiedCount  int
	UnchangedCount int
	MissingCount   int
	TotalSize      int64
	Algorithm      string
	KDFIterations  uint32
	Version        int
}

// Status returns the current vault status (no password required)
func (s *Sealbox) Status(ctx context.Context) (*StatusInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db, err := s.openStore()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	lastModified, err := db.GetModified()
	if err != nil {
		lastModified = time.Time{}
	}

	iterations, err := db.GetIterations()
	if err != nil {
		iterations = 0
	}

	status := &StatusInfo{
		Files:         make([]FileStatus, 0),
		LastSealed:    lastModified,
		Algorithm:     "AES-256-GCM",
		KDFIterations: iterations,
		Version:       1,
	}

	entries, err := db.GetManifest()
	if err != nil {
		return status, nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Skip tampered manifest entries
		validPath, err := s.validator.ValidateExistingPath(entry.Path)
		if err != nil {
			continue
		}

		fs := FileStatus{Path: validPath}
		status.TrackedCount++
		status.TotalSize += entry.Size

		if _, err := s.validator.StatInRoot(entry.Envelope); err != nil {
			fs.Status = "missing envelope"
			status.MissingCount++
			status.Files = append(status.Files, fs)
			continue
		}

		content, err := s.validator.ReadFileInRoot(validPath)
		if err != nil {
			fs.Status = "encrypted only"
			status.UnchangedCount++
			status.Files = append(status.Files, fs)
			continue
		}

		localHash := sha256.Sum256(content)
		crypto.ClearBytes(content)

		if hex.EncodeToString(localHash[:]) != entry.Hash {
			fs.Status = "modified"
			status.ModifiedCount++
		} else {
			fs.Status = "unchanged"
			status.UnchangedCount++
		}
		status.Files = append(status.Files, fs)
	}

	return status, nil
}

// RemoveFiles removes files from the manifest and optionally deletes their
// envelope files. No password is required; nothing here needs the key.
func (s *Sealbox) RemoveFiles(ctx context.Context, patterns []string, deleteEnvelopes bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	db, err := s.openStore()
	if err != nil {
		return 0, err
	}
	defer db.Close()

	entries, err := db.GetManifest()
	if err != nil {
		return 0, fmt.Errorf("failed to read manifest: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		match := false
		for _, pattern := range patterns {
			normalized := filepath.ToSlash(pattern)
			if entry.Path == normalized || globMatch(normalized, entry.Path) {
				match = true
				break
			}
		}
		if !match {
			continue
		}

		if err := db.RemoveFromManifest(entry.Path); err != nil {
			fmt.Printf("warning: failed to remove %s from manifest: %v\n", entry.Path, err)
			continue
		}
		if deleteEnvelopes {
			if err := s.validator.RemoveInRoot(entry.Envelope); err != nil {
				fmt.Printf("warning: cannot remove %s: %v\n", entry.Envelope, err)
			}
		}
		removed++
		fmt.Printf("removed: %s from vault\n", entry.Path)
	}

	if removed > 0 {
		if err := db.UpdateModified(); err != nil {
			fmt.Printf("warning: failed to update modification time: %v\n", err)
		}
	}

	return removed, nil
}

// ChangePassword re-keys the vault: every envelope file is decrypted with
// the current key and re-encrypted under a key derived from the new
// password and a fresh salt.
func (s *Sealbox) ChangePassword(ctx context.Context, currentPassword, newPassword []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db, err := s.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	sess, err := s.unlockWithStore(ctx, db, currentPassword)
	if err != nil {
		return err
	}
	defer sess.Clear()
	currentKey := sess.Key()

	entries, err := db.GetManifest()
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	// Phase 1: decrypt everything with the current key before touching
	// anything, so a wrong envelope aborts with the vault intact.
	type pendingFile struct {
		entry storage.ManifestEntry
		text  string
	}
	var pending []pendingFile
	defer func() {
		for i := range pending {
			pending[i].text = ""
		}
	}()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		envData, err := s.validator.ReadFileInRoot(entry.Envelope)
		if err != nil {
			return fmt.Errorf("cannot read envelope for %s: %w", entry.Path, err)
		}

		text, err := crypto.Decrypt(currentKey, strings.TrimSpace(string(envData)))
		if err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", entry.Path, err)
		}
		pending = append(pending, pendingFile{entry: entry, text: text})
	}

	iterations, err := db.GetIterations()
	if err != nil {
		iterations = crypto.DefaultIters
	}

	newKDF, err := crypto.NewKDF()
	if err != nil {
		return fmt.Errorf("failed to create new KDF: %w", err)
	}
	newKDF.Iterations = int(iterations)

	newKey, err := newKDF.Derive(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("failed to derive new key: %w", err)
	}

	if err := db.SetSalt(newKDF.Salt); err != nil {
		return fmt.Errorf("failed to update salt: %w", err)
	}
	if err := db.SetIterations(uint32(newKDF.Iterations)); err != nil {
		return fmt.Errorf("failed to update iterations: %w", err)
	}
	if err := storeCheckValue(db, newKey); err != nil {
		return err
	}

	// Phase 2: re-encrypt every envelope under the new key
	for _, p := range pending {
		envelope, err := crypto.Encrypt(newKey, p.text)
		if err != nil {
			return fmt.Errorf("failed to re-encrypt %s: %w", p.entry.Path, err)
		}
		if err := s.validator.WriteFileInRoot(p.entry.Envelope, []byte(envelope+"\n"), FilePermSecure); err != nil {
			return fmt.Errorf("failed to write envelope for %s: %w", p.entry.Path, err)
		}

		p.entry.Sealed = time.Now()
		if err := db.UpdateManifest(p.entry); err != nil {
			return fmt.Errorf("failed to update manifest for %s: %w", p.entry.Path, err)
		}
	}

	return db.UpdateModified()
}

// GetVaultID retrieves the vault ID from storage
func (s *Sealbox) GetVaultID() (string, error) {
	db, err := s.openStore()
	if err != nil {
		return "", err
	}
	defer db.Close()

	return db.GetVaultID()
}

// GetOrCreateVaultID retrieves existing vault ID or generates a new one
func (s *Sealbox) GetOrCreateVaultID() (string, error) {
	db, err := s.openStore()
	if err != nil {
		return "", err
	}
	defer db.Close()

	return db.GetOrCreateVaultID()
}

// normalizeToRelative converts an absolute path to relative from the vault
// root. Returns the path unchanged if already relative, or error if outside.
func (s *Sealbox) normalizeToRelative(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return path, nil
	}
	relPath, err := filepath.Rel(s.rootDir(), path)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return "", fmt.Errorf("path %s is outside vault root", path)
	}
	return relPath, nil
}

// expandPatterns globs patterns relative to the vault root, falling back to
// the literal path when nothing matches
func (s *Sealbox) expandPatterns(patterns []string) []string {
	var files []string
	for _, pattern := range patterns {
		absPattern := pattern
		if !filepath.IsAbs(pattern) {
			absPattern = filepath.Join(s.rootDir(), pattern)
		}

		matches, err := filepath.Glob(absPattern)
		if err != nil || len(matches) == 0 {
			matches = []string{absPattern}
		}
		files = append(files, matches...)
	}
	return files
}
