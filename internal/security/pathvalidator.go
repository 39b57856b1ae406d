package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathEscapes  = errors.New("path escapes vault root")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
)

// PathValidator provides path validation and file operations confined to
// the vault root using os.Root. The manifest bucket is stored unencrypted,
// so paths read back from it must be treated as untrusted.
type PathValidator struct {
	root     *os.Root
	rootPath string
}

// New creates a PathValidator for the vault root at the given path.
func New(rootPath string) (*PathValidator, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault root: %w", err)
	}

	return &PathValidator{
		root:     root,
		rootPath: absPath,
	}, nil
}

// Close releases resources held by the PathValidator
func (pv *PathValidator) Close() error {
	if pv.root != nil {
		return pv.root.Close()
	}
	return nil
}

// ValidateAndNormalize validates a user-provided path and returns a
// normalized relative path (forward slashes) suitable for storage. It
// rejects empty paths, absolute paths, paths that escape the vault root,
// and reserved names.
func (pv *PathValidator) ValidateAndNormalize(userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}

	if !filepath.IsLocal(userPath) {
		if filepath.IsAbs(userPath) {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, userPath)
		}
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
	}

	cleanPath := filepath.Clean(userPath)
	if !filepath.IsLocal(cleanPath) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, cleanPath)
	}

	// Containment double check after lexical cleaning
	absPath := filepath.Join(pv.rootPath, cleanPath)
	relPath, err := filepath.Rel(pv.rootPath, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if strings.HasPrefix(relPath, "..") || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
	}

	return filepath.ToSlash(relPath), nil
}

// ValidateExistingPath validates a path previously stored in the manifest,
// applying the same rules as ValidateAndNormalize. Used when reading the
// manifest back, to reject tampered entries.
func (pv *PathValidator) ValidateExistingPath(storedPath string) (string, error) {
	return pv.ValidateAndNormalize(filepath.FromSlash(storedPath))
}

// WriteFileInRoot writes a file within the vault root via os.Root, so the
// write cannot land outside even if the path contains .. segments.
func (pv *PathValidator) WriteFileInRoot(path string, data []byte, perm os.FileMode) error {
	platformPath := filepath.FromSlash(path)
	if _, err := pv.ValidateAndNormalize(platformPath); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.WriteFile(platformPath, data, perm)
}

// MkdirAllInRoot creates directories within the vault root via os.Root
func (pv *PathValidator) MkdirAllInRoot(path string, perm os.FileMode) error {
	platformPath := filepath.FromSlash(path)
	if _, err := pv.ValidateAndNormalize(platformPath); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.MkdirAll(platformPath, perm)
}

// ReadFileInRoot reads a file within the vault root via os.Root
func (pv *PathValidator) ReadFileInRoot(path string) ([]byte, error) {
	platformPath := filepath.FromSlash(path)
	if _, err := pv.ValidateAndNormalize(platformPath); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.ReadFile(platformPath)
}

// StatInRoot stats a file within the vault root via os.Root
func (pv *PathValidator) StatInRoot(path string) (os.FileInfo, error) {
	platformPath := filepath.FromSlash(path)
	if _, err := pv.ValidateAndNormalize(platformPath); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.Stat(platformPath)
}

// RemoveInRoot removes a file within the vault root via os.Root
func (pv *PathValidator) RemoveInRoot(path string) error {
	platformPath := filepath.FromSlash(path)
	if _, err := pv.ValidateAndNormalize(platformPath); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.Remove(platformPath)
}
