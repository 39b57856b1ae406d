package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/illarion/sealbox/internal/session"
)

func newTestVault(t *testing.T) (*Sealbox, string) {
	t.Helper()

	dir := t.TempDir()
	box, err := New(dir)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { box.Close() })

	return box, dir
}

func initAndUnlock(t *testing.T, box *Sealbox, password string) *session.Session {
	t.Helper()

	ctx := context.Background()
	if err := box.Init(ctx, []byte(password), nil); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	sess, err := box.Unlock(ctx, []byte(password))
	if err != nil {
		t.Fatalf("Unlock() failed: %v", err)
	}
	t.Cleanup(sess.Clear)

	return sess
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	return string(data)
}

func TestInitAndUnlock(t *testing.T) {
	box, _ := newTestVault(t)
	ctx := context.Background()

	if err := box.Init(ctx, []byte("secret"), nil); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	if err := box.Init(ctx, []byte("secret"), nil); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("second Init() error = %v, want ErrAlreadyExists", err)
	}

	sess, err := box.Unlock(ctx, []byte("secret"))
	if err != nil {
		t.Fatalf("Unlock() with correct password failed: %v", err)
	}
	if !sess.HasKey() {
		t.Error("session should hold a key after unlock")
	}
	sess.Clear()

	if _, err := box.Unlock(ctx, []byte("wrong")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Unlock() with wrong password error = %v, want ErrWrongPassword", err)
	}
}

func TestInitWithUserSalt(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	ctx := context.Background()

	boxA, err := New(dirA)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer boxA.Close()

	boxB, err := New(dirB)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer boxB.Close()

	salt := []byte("shared-team-salt")
	if err := boxA.Init(ctx, []byte("secret"), salt); err != nil {
		t.Fatalf("Init() A failed: %v", err)
	}
	if err := boxB.Init(ctx, []byte("secret"), salt); err != nil {
		t.Fatalf("Init() B failed: %v", err)
	}

	sessA, err := boxA.Unlock(ctx, []byte("secret"))
	if err != nil {
		t.Fatalf("Unlock() A failed: %v", err)
	}
	defer sessA.Clear()

	writeFile(t, dirA, "app.env", "TOKEN=abc\n")
	if _, err := boxA.EncryptFiles(ctx, sessA, []string{"app.env"}, EncryptOptions{}); err != nil {
		t.Fatalf("EncryptFiles() failed: %v", err)
	}

	// An envelope sealed in vault A opens in vault B because both vaults
	// share the salt and password.
	envelope := readFile(t, dirA, "app.env.enc")
	writeFile(t, dirB, "app.env.enc", envelope)

	sessB, err := boxB.Unlock(ctx, []byte("secret"))
	if err != nil {
		t.Fatalf("Unlock() B failed: %v", err)
	}
	defer sessB.Clear()

	result, err := boxB.DecryptFiles(ctx, sessB, []string{"app.env.enc"}, StrategyUseVault)
	if err != nil {
		t.Fatalf("DecryptFiles() failed: %v", err)
	}
	if len(result.Restored) != 1 {
		t.Fatalf("Restored = %v, want one file", result.Restored)
	}
	if got := readFile(t, dirB, "app.env"); got != "TOKEN=abc\n" {
		t.Errorf("decrypted content = %q, want %q", got, "TOKEN=abc\n")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box, dir := newTestVault(t)
	ctx := context.Background()
	sess := initAndUnlock(t, box, "secret")

	original := "DATABASE_URL=postgres://localhost/app\nAPI_KEY=xyz\n"
	writeFile(t, dir, "config.env", original)

	result, err := box.EncryptFiles(ctx, sess, []string{"config.env"}, EncryptOptions{})
	if err != nil {
		t.Fatalf("EncryptFiles() failed: %v", err)
	}
	if len(result.Encrypted) != 1 || result.Encrypted[0] != "config.env" {
		t.Fatalf("Encrypted = %v, want [config.env]", result.Encrypted)
	}

	envelope := readFile(t, dir, "config.env.enc")
	if envelope == "" {
		t.Fatal("envelope file is empty")
	}

	if err := os.Remove(filepath.Join(dir, "config.env")); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	dec, err := box.DecryptFiles(ctx, sess, nil, StrategyAsk)
	if err != nil {
		t.Fatalf("DecryptFiles() failed: %v", err)
	}
	if len(dec.Restored) != 1 {
		t.Fatalf("Restored = %v, want one file", dec.Restored)
	}
	if got := readFile(t, dir, "config.env"); got != original {
		t.Errorf("round trip content = %q, want %q", got, original)
	}
}

func TestEncryptCanonical(t *testing.T) {
	box, dir := newTestVault(t)
	ctx := context.Background()
	sess := initAndUnlock(t, box, "secret")

	writeFile(t, dir, "settings.json", "{\"zeta\": 2, \"alpha\": 1}\n")

	_, err := box.EncryptFiles(ctx, sess, []string{"settings.json"}, EncryptOptions{Canonical: true})
	if err != nil {
		t.Fatalf("EncryptFiles() failed: %v", err)
	}

	if err := os.Remove(filepath.Join(dir, "settings.json")); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if _, err := box.DecryptFiles(ctx, sess, nil, StrategyAsk); err != nil {
		t.Fatalf("DecryptFiles() failed: %v", err)
	}

	if got := readFile(t, dir, "settings.json"); got != `{"alpha":1,"zeta":2}` {
		t.Errorf("canonical content = %q, want sorted compact JSON", got)
	}
}

func TestEncryptCanonicalRejectsNonJSON(t *testing.T) {
	box, dir := newTestVault(t)
	ctx := context.Background()
	sess := initAndUnlock(t, box, "secret")

	writeFile(t, dir, "notes.txt", "just some text\n")

	result, err := box.EncryptFiles(ctx, sess, []string{"notes.txt"}, EncryptOptions{Canonical: true})
	if err == nil && len(result.Errors) == 0 {
		t.Error("canonical encryption of non-JSON should report an error")
	}
}

func TestEncryptRemovesOriginal(t *testing.T) {
	box, dir := newTestVault(t)
	ctx := context.Background()
	sess := initAndUnlock(t, box, "secret")

	writeFile(t, dir, "secrets.env", "KEY=value\n")

	_, err := box.EncryptFiles(ctx, sess, []string{"secrets.env"}, EncryptOptions{Remove: true})
	if err != nil {
		t.Fatalf("EncryptFiles() failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "secrets.env")); !os.IsNotExist(err) {
		t.Error("plaintext should be removed after encryption with Remove")
	}
	if _, err := os.Stat(filepath.Join(dir, "secrets.env.enc")); err != nil {
		t.Errorf("envelope file should exist: %v", err)
	}
}

func TestEncryptRejectsBinary(t *testing.T) {
	box, dir := newTestVault(t)
	ctx := context.Background()
	sess := initAndUnlock(t, box, "secret")

	path := filepath.Join(dir, "blob.bin")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x41}, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	result, err := box.EncryptFiles(ctx, sess, []string{"blob.bin"}, EncryptOptions{})
	if err == nil && len(result.Errors) == 0 {
		t.Error("encrypting non-UTF-8 content should report an error")
	}
}

func TestEncryptSubdirectory(t *testing.T) {
	box, dir := newTestVault(t)
	ctx := context.Background()
	sess := initAndUnlock(t, box, "secret")

	writeFile(t, dir, "deploy/prod.env", "HOST=prod\n")

	result, err := box.EncryptFiles(ctx, sess, []string{"deploy/prod.env"}, EncryptOptions{})
	if err != nil {
		t.Fatalf("EncryptFiles() failed: %v", err)
	}
	if len(result.Encrypted) != 1 || result.Encrypted[0] != "deploy/prod.env" {
		t.Fatalf("Encrypted = %v, want [deploy/prod.env]", result.Encrypted)
	}

	if err := os.Remove(filepath.Join(dir, "deploy", "prod.env")); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	dec, err := box.DecryptFiles(ctx, sess, []string{"deploy/prod.env"}, StrategyAsk)
	if err != nil {
		t.Fatalf("DecryptFiles() failed: %v", err)
	}
	if len(dec.Restored) != 1 {
		t.Fatalf("Restored = %v, want [deploy/prod.env]", dec.Restored)
	}
	if got := readFile(t, dir, "deploy/prod.env"); got != "HOST=prod\n" {
		t.Errorf("restored content = %q, want %q", got, "HOST=prod\n")
	}
}

func TestDecryptConflictStrategies(t *testing.T) {
	tests := []struct {
		name        string
		strategy    ConflictStrategy
		wantContent string
		wantVaultAs string
	}{
		{"keep local", StrategyKeepLocal, "local edit\n", ""},
		{"use vault", StrategyUseVault, "vault version\n", ""},
		{"keep both", StrategyKeepBoth, "local edit\n", "vault version\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, dir := newTestVault(t)
			ctx := context.Background()
			sess := initAndUnlock(t, box, "secret")

			writeFile(t, dir, "app.conf", "vault version\n")
			if _, err := box.EncryptFiles(ctx, sess, []string{"app.conf"}, EncryptOptions{}); err != nil {
				t.Fatalf("EncryptFiles() failed: %v", err)
			}

			writeFile(t, dir, "app.conf", "local edit\n")

			if _, err := box.DecryptFiles(ctx, sess, nil, tt.strategy); err != nil {
				t.Fatalf("DecryptFiles() failed: %v", err)
			}

			if got := readFile(t, dir, "app.conf"); got != tt.wantContent {
				t.Errorf("app.conf = %q, want %q", got, tt.wantContent)
			}

			vaultCopy := filepath.Join(dir, "app.conf.from-vault")
			if tt.wantVaultAs == "" {
				if _, err := os.Stat(vaultCopy); !os.IsNotExist(err) {
					t.Error("vault copy should not exist")
				}
			} else if got := readFile(t, dir, "app.conf.from-vault"); got != tt.wantVaultAs {
				t.Errorf("vault copy = %q, want %q", got, tt.wantVaultAs)
			}
		})
	}
}

func TestDecryptUnchangedSkips(t *testing.T) {
	box, dir := newTestVault(t)
	ctx := context.Background()
	sess := initAndUnlock(t, box, "secret")

	writeFile(t, dir, "same.env", "UNCHANGED=1\n")
	if _, err := box.EncryptFiles(ctx, sess, []string{"same.env"}, EncryptOptions{}); err != nil {
		t.Fatalf("EncryptFiles() failed: %v", err)
	}

	result, err := box.DecryptFiles(ctx, sess, nil, StrategyAsk)
	if err != nil {
		t.Fatalf("DecryptFiles() failed: %v", err)
	}
	if len(result.Skipped) != 1 || len(result.Restored) != 0 {
		t.Errorf("result = restored %v skipped %v, want one skip", result.Restored, result.Skipped)
	}
}

func TestDecryptCorruptEnvelope(t *testing.T) {
	box, dir := newTestVault(t)
	ctx := context.Background()
	sess := initAndUnlock(t, box, "secret")

	writeFile(t, dir, "x.env", "A=1\n")
	if _, err := box.EncryptFiles(ctx, sess, []string{"x.env"}, EncryptOptions{Remove: true}); err != nil {
		t.Fatalf("EncryptFiles() failed: %v", err)
	}

	writeFile(t, dir, "x.env.enc", "this is not an envelope")

	result, err := box.DecryptFiles(ctx, sess, nil, StrategyAsk)
	if err != nil {
		t.Fatalf("DecryptFiles() failed: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %v, want one corrupt-envelope error", result.Errors)
	}
	if _, err := os.Stat(filepath.Join(dir, "x.env")); !os.IsNotExist(err) {
		t.Error("no plaintext should be written for a corrupt envelope")
	}
}

func TestDecryptNoFiles(t *testing.T) {
	box, _ := newTestVault(t)
	ctx := context.Background()
	sess := initAndUnlock(t, box, "secret")

	if _, err := box.DecryptFiles(ctx, sess, nil, StrategyAsk); !errors.Is(err, ErrNoEncryptedFiles) {
		t.Errorf("DecryptFiles() on empty vault error = %v, want ErrNoEncryptedFiles", err)
	}
}

func TestStatus(t *testing.T) {
	box, dir := newTestVault(t)
	ctx := context.Background()
	sess := initAndUnlock(t, box, "secret")

	writeFile(t, dir, "a.env", "A=1\n")
	writeFile(t, dir, "b.env", "B=2\n")
	if _, err := box.EncryptFiles(ctx, sess, []string{"a.env", "b.env"}, EncryptOptions{}); err != nil {
		t.Fatalf("EncryptFiles() failed: %v", err)
	}

	writeFile(t, dir, "b.env", "B=changed\n")

	status, err := box.Status(ctx)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}

	if status.TrackedCount != 2 {
		t.Errorf("TrackedCount = %d, want 2", status.TrackedCount)
	}
	if status.ModifiedCount != 1 {
		t.Errorf("ModifiedCount = %d, want 1", status.ModifiedCount)
	}
	if status.UnchangedCount != 1 {
		t.Errorf("UnchangedCount = %d, want 1", status.UnchangedCount)
	}
	if status.KDFIterations != 100000 {
		t.Errorf("KDFIterations = %d, want 100000", status.KDFIterations)
	}
	if status.Algorithm != "AES-256-GCM" {
		t.Errorf("Algorithm = %q", status.Algorithm)
	}
}

func TestStatusNotInitialized(t *testing.T) {
	box, _ := newTestVault(t)

	if _, err := box.Status(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Status() error = %v, want ErrNotInitialized", err)
	}
}

func TestRemoveFiles(t *testing.T) {
	box, dir := newTestVault(t)
	ctx := context.Background()
	sess := initAndUnlock(t, box, "secret")

	writeFile(t, dir, "old.env", "GONE=1\n")
	if _, err := box.EncryptFiles(ctx, sess, []string{"old.env"}, EncryptOptions{}); err != nil {
		t.Fatalf("EncryptFiles() failed: %v", err)
	}

	removed, err := box.RemoveFiles(ctx, []string{"old.env"}, true)
	if err != nil {
		t.Fatalf("RemoveFiles() failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, err := os.Stat(filepath.Join(dir, "old.env.enc")); !os.IsNotExist(err) {
		t.Error("envelope should be deleted")
	}

	status, err := box.Status(ctx)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if status.TrackedCount != 0 {
		t.Errorf("TrackedCount = %d, want 0 after removal", status.TrackedCount)
	}
}

func TestChangePassword(t *testing.T) {
	box, dir := newTestVault(t)
	ctx := context.Background()
	sess := initAndUnlock(t, box, "old-password")

	original := "SECRET=rotate-me\n"
	writeFile(t, dir, "rotate.env", original)
	if _, err := box.EncryptFiles(ctx, sess, []string{"rotate.env"}, EncryptOptions{Remove: true}); err != nil {
		t.Fatalf("EncryptFiles() failed: %v", err)
	}

	if err := box.ChangePassword(ctx, []byte("old-password"), []byte("new-password")); err != nil {
		t.Fatalf("ChangePassword() failed: %v", err)
	}

	if _, err := box.Unlock(ctx, []byte("old-password")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("old password still unlocks after change: %v", err)
	}

	newSess, err := box.Unlock(ctx, []byte("new-password"))
	if err != nil {
		t.Fatalf("Unlock() with new password failed: %v", err)
	}
	defer newSess.Clear()

	result, err := box.DecryptFiles(ctx, newSess, nil, StrategyAsk)
	if err != nil {
		t.Fatalf("DecryptFiles() failed: %v", err)
	}
	if len(result.Restored) != 1 {
		t.Fatalf("Restored = %v, want one file", result.Restored)
	}
	if got := readFile(t, dir, "rotate.env"); got != original {
		t.Errorf("content after rotation = %q, want %q", got, original)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	box, _ := newTestVault(t)
	ctx := context.Background()
	initAndUnlock(t, box, "secret")

	err := box.ChangePassword(ctx, []byte("wrong"), []byte("new"))
	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("ChangePassword() error = %v, want ErrWrongPassword", err)
	}
}

func TestVerifyPassword(t *testing.T) {
	box, _ := newTestVault(t)
	ctx := context.Background()
	initAndUnlock(t, box, "secret")

	if err := box.VerifyPassword(ctx, []byte("secret")); err != nil {
		t.Errorf("VerifyPassword() with correct password failed: %v", err)
	}
	if err := box.VerifyPassword(ctx, []byte("nope")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("VerifyPassword() error = %v, want ErrWrongPassword", err)
	}
}

func TestVaultID(t *testing.T) {
	box, _ := newTestVault(t)
	initAndUnlock(t, box, "secret")

	id, err := box.GetOrCreateVaultID()
	if err != nil {
		t.Fatalf("GetOrCreateVaultID() failed: %v", err)
	}
	if len(id) != 32 {
		t.Errorf("vault ID length = %d, want 32 hex chars", len(id))
	}

	again, err := box.GetVaultID()
	if err != nil {
		t.Fatalf("GetVaultID() failed: %v", err)
	}
	if again != id {
		t.Errorf("vault ID changed between calls: %q vs %q", id, again)
	}
}

func TestEncryptRequiresKey(t *testing.T) {
	box, dir := newTestVault(t)
	ctx := context.Background()
	initAndUnlock(t, box, "secret")

	writeFile(t, dir, "locked.env", "X=1\n")

	empty := session.New()
	if _, err := box.EncryptFiles(ctx, empty, []string{"locked.env"}, EncryptOptions{}); !errors.Is(err, ErrSessionLocked) {
		t.Errorf("EncryptFiles() with empty session error = %v, want ErrSessionLocked", err)
	}
}
