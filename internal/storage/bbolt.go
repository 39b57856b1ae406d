package storage

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/illarion/sealbox/internal/crypto"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket  = []byte("config")  // KDF params (salt, iterations), timestamps - unencrypted
	IndexBucket   = []byte("index")   // Public manifest of encrypted files - unencrypted
	PrivateBucket = []byte("private") // Encrypted password-check value
)

// Config keys
var (
	ConfigVersion  = []byte("version")
	ConfigCreated  = []byte("created")
	ConfigModified = []byte("modified")
	ConfigSalt     = []byte("salt")
	ConfigIters    = []byte("iterations")
	ConfigVaultID  = []byte("vault_id")
)

// Store provides BBolt-based storage for a sealbox vault
type Store struct {
	db *bolt.DB
}

// Open opens or creates a vault database
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize creates the bucket structure for a new vault
func (s *Store) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, IndexBucket, PrivateBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}

		now := time.Now()
		created, _ := now.MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// IsInitialized checks if the database has been initialized
func (s *Store) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// SetSalt stores the KDF salt
func (s *Store) SetSalt(salt []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		return config.Put(ConfigSalt, salt)
	})
}

// GetSalt retrieves the KDF salt
func (s *Store) GetSalt() ([]byte, error) {
	var salt []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		salt = config.Get(ConfigSalt)
		if salt == nil {
			return fmt.Errorf("salt not found")
		}
		// Make a copy since the slice is only valid during the transaction
		salt = append([]byte(nil), salt...)
		return nil
	})
	return salt, err
}

// SetIterations stores the KDF iterations
func (s *Store) SetIterations(iterations uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		iters := make([]byte, 4)
		binary.BigEndian.PutUint32(iters, iterations)
		return config.Put(ConfigIters, iters)
	})
}

// GetIterations retrieves the KDF iterations
func (s *Store) GetIterations() (uint32, error) {
	var iterations uint32
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		iters := config.Get(ConfigIters)
		if iters == nil || len(iters) != 4 {
			return fmt.Errorf("iterations not found")
		}
		iterations = binary.BigEndian.Uint32(iters)
		return nil
	})
	return iterations, err
}

// UpdateModified updates the last modified timestamp
func (s *Store) UpdateModified() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		now := time.Now()
		modified, _ := now.MarshalBinary()
		return config.Put(ConfigModified, modified)
	})
}

// GetModified retrieves the last modified timestamp
func (s *Store) GetModified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		data := config.Get(ConfigModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

// GetVaultID retrieves the vault ID from config bucket
func (s *Store) GetVaultID() (string, error) {
	var vaultID string
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		data := config.Get(ConfigVaultID)
		if data == nil {
			return fmt.Errorf("vault_id not found")
		}
		vaultID = string(data)
		return nil
	})
	return vaultID, err
}

// GetOrCreateVaultID retrieves existing vault ID or generates a new one
func (s *Store) GetOrCreateVaultID() (string, error) {
	vaultID, err := s.GetVaultID()
	if err == nil {
		return vaultID, nil
	}

	b, err := crypto.GenerateRandom(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate vault ID: %w", err)
	}
	vaultID = hex.EncodeToString(b)

	err = s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		return config.Put(ConfigVaultID, []byte(vaultID))
	})
	if err != nil {
		return "", err
	}

	return vaultID, nil
}

// ManifestEntry records one encrypted file in the public manifest
type ManifestEntry struct {
	Path     string    `json:"path"`     // Plaintext file path, relative to vault root
	Envelope string    `json:"envelope"` // Envelope file path, relative to vault root
	Size     int64     `json:"size"`     // Plaintext size at encryption time
	ModTime  time.Time `json:"modTime"`  // Plaintext modification time at encryption time
	Hash     string    `json:"hash"`     // Plaintext content hash for change detection
	Sealed   time.Time `json:"sealed"`   // When the envelope was written
}

// UpdateManifest adds or replaces a manifest entry, keyed by plaintext path
func (s *Store) UpdateManifest(entry ManifestEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		manifest := tx.Bucket(IndexBucket)
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return manifest.Put([]byte(entry.Path), data)
	})
}

// RemoveFromManifest removes a file from the manifest
func (s *Store) RemoveFromManifest(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		manifest := tx.Bucket(IndexBucket)
		return manifest.Delete([]byte(path))
	})
}

// GetManifest returns all entries in the manifest
func (s *Store) GetManifest() ([]ManifestEntry, error) {
	var entries []ManifestEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		manifest := tx.Bucket(IndexBucket)
		if manifest == nil {
			return fmt.Errorf("index bucket not found")
		}
		return manifest.ForEach(func(k, v []byte) error {
			var entry ManifestEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}

// GetManifestEntry returns a single manifest entry, or nil if absent
func (s *Store) GetManifestEntry(path string) (*ManifestEntry, error) {
	var entry *ManifestEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		manifest := tx.Bucket(IndexBucket)
		if manifest == nil {
			return fmt.Errorf("index bucket not found")
		}
		data := manifest.Get([]byte(path))
		if data == nil {
			return nil
		}
		entry = &ManifestEntry{}
		return json.Unmarshal(data, entry)
	})
	return entry, err
}

// StoreCheckValue stores the encrypted password-check value
func (s *Store) StoreCheckValue(envelope string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		private := tx.Bucket(PrivateBucket)
		return private.Put([]byte("checksum"), []byte(envelope))
	})
}

// GetCheckValue retrieves the encrypted password-check value
func (s *Store) GetCheckValue() (string, error) {
	var envelope string
	err := s.db.View(func(tx *bolt.Tx) error {
		private := tx.Bucket(PrivateBucket)
		if private == nil {
			return fmt.Errorf("private bucket not found")
		}
		data := private.Get([]byte("checksum"))
		if data == nil {
			return fmt.Errorf("check value not found")
		}
		envelope = string(data)
		return nil
	})
	return envelope, err
}
