// Package pinstore persists a salted hash of the operator PIN and
// verifies candidate PINs against it. The raw PIN is never written
// to disk; only the PBKDF2 derivation survives.
package pinstore

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2-SHA256 work factor.
	Iterations = 200_000
	// SaltLen is the salt length in bytes.
	SaltLen = 16
	// KeyLen is the derived key length in bytes.
	KeyLen = 32
)

var (
	// ErrNotInitialized is returned when Verify is called before any Set.
	ErrNotInitialized = errors.New("no PIN has been set")
	// ErrCorrupt is returned when the on-disk record cannot be parsed.
	// The record is never repaired automatically.
	ErrCorrupt = errors.New("pin record is corrupt")
)

// Record is the persisted form of the PIN derivation.
type Record struct {
	Salt       []byte    `json:"salt"`
	Hash       []byte    `json:"hash"`
	Iterations int       `json:"iterations"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store manages the PIN record file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Exists reports whether a PIN record is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Set derives a fresh salted hash from pin and persists it,
// overwriting any prior record. The old PIN stops verifying.
func (s *Store) Set(pin string) error {
	if pin == "" {
		return fmt.Errorf("pin must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	rec := Record{
		Salt:       salt,
		Hash:       pbkdf2.Key([]byte(pin), salt, Iterations, KeyLen, sha256.New),
		Iterations: Iterations,
		CreatedAt:  time.Now().UTC(),
	}

	return s.writeAtomic(rec)
}

// Verify recomputes the hash for candidate with the stored salt and
// compares in constant time. Fails closed: no record means false with
// ErrNotInitialized, an unreadable record means false with ErrCorrupt.
func (s *Store) Verify(candidate string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil {
		return false, err
	}

	dk := pbkdf2.Key([]byte(candidate), rec.Salt, rec.Iterations, len(rec.Hash), sha256.New)
	return subtle.ConstantTimeCompare(dk, rec.Hash) == 1, nil
}

func (s *Store) read() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("read pin record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(rec.Salt) < SaltLen || len(rec.Hash) == 0 || rec.Iterations <= 0 {
		return nil, fmt.Errorf("%w: missing or truncated fields", ErrCorrupt)
	}
	return &rec, nil
}

func (s *Store) writeAtomic(rec Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create pin directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write pin record: %w", err)
	}
	return os.Rename(tmp, s.path)
}
