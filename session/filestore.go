package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the session as JSON on disk, the way a browser keeps
// it in localStorage. The file is written with 0600 permissions via a
// temp-file rename so a crash mid-write never leaves a torn session.
// With WithEncryption, the token fields are sealed with AES-256-GCM and
// the file is useless without the key.
type FileStore struct {
	path   string
	cipher *TokenCipher
	mu     sync.Mutex
}

type FileStoreOption func(*FileStore) error

// WithEncryption encrypts the token fields with the given 64-char hex key.
func WithEncryption(hexKey string) FileStoreOption {
	return func(f *FileStore) error {
		cipher, err := NewTokenCipher(hexKey)
		if err != nil {
			return err
		}
		f.cipher = cipher
		return nil
	}
}

func NewFileStore(path string, opts ...FileStoreOption) (*FileStore, error) {
	f := &FileStore{path: path}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *FileStore) Load(_ context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}

	if f.cipher != nil {
		if s.AccessToken, err = f.cipher.Open(s.AccessToken); err != nil {
			return nil, fmt.Errorf("failed to decrypt access token: %w", err)
		}
		if s.RefreshToken, err = f.cipher.Open(s.RefreshToken); err != nil {
			return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
	}

	return &s, nil
}

func (f *FileStore) Save(_ context.Context, s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored := *s
	if f.cipher != nil {
		var err error
		if stored.AccessToken, err = f.cipher.Seal(s.AccessToken); err != nil {
			return fmt.Errorf("failed to encrypt access token: %w", err)
		}
		if stored.RefreshToken, err = f.cipher.Seal(s.RefreshToken); err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	return nil
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
