package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TokenTTL is the portal's bearer token validity window from issuance.
const TokenTTL = 12 * time.Hour

// Token is an opaque bearer string with its absolute expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

func (t Token) Valid() bool {
	return t.Value != "" && time.Now().Before(t.ExpiresAt)
}

// TokenStore caches tokens keyed by tax code. Contract: read-if-unexpired,
// else delete-and-refetch.
type TokenStore interface {
	Get(taxCode string) (Token, bool, error)
	Put(taxCode string, token Token) error
	Delete(taxCode string) error
}

// FileStore keeps one token file per tax code under dir, named
// <taxcode>_Token_<expiryUnix>.txt with the bearer string as content.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// DefaultTokenDir is the token cache under the application cache directory.
func DefaultTokenDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "hddt-crawler", "tokens")
}

func (s *FileStore) files(taxCode string) ([]string, error) {
	return filepath.Glob(filepath.Join(s.dir, taxCode+"_Token_*.txt"))
}

func (s *FileStore) Get(taxCode string) (Token, bool, error) {
	files, err := s.files(taxCode)
	if err != nil || len(files) == 0 {
		return Token{}, false, err
	}

	path := files[0]
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(name, "_")
	expiry, _ := strconv.ParseInt(parts[len(parts)-1], 10, 64)

	if time.Now().Unix() >= expiry {
		_ = os.Remove(path)
		return Token{}, false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Token{}, false, err
	}
	return Token{Value: string(content), ExpiresAt: time.Unix(expiry, 0)}, true, nil
}

func (s *FileStore) Put(taxCode string, token Token) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	// drop stale files so Get never picks an old one first
	if err := s.Delete(taxCode); err != nil {
		return err
	}
	name := fmt.Sprintf("%s_Token_%d.txt", taxCode, token.ExpiresAt.Unix())
	return os.WriteFile(filepath.Join(s.dir, name), []byte(token.Value), 0o600)
}

func (s *FileStore) Delete(taxCode string) error {
	files, err := s.files(taxCode)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	return nil
}

// MemoryStore is a process-local TokenStore for embedding the crawler where
// no filesystem cache is wanted.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]Token)}
}

func (s *MemoryStore) Get(taxCode string) (Token, bool, error) {
	s.mu.RLock()
	token, ok := s.tokens[taxCode]
	s.mu.RUnlock()

	if !ok {
		return Token{}, false, nil
	}
	if !token.Valid() {
		_ = s.Delete(taxCode)
		return Token{}, false, nil
	}
	return token, true, nil
}

func (s *MemoryStore) Put(taxCode string, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[taxCode] = token
	return nil
}

func (s *MemoryStore) Delete(taxCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, taxCode)
	return nil
}
