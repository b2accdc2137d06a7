package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoToken is returned when no stored token matches the request
var ErrNoToken = errors.New("no stored session token")

// TokenStore keeps session tokens on disk, one file per username
type TokenStore struct {
	Dir string
}

// NewTokenStore creates a store rooted at dir
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{Dir: dir}
}

// DefaultTokenDir returns the token directory from the environment or the home directory
func DefaultTokenDir() string {
	if dir := os.Getenv("QUIZMATCH_TOKEN_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".quizmatch", "tokens")
	}
	return filepath.Join(home, ".quizmatch", "tokens")
}

// Path returns the token file for a username
func (s *TokenStore) Path(username string) string {
	return filepath.Join(s.Dir, "token-"+username+".txt")
}

// Save writes the token to path, creating the directory if needed
func (s *TokenStore) Save(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0600)
}

// Load reads a token given either a file name inside Dir or a username
// It returns the token and the file it came from
func (s *TokenStore) Load(name string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", "", fmt.Errorf("%w: invalid name %q", ErrNoToken, name)
	}

	for _, path := range []string{filepath.Join(s.Dir, name), s.Path(name)} {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", "", err
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", "", fmt.Errorf("%w: %s is empty", ErrNoToken, path)
		}
		return token, path, nil
	}
	return "", "", fmt.Errorf("%w for %q", ErrNoToken, name)
}
