// Package auth provides API key generation and verification for the netport
// API server. Keys are configured as bcrypt hashes; the plaintext key is only
// shown once, when it is generated.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	// APIKeyLength is the length of the random part of an API key
	APIKeyLength = 32
	// APIKeyPrefix is the prefix of every generated key
	APIKeyPrefix = "np"

	// BcryptCost is the cost used for new hashes
	BcryptCost = 12
	// BcryptMaxInputLength is the maximum input length for bcrypt
	BcryptMaxInputLength = 72
)

// GenerateAPIKey returns a new random key of the form np_<32 base32 chars>.
func GenerateAPIKey() (string, error) {
	randomBytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}

	randomPart := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes))
	return fmt.Sprintf("%s_%s", APIKeyPrefix, randomPart[:APIKeyLength]), nil
}

// keyBytes applies the pre-hash used for keys longer than bcrypt accepts.
func keyBytes(apiKey string) []byte {
	b := []byte(apiKey)
	if len(b) > BcryptMaxInputLength {
		sum := sha256.Sum256(b)
		b = sum[:]
	}
	return b
}

// HashAPIKey creates a bcrypt hash of an API key for the configuration file.
func HashAPIKey(apiKey string) (string, error) {
	return hashAPIKey(apiKey, BcryptCost)
}

func hashAPIKey(apiKey string, cost int) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword(keyBytes(apiKey), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// ValidateAPIKey checks if a provided API key matches the stored hash.
func ValidateAPIKey(apiKey, storedHash string) bool {
	if apiKey == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), keyBytes(apiKey)) == nil
}

// IsValidAPIKeyFormat reports whether apiKey looks like a generated key.
func IsValidAPIKeyFormat(apiKey string) bool {
	randomPart, ok := strings.CutPrefix(apiKey, APIKeyPrefix+"_")
	if !ok || len(randomPart) != APIKeyLength {
		return false
	}
	for _, c := range randomPart {
		if (c < 'a' || c > 'z') && (c < '2' || c > '7') {
			return false
		}
	}
	return true
}

// KeySet verifies presented keys against a fixed list of bcrypt hashes.
// Keys that verified once are remembered by their SHA-256 digest so later
// requests skip the bcrypt comparison.
type KeySet struct {
	hashes []string

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

// NewKeySet creates a key set from bcrypt hashes.
func NewKeySet(hashes []string) *KeySet {
	return &KeySet{
		hashes:   hashes,
		verified: make(map[[sha256.Size]byte]struct{}),
	}
}

// Valid reports whether apiKey matches any configured hash.
func (s *KeySet) Valid(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	digest := sha256.Sum256([]byte(apiKey))
	s.mu.RLock()
	_, ok := s.verified[digest]
	s.mu.RUnlock()
	if ok {
		return true
	}

	for _, hash := range s.hashes {
		if ValidateAPIKey(apiKey, hash) {
			s.mu.Lock()
			s.verified[digest] = struct{}{}
			s.mu.Unlock()
			return true
		}
	}
	return false
}
