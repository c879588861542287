package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Hasher is the credential capability consumed by user accounts.
type Hasher interface {
	Hash(plain string) (hash, salt string, err error)
	Verify(plain, hash, salt string) bool
}

// BcryptHasher stores the salt inside the bcrypt hash, so the returned salt is empty.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(plain string) (string, string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", "", err
	}
	return string(hash), "", nil
}

func (BcryptHasher) Verify(plain, hash, _ string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

const (
	pbkdf2SaltBytes = 16
	pbkdf2KeyBytes  = 32
)

// PBKDF2Hasher derives a 256-bit HMAC-SHA256 key from a random 16-byte salt.
// Hash and salt are base64 encoded.
type PBKDF2Hasher struct {
	Iterations int
}

func (h PBKDF2Hasher) Hash(plain string) (string, string, error) {
	salt := make([]byte, pbkdf2SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("read salt: %w", err)
	}
	key := pbkdf2.Key([]byte(plain), salt, h.iterations(), pbkdf2KeyBytes, sha256.New)
	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(salt), nil
}

func (h PBKDF2Hasher) Verify(plain, hash, salt string) bool {
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil || len(saltBytes) == 0 {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(plain), saltBytes, h.iterations(), len(want), sha256.New)
	return hmac.Equal(got, want)
}

func (h PBKDF2Hasher) iterations() int {
	if h.Iterations <= 0 {
		return 10000
	}
	return h.Iterations
}

// NewHasher picks the password scheme by name. Unknown names use bcrypt.
func NewHasher(scheme string, iterations int) Hasher {
	if scheme == "pbkdf2" {
		return PBKDF2Hasher{Iterations: iterations}
	}
	return BcryptHasher{}
}
