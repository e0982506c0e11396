// Package password turns plaintext passwords into storage-safe hashes and
// checks candidates against them. Hashes are self-describing: the salt and the
// cost live inside the encoded string, so nothing else needs to be stored.
package password

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/alexedwards/argon2id"
	customErrors "github.com/vidhost/auth-service/internal/domain/auth/errors"
	"github.com/vidhost/auth-service/internal/domain/auth/model"
	"github.com/vidhost/auth-service/internal/infra/config"
	"golang.org/x/crypto/bcrypt"
)

const argon2idPrefix = "$argon2id$"

// Bounds for argon2id parameters read back from a stored hash. Anything
// outside them is treated as malformed rather than handed to the KDF, which
// panics on zero rounds or lanes and allocates whatever memory it is told to.
const (
	maxArgonMemory     = 1 << 20 // KiB, 1 GiB
	maxArgonIterations = 64
	maxArgonKeyLength  = 1024
)

// HashPassword hashes plaintext with bcrypt at the given cost. Every call uses
// a fresh random salt.
func HashPassword(plaintext string, cost int) (string, error) {
	if plaintext == "" {
		return "", customErrors.NewInvalidArgument("empty password")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", customErrors.WrapHashing(bcrypt.InvalidCostError(cost), "bcrypt")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", customErrors.WrapHashing(err, "bcrypt")
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches hash. Malformed or unknown
// hashes simply do not match.
func VerifyPassword(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	if strings.HasPrefix(hash, argon2idPrefix) {
		return verifyArgon2id(plaintext, hash)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

func verifyArgon2id(plaintext, hash string) (ok bool) {
	params, salt, key, err := argon2id.DecodeHash(hash)
	if err != nil || !saneArgonParams(params, salt, key) {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	ok, err = argon2id.ComparePasswordAndHash(plaintext, hash)
	return err == nil && ok
}

func saneArgonParams(p *argon2id.Params, salt, key []byte) bool {
	switch {
	case p == nil, len(salt) == 0, len(key) == 0:
		return false
	case p.Iterations < 1 || p.Iterations > maxArgonIterations:
		return false
	case p.Parallelism < 1:
		return false
	case p.Memory < 8*uint32(p.Parallelism) || p.Memory > maxArgonMemory:
		return false
	case p.KeyLength < 1 || p.KeyLength > maxArgonKeyLength:
		return false
	}
	return true
}

type Hasher struct {
	algorithm string
	cost      int
	pepper    string
	argon     *argon2id.Params

	// dummy is compared against when no account matches a login.
	dummy string
}

func NewHasher(cfg *config.Config) (*Hasher, error) {
	if err := cfg.ValidateHashing(); err != nil {
		return nil, customErrors.WrapHashing(err, "NewHasher")
	}
	h := &Hasher{
		algorithm: cfg.HashAlgorithm,
		cost:      cfg.HashCostFactor,
		pepper:    cfg.PasswordPepper,
	}
	if h.algorithm == "" {
		h.algorithm = config.HashBcrypt
	}
	if h.algorithm == config.HashArgon2id {
		h.argon = &argon2id.Params{
			Memory:      64 * 1024, // 64 MiB
			Iterations:  uint32(cfg.HashCostFactor),
			Parallelism: 4,
			SaltLength:  16,
			KeyLength:   32,
		}
	}

	dummy, err := h.Hash("unknown-account-placeholder")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", customErrors.NewInvalidArgument("empty password")
	}
	if h.argon == nil {
		return HashPassword(h.season(plaintext), h.cost)
	}
	hash, err := argon2id.CreateHash(h.season(plaintext), h.argon)
	if err != nil {
		return "", customErrors.WrapHashing(err, "argon2id")
	}
	return hash, nil
}

func (h *Hasher) Verify(plaintext, hash string) bool {
	return VerifyPassword(h.season(plaintext), hash)
}

// season mixes the pepper in as HMAC-SHA256(pepper, plaintext). The encoded
// digest is 44 bytes, so peppered input stays inside bcrypt's 72-byte limit
// for any password length.
func (h *Hasher) season(plaintext string) string {
	if h.pepper == "" {
		return plaintext
	}
	mac := hmac.New(sha256.New, []byte(h.pepper))
	mac.Write([]byte(plaintext))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Apply stores a fresh hash on u only when the caller says the password
// changed. Unrelated updates keep the existing hash untouched.
func (h *Hasher) Apply(u *model.User, plaintext string, changed bool) error {
	if !changed {
		return nil
	}
	hash, err := h.Hash(plaintext)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// VerifyUnknown spends the same work as a real comparison and always fails.
// Login uses it when no account matches so that timing does not reveal which
// identifiers exist.
func (h *Hasher) VerifyUnknown(plaintext string) bool {
	_ = h.Verify(plaintext, h.dummy)
	return false
}
