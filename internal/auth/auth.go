package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNoSecret = errors.New("no admin secret configured")
)

// Config selects how the shared admin secret is stored.
// PasswordHash takes precedence over Password when both are set.
type Config struct {
	Password     string `toml:"password" yaml:"password" json:"password" mapstructure:"password"`
	PasswordHash string `toml:"password_hash" yaml:"password_hash" json:"password_hash" mapstructure:"password_hash"`
	BcryptCost   int    `toml:"bcrypt_cost" yaml:"bcrypt_cost" json:"bcrypt_cost" mapstructure:"bcrypt_cost"`
}

// Verifier checks submitted passwords against the admin secret.
type Verifier struct {
	plain []byte
	hash  []byte
}

func NewVerifier(cfg Config) (*Verifier, error) {
	hash := strings.TrimSpace(cfg.PasswordHash)
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid password_hash: %w", err)
		}
		return &Verifier{hash: []byte(hash)}, nil
	}
	if cfg.Password == "" {
		return nil, ErrNoSecret
	}
	return &Verifier{plain: []byte(cfg.Password)}, nil
}

// Check reports whether password matches. An empty password never matches.
func (v *Verifier) Check(password string) bool {
	if v == nil || password == "" {
		return false
	}
	if v.hash != nil {
		return bcrypt.CompareHashAndPassword(v.hash, []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare(v.plain, []byte(password)) == 1
}

// HashPassword produces a bcrypt hash suitable for Config.PasswordHash.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}
