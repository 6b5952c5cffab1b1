// Package credentials provides username/password registration and
// verification backed by a user store.
package credentials

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log"

	"chatrelay/api/internal/store"
	"golang.org/x/crypto/argon2"
)

const saltLength = 16

// argon2id parameters
const (
	hashTime    = 1
	hashMemory  = 64 * 1024
	hashThreads = 4
	hashLength  = 32
)

// UserStore defines the storage interface for credentials.
type UserStore interface {
	InsertUser(ctx context.Context, user store.User) error
	GetUser(ctx context.Context, username string) (store.User, error)
}

// Verifier is the capability the transport layer needs to gate protected
// routes.
type Verifier interface {
	Verify(ctx context.Context, username, password string) bool
}

type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// Register creates a new account with a fresh random salt and an argon2id
// password hash. Returns store.ErrUserExists when the username is taken.
func (s *Service) Register(ctx context.Context, username, password, email string) error {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	user := store.User{
		Username:     username,
		PasswordHash: hashPassword(password, salt),
		Salt:         base64.StdEncoding.EncodeToString(salt),
		Email:        email,
	}
	return s.store.InsertUser(ctx, user)
}

// Verify recomputes the hash of password with the stored salt and compares.
// Unknown users, wrong passwords, and storage errors all take the same
// false path; storage errors are logged but never surfaced.
func (s *Service) Verify(ctx context.Context, username, password string) bool {
	user, err := s.store.GetUser(ctx, username)
	if err != nil {
		log.Printf("credentials: lookup %q failed: %v", username, err)
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(user.Salt)
	if err != nil {
		log.Printf("credentials: stored salt for %q is corrupt: %v", username, err)
		return false
	}

	computed := hashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(user.PasswordHash)) == 1
}

func hashPassword(password string, salt []byte) string {
	hash := argon2.IDKey([]byte(password), salt, hashTime, hashMemory, hashThreads, hashLength)
	return base64.StdEncoding.EncodeToString(hash)
}
