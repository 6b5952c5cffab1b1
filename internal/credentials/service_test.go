package credentials

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"chatrelay/api/internal/store"
)

type memoryUserStore struct {
	users   map[string]store.User
	getErr  error
	inserts int
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: map[string]store.User{}}
}

func (m *memoryUserStore) InsertUser(_ context.Context, user store.User) error {
	if _, ok := m.users[user.Username]; ok {
		return store.ErrUserExists
	}
	m.users[user.Username] = user
	m.inserts++
	return nil
}

func (m *memoryUserStore) GetUser(_ context.Context, username string) (store.User, error) {
	if m.getErr != nil {
		return store.User{}, m.getErr
	}
	user, ok := m.users[username]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func TestRegisterAndVerify(t *testing.T) {
	users := newMemoryUserStore()
	svc := NewService(users)
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "correct horse", "alice@example.com"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if !svc.Verify(ctx, "alice", "correct horse") {
		t.Fatal("Verify rejected the original password")
	}
	if svc.Verify(ctx, "alice", "correct horsf") {
		t.Fatal("Verify accepted a single-character variant")
	}
	if svc.Verify(ctx, "alice", "") {
		t.Fatal("Verify accepted an empty password")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	users := newMemoryUserStore()
	svc := NewService(users)
	ctx := context.Background()

	if err := svc.Register(ctx, "bob", "first", "bob@example.com"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	err := svc.Register(ctx, "bob", "second", "bob@example.com")
	if !errors.Is(err, store.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if users.inserts != 1 {
		t.Fatalf("expected a single stored user, got %d", users.inserts)
	}
}

func TestSaltsDifferAcrossUsers(t *testing.T) {
	users := newMemoryUserStore()
	svc := NewService(users)
	ctx := context.Background()

	if err := svc.Register(ctx, "carol", "same password", "carol@example.com"); err != nil {
		t.Fatalf("Register carol failed: %v", err)
	}
	if err := svc.Register(ctx, "dave", "same password", "dave@example.com"); err != nil {
		t.Fatalf("Register dave failed: %v", err)
	}

	carol := users.users["carol"]
	dave := users.users["dave"]
	if carol.Salt == dave.Salt {
		t.Fatal("expected distinct salts for distinct users")
	}
	if carol.PasswordHash == dave.PasswordHash {
		t.Fatal("expected distinct hashes for the same password under distinct salts")
	}
}

func TestVerifyUnknownUser(t *testing.T) {
	svc := NewService(newMemoryUserStore())
	if svc.Verify(context.Background(), "nobody", "anything") {
		t.Fatal("Verify accepted an unknown user")
	}
}

func TestVerifyStorageErrorIsFalse(t *testing.T) {
	users := newMemoryUserStore()
	users.getErr = errors.New("connection reset")
	svc := NewService(users)
	if svc.Verify(context.Background(), "alice", "whatever") {
		t.Fatal("Verify must fail closed on storage errors")
	}
}

func TestVerifyRejectsCorruptSalt(t *testing.T) {
	users := newMemoryUserStore()
	users.users["mallory"] = store.User{Username: "mallory", PasswordHash: "x", Salt: "not base64!!"}
	svc := NewService(users)
	if svc.Verify(context.Background(), "mallory", "pw") {
		t.Fatal("Verify accepted a corrupt salt")
	}
}
