package auth

import (
	"context"
	"errors"
	"testing"
)

func seedUser(t *testing.T, repo UserRepository, username, password string, active bool) *User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &User{Username: username, PasswordHash: hash, Role: RoleClinician, Active: active}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	return user
}

func TestAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	seeded := seedUser(t, repo, "nurse.jalo", "ward-seven", true)

	user, err := Authenticate(context.Background(), repo, "nurse.jalo", "ward-seven")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.ID != seeded.ID {
		t.Errorf("user ID: got %q, want %q", user.ID, seeded.ID)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	seedUser(t, repo, "nurse.jalo", "ward-seven", true)

	_, err := Authenticate(context.Background(), repo, "nurse.jalo", "ward-eight")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	_, err := Authenticate(context.Background(), repo, "nobody", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateInactiveUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	seedUser(t, repo, "nurse.jalo", "ward-seven", false)

	_, err := Authenticate(context.Background(), repo, "nurse.jalo", "ward-seven")
	if !errors.Is(err, ErrUserInactive) {
		t.Errorf("expected ErrUserInactive, got %v", err)
	}
}

func TestSeedAdminCreatesFirstAccount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	password, err := SeedAdmin(ctx, repo, discardLogger())
	if err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}
	if password == "" {
		t.Fatal("expected generated password")
	}

	admin, err := repo.GetByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if admin.Role != RoleAdmin || !admin.Active {
		t.Errorf("unexpected seed admin: %+v", admin)
	}

	ok, err := VerifyPassword(password, admin.PasswordHash)
	if err != nil || !ok {
		t.Errorf("seed password should verify: ok=%v err=%v", ok, err)
	}

	// Second boot: users exist, no reseed.
	password, err = SeedAdmin(ctx, repo, discardLogger())
	if err != nil {
		t.Fatalf("SeedAdmin second run: %v", err)
	}
	if password != "" {
		t.Error("expected no password on second run")
	}
}
