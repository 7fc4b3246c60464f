package auth

import (
	"context"
	"errors"
	"fmt"
)

// Authenticate verifies a username/password pair against the user store.
//
// Unknown usernames and wrong passwords both return ErrInvalidCredentials
// so login responses never reveal which usernames exist. An inactive
// account with correct credentials returns ErrUserInactive.
func Authenticate(ctx context.Context, repo UserRepository, username, password string) (*User, error) {
	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		return nil, ErrUserInactive
	}

	return user, nil
}
