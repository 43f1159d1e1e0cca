package auth

import (
	"fmt"

	"github.com/foresafe/foresafe/internal/store"
)

// EnsureAdmin creates the bootstrap admin account when no account with
// that email exists yet. An existing account keeps its current password.
func EnsureAdmin(as *store.AdminStore, email, password string) (bool, error) {
	existing, err := as.GetByEmail(email)
	if err != nil {
		return false, fmt.Errorf("lookup admin: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	if _, err := as.Create(email, hash); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}
