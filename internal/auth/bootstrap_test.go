package auth

import (
	"testing"

	"github.com/foresafe/foresafe/internal/database"
	"github.com/foresafe/foresafe/internal/store"
)

func TestEnsureAdmin(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	as := store.NewAdminStore(db)

	created, err := EnsureAdmin(as, "admin@foresafe.in", "secret123")
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if !created {
		t.Fatal("expected admin to be created")
	}

	created, err = EnsureAdmin(as, "admin@foresafe.in", "other-password")
	if err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}
	if created {
		t.Error("second call should not create")
	}

	a, _ := as.GetByEmail("admin@foresafe.in")
	if !CheckPassword(a.PasswordHash, "secret123") {
		t.Error("existing password should be kept")
	}
}
