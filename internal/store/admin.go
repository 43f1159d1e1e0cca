package store

import (
	"database/sql"
	"fmt"

	"github.com/foresafe/foresafe/internal/model"
)

type AdminStore struct {
	db *sql.DB
}

func NewAdminStore(db *sql.DB) *AdminStore {
	return &AdminStore{db: db}
}

func scanAdmin(scanner interface{ Scan(...any) error }) (*model.Admin, error) {
	var a model.Admin
	err := scanner.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const adminCols = `id, email, password_hash, created_at, updated_at`

func (s *AdminStore) Create(email, passwordHash string) (*model.Admin, error) {
	result, err := s.db.Exec(
		`INSERT INTO admins (email, password_hash) VALUES (?, ?)`,
		email, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert admin: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AdminStore) GetByID(id int64) (*model.Admin, error) {
	row := s.db.QueryRow(`SELECT `+adminCols+` FROM admins WHERE id = ?`, id)
	a, err := scanAdmin(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return a, nil
}

func (s *AdminStore) GetByEmail(email string) (*model.Admin, error) {
	row := s.db.QueryRow(`SELECT `+adminCols+` FROM admins WHERE email = ? COLLATE NOCASE`, email)
	a, err := scanAdmin(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return a, nil
}

func (s *AdminStore) UpdatePassword(id int64, passwordHash string) error {
	_, err := s.db.Exec(
		`UPDATE admins SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("update admin password: %w", err)
	}
	return nil
}
