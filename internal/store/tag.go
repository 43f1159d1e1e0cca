package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/foresafe/foresafe/internal/model"
)

type TagStore struct {
	db *sql.DB
}

func NewTagStore(db *sql.DB) *TagStore {
	return &TagStore{db: db}
}

func scanTag(scanner interface{ Scan(...any) error }) (*model.Tag, error) {
	var t model.Tag
	var whatsapp, token sql.NullString
	err := scanner.Scan(&t.TagID, &t.IsRegistered, &whatsapp, &t.PushEnabled, &token, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if whatsapp.Valid {
		t.WhatsAppNumber = &whatsapp.String
	}
	if token.Valid {
		t.PushToken = &token.String
	}
	return &t, nil
}

const tagCols = `tag_id, is_registered, whatsapp_number, push_enabled, push_token, created_at`

// Get returns the tag with the given normalized id, or nil if absent.
func (s *TagStore) Get(ctx context.Context, tagID string) (*model.Tag, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tagCols+` FROM tags WHERE tag_id = ?`, tagID)
	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return t, nil
}

// Insert adds an unregistered tag. It reports false when the id already
// exists; existing rows are never modified.
func (s *TagStore) Insert(ctx context.Context, tagID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (tag_id, is_registered) VALUES (?, 0) ON CONFLICT(tag_id) DO NOTHING`,
		tagID,
	)
	if err != nil {
		return false, fmt.Errorf("insert tag: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// InsertBatch inserts each id inside one transaction, ignoring ids that
// already exist. It returns how many rows were created.
func (s *TagStore) InsertBatch(ctx context.Context, tagIDs []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tags (tag_id, is_registered) VALUES (?, 0) ON CONFLICT(tag_id) DO NOTHING`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, id := range tagIDs {
		result, err := stmt.ExecContext(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("insert tag %s: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return inserted, nil
}

// Register claims an unregistered tag in a single conditional update. It
// reports false when no unregistered row matched, leaving stored fields
// untouched.
func (s *TagStore) Register(ctx context.Context, tagID, whatsapp string, pushToken *string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tags SET whatsapp_number = ?, push_token = ?, is_registered = 1
		 WHERE tag_id = ? AND is_registered = 0`,
		whatsapp, pushToken, tagID,
	)
	if err != nil {
		return false, fmt.Errorf("register tag: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// LinkDevice records a device linkage on a registered tag and turns push
// alerts on. It reports false when no registered row matched.
func (s *TagStore) LinkDevice(ctx context.Context, tagID, pushToken string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tags SET push_token = ?, push_enabled = 1 WHERE tag_id = ? AND is_registered = 1`,
		pushToken, tagID,
	)
	if err != nil {
		return false, fmt.Errorf("link device: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// SetPushEnabled toggles the owner's push opt-in on a registered tag. It
// reports false when no registered row matched.
func (s *TagStore) SetPushEnabled(ctx context.Context, tagID string, enabled bool) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tags SET push_enabled = ? WHERE tag_id = ? AND is_registered = 1`,
		enabled, tagID,
	)
	if err != nil {
		return false, fmt.Errorf("set push enabled: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// List returns up to limit tags, newest first, optionally filtered by a
// case-insensitive substring of the tag id.
func (s *TagStore) List(ctx context.Context, search string, limit int) ([]model.Tag, error) {
	query := `SELECT ` + tagCols + ` FROM tags`
	var args []any
	if search = strings.TrimSpace(search); search != "" {
		query += ` WHERE tag_id LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(search)+"%")
	}
	query += ` ORDER BY created_at DESC, tag_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

// ListIDsAfter returns up to limit tag ids greater than after, in ascending
// order. Pass "" for the first page.
func (s *TagStore) ListIDsAfter(ctx context.Context, after string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag_id FROM tags WHERE tag_id > ? ORDER BY tag_id LIMIT ?`,
		after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list tag ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tag id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *TagStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tags: %w", err)
	}
	return n, nil
}

// Stats returns inventory totals and the most recently created tags.
func (s *TagStore) Stats(ctx context.Context, recent int) (*model.TagStats, error) {
	var st model.TagStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_registered), 0) FROM tags`,
	).Scan(&st.Total, &st.Registered)
	if err != nil {
		return nil, fmt.Errorf("tag stats: %w", err)
	}

	tags, err := s.List(ctx, "", recent)
	if err != nil {
		return nil, err
	}
	st.Recent = tags
	return &st, nil
}

func scanTags(rows *sql.Rows) ([]model.Tag, error) {
	var tags []model.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, *t)
	}
	return tags, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
