package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/hazyhaar/contacts/dbopen"
)

// Contact is one address book entry. Empty strings mean "not set".
type Contact struct {
	ID        string `json:"id"`
	First     string `json:"first,omitempty"`
	Last      string `json:"last,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Favorite  bool   `json:"favorite,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

const contactCols = `id, first, last, avatar, twitter, notes, favorite, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(row scanner) (*Contact, error) {
	c := &Contact{}
	err := row.Scan(&c.ID, &c.First, &c.Last, &c.Avatar, &c.Twitter, &c.Notes, &c.Favorite, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// InsertContact stores c. CreatedAt defaults to now.
func (s *Store) InsertContact(ctx context.Context, c *Contact) error {
	now := time.Now().UnixMilli()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	_, err := dbopen.Exec(ctx, s.DB, `
		INSERT INTO contacts (`+contactCols+`)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.First, c.Last, c.Avatar, c.Twitter, c.Notes, c.Favorite, c.CreatedAt, c.UpdatedAt)
	return err
}

// GetContact returns the contact with id, or nil if there is none.
func (s *Store) GetContact(ctx context.Context, id string) (*Contact, error) {
	c, err := scanContact(s.DB.QueryRowContext(ctx,
		`SELECT `+contactCols+` FROM contacts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListContacts returns contacts ordered by last name then creation time. A
// non-empty query keeps only contacts whose first or last name contains it,
// ignoring case.
func (s *Store) ListContacts(ctx context.Context, query string) ([]*Contact, error) {
	q := `SELECT ` + contactCols + ` FROM contacts`
	var args []any
	if query != "" {
		q += ` WHERE first LIKE ? ESCAPE '\' OR last LIKE ? ESCAPE '\'`
		pat := "%" + escapeLike(query) + "%"
		args = append(args, pat, pat)
	}
	q += ` ORDER BY last COLLATE NOCASE, created_at`

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateContact overwrites the editable fields of c.ID. It reports false when
// the contact does not exist.
func (s *Store) UpdateContact(ctx context.Context, c *Contact) (bool, error) {
	c.UpdatedAt = time.Now().UnixMilli()
	var n int64
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE contacts SET first = ?, last = ?, avatar = ?, twitter = ?, notes = ?, favorite = ?, updated_at = ?
			WHERE id = ?`,
			c.First, c.Last, c.Avatar, c.Twitter, c.Notes, c.Favorite, c.UpdatedAt, c.ID)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n > 0, err
}

// SetFavorite flips the favorite flag. It reports false when the contact does
// not exist.
func (s *Store) SetFavorite(ctx context.Context, id string, favorite bool) (bool, error) {
	res, err := dbopen.Exec(ctx, s.DB,
		`UPDATE contacts SET favorite = ?, updated_at = ? WHERE id = ?`,
		favorite, time.Now().UnixMilli(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteContact removes id. It reports false when nothing was deleted.
func (s *Store) DeleteContact(ctx context.Context, id string) (bool, error) {
	res, err := dbopen.Exec(ctx, s.DB, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountContacts returns the number of stored contacts.
func (s *Store) CountContacts(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n)
	return n, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
