package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLiteData keeps both stores in an in-memory SQLite database. The gate
// runs inside a single transaction.
type SQLiteData struct {
	DB *sqlx.DB
}

var _ Registry = (*SQLiteData)(nil)

type identityRow struct {
	Username  string `db:"username"`
	PublicKey []byte `db:"public_key"`
}

type nameRow struct {
	Name        string `db:"name"`
	Username    string `db:"username"`
	UTC         string `db:"utc"`
	Signature   string `db:"signature"`
	NewContents string `db:"new_contents"`
}

func (r nameRow) message() (*UpdateMessage, error) {
	utc, err := time.Parse(time.RFC3339Nano, r.UTC)
	if err != nil {
		return nil, fmt.Errorf("parsing utc for %q: %w", r.Name, err)
	}
	return &UpdateMessage{
		User:        r.Username,
		UTC:         utc.UTC(),
		Signature:   r.Signature,
		NewContents: r.NewContents,
	}, nil
}

func OpenSQLite() (*SQLiteData, error) {
	db, err := OpenDB()
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteData{DB: db}, nil
}

func (s *SQLiteData) Close() error {
	return s.DB.Close()
}

func (s *SQLiteData) GetName(name string) (*UpdateMessage, error) {
	var row nameRow
	err := s.DB.Get(&row,
		`SELECT name, username, utc, signature, new_contents
		 FROM names WHERE name = ?`, name,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying name: %w", err)
	}
	return row.message()
}

func (s *SQLiteData) GetIDKey(user string) ([]byte, error) {
	key, found, err := getKey(s.DB, user)
	if err != nil || !found {
		return nil, err
	}
	return key, nil
}

func (s *SQLiteData) AddID(user string, key []byte) error {
	now := time.Now().Unix()
	_, err := s.DB.Exec(
		`INSERT INTO identities (username, public_key, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET public_key = excluded.public_key, updated_at = ?`,
		user, cloneKey(key), now, now,
	)
	if err != nil {
		return fmt.Errorf("saving identity: %w", err)
	}
	return nil
}

func (s *SQLiteData) UpdateName(name string, msg UpdateMessage) error {
	return putName(s.DB, name, msg)
}

func (s *SQLiteData) ValidateUpdate(msg UpdateMessage) error {
	key, found, err := getKey(s.DB, msg.User)
	if err != nil {
		return err
	}
	return validate(msg, key, found)
}

func (s *SQLiteData) ApplyUpdateIfValid(name string, msg UpdateMessage) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return fmt.Errorf("applying update (begin): %w", err)
	}

	key, found, err := getKey(tx, msg.User)
	if err == nil {
		err = validate(msg, key, found)
	}
	if err == nil {
		err = putName(tx, name, msg)
	}
	if err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			return fmt.Errorf("applying update (rollback): %w", errors.Join(err, err2))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("applying update (commit): %w", err)
	}
	return nil
}

func getKey(q sqlx.Queryer, user string) ([]byte, bool, error) {
	var row identityRow
	err := sqlx.Get(q, &row, `SELECT username, public_key FROM identities WHERE username = ?`, user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying identity: %w", err)
	}
	return cloneKey(row.PublicKey), true, nil
}

func putName(e sqlx.Execer, name string, msg UpdateMessage) error {
	_, err := e.Exec(
		`INSERT INTO names (name, username, utc, signature, new_contents, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			username = excluded.username,
			utc = excluded.utc,
			signature = excluded.signature,
			new_contents = excluded.new_contents,
			updated_at = excluded.updated_at`,
		name, msg.User, msg.UTC.UTC().Format(time.RFC3339Nano), msg.Signature, msg.NewContents, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving name: %w", err)
	}
	return nil
}
