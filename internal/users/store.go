package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

const selectUser = `SELECT id, name, email, password, created_at, updated_at FROM users`

// Store は users テーブルへのアクセスを提供します。
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore は Store を作成します。
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create はユーザーを登録します。ID と日時はここで採番します。
// email の重複は ErrDuplicateEmail を返します。
func (s *Store) Create(ctx context.Context, user *User) error {
	if user == nil {
		return fmt.Errorf("user is nil")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query :=
		`INSERT INTO users (id, name, email, password, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByEmail はメールアドレスでユーザーを取得します。大文字小文字は区別しません。
func (s *Store) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.get(ctx, selectUser+` WHERE lower(email) = lower($1)`, email)
}

// FindByID は ID でユーザーを取得します。
func (s *Store) FindByID(ctx context.Context, id string) (*User, error) {
	return s.get(ctx, selectUser+` WHERE id = $1`, id)
}

func (s *Store) get(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	if err := s.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}
	return false
}
