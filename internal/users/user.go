// Package users はユーザー（認証情報）の永続化を担います。
package users

import (
	"errors"
	"time"
)

var (
	// ErrNotFound は該当ユーザーが存在しないことを表します。
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail はメールアドレスの一意制約違反を表します。
	ErrDuplicateEmail = errors.New("email already registered")
)

// User はユーザーの識別情報です。
// Password は bcrypt ハッシュで、JSON には出力しません。
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Password  string    `json:"-" db:"password"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
