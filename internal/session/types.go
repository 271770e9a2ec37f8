// Package session はサーバー側セッションを Redis に保存します。
// クッキーには不透明なセッションIDのみを載せ、ユーザーとの紐付けや CSRF トークンはここで保持します。
package session

import "time"

// Session は1つのブラウザコンテキストの状態です。UserID が空なら未ログインです。
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId,omitempty"`
	CSRFToken    string    `json:"csrfToken"`
	IssuedAt     time.Time `json:"issuedAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Authenticated はユーザーが紐付いているかを返します。
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}
