package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	tokenBytes       = 32
)

// Store はセッションを Redis に保存します。
// キーの TTL はアイドルタイムアウトで、アクセスのたびに延長されます。
type Store struct {
	rdb         *redis.Client
	idleTimeout time.Duration
	lifetime    time.Duration
	now         func() time.Time
}

// NewStore は Store を作成します。lifetime は発行からの絶対的な有効期限です。
func NewStore(rdb *redis.Client, idleTimeout, lifetime time.Duration) *Store {
	return &Store{
		rdb:         rdb,
		idleTimeout: idleTimeout,
		lifetime:    lifetime,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start は未ログインの新しいセッションを発行します。
func (s *Store) Start(ctx context.Context) (*Session, error) {
	id, err := generateToken()
	if err != nil {
		return nil, err
	}
	csrf, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &Session{
		ID:           id,
		CSRFToken:    csrf,
		IssuedAt:     now,
		LastActivity: now,
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, sessionKey(id), payload, s.idleTimeout).Err(); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

// Get はセッションを取得します。存在しない・期限切れの場合は nil を返します。
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil
	}
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	now := s.now()
	if now.Sub(sess.IssuedAt) > s.lifetime || now.Sub(sess.LastActivity) > s.idleTimeout {
		if err := s.Invalidate(ctx, id); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &sess, nil
}

// Touch は最終アクセス時刻と TTL を更新します。
// 並行して破棄されたセッションを復活させないよう、既存キーにのみ書き込みます。
func (s *Store) Touch(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session is empty")
	}
	sess.LastActivity = s.now()
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.rdb.SetXX(ctx, sessionKey(sess.ID), payload, s.idleTimeout).Err(); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Regenerate は内容（ユーザー紐付けと CSRF トークン）を新しいIDへ移し、古いIDを無効化します。
// セッション固定攻撃への対策として認証成功直後に呼び出します。
func (s *Store) Regenerate(ctx context.Context, sess *Session) (*Session, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is nil")
	}
	id, err := generateToken()
	if err != nil {
		return nil, err
	}
	next := *sess
	next.ID = id
	if next.CSRFToken == "" {
		if next.CSRFToken, err = generateToken(); err != nil {
			return nil, err
		}
	}
	now := s.now()
	next.IssuedAt = now
	next.LastActivity = now

	payload, err := json.Marshal(&next)
	if err != nil {
		return nil, err
	}

	tx := s.rdb.TxPipeline()
	tx.Set(ctx, sessionKey(next.ID), payload, s.idleTimeout)
	if sess.ID != "" {
		tx.Del(ctx, sessionKey(sess.ID))
	}
	if _, err := tx.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to regenerate session: %w", err)
	}
	return &next, nil
}

// Invalidate はセッションを削除します。存在しなくてもエラーにはしません。
func (s *Store) Invalidate(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
