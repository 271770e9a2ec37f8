package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/spa-auth/internal/session"
	"github.com/yourusername/spa-auth/internal/users"
)

// ErrInvalidCredentials はメールアドレスかパスワードが一致しないことを表します。
// どちらが誤っていたかは区別しません。
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserStore はユーザーの永続化層です。
type UserStore interface {
	Create(ctx context.Context, user *users.User) error
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	FindByID(ctx context.Context, id string) (*users.User, error)
}

// SessionStore はサービスが必要とするセッション操作です。
type SessionStore interface {
	Start(ctx context.Context) (*session.Session, error)
	Regenerate(ctx context.Context, sess *session.Session) (*session.Session, error)
	Invalidate(ctx context.Context, id string) error
}

// RegisterInput は登録リクエストです。
type RegisterInput struct {
	Name                 string `json:"name" form:"name" validate:"required,max=250"`
	Email                string `json:"email" form:"email" validate:"required,email,max=250"`
	Password             string `json:"password" form:"password" validate:"required,min=8,eqfield=PasswordConfirmation"`
	PasswordConfirmation string `json:"password_confirmation" form:"password_confirmation"`
}

// LoginInput はログインリクエストです。
type LoginInput struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// Service は登録・ログイン・ログアウトの業務ルールを実装します。
// 呼び出し元の現在のセッション（未発行なら nil）を明示的に受け取り、
// 状態が変わる操作は新しいセッションを返します。
type Service struct {
	users    UserStore
	hasher   PasswordHasher
	sessions SessionStore
	logger   *zap.Logger
}

// NewService は Service を作成します。
func NewService(userStore UserStore, hasher PasswordHasher, sessions SessionStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:    userStore,
		hasher:   hasher,
		sessions: sessions,
		logger:   logger,
	}
}

// Register はユーザーを作成し、そのままログイン状態のセッションを返します。
// 入力エラーは永続化やハッシュ化より前に *ValidationError で返します。
func (s *Service) Register(ctx context.Context, current *session.Session, in RegisterInput) (*session.Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	verr := &ValidationError{}
	if err := checkStruct(in, verr); err != nil {
		return nil, err
	}
	checkConfirmed(verr, "password", in.Password, in.PasswordConfirmation)
	// 事前チェックは競合し得るため、最終的な一意性は DB の制約で担保する
	if !verr.Has("email") {
		_, err := s.users.FindByEmail(ctx, in.Email)
		switch {
		case err == nil:
			verr.Add("email", fmt.Sprintf(msgUnique, "email"))
		case errors.Is(err, users.ErrNotFound):
		default:
			return nil, fmt.Errorf("failed to look up email: %w", err)
		}
	}
	if verr.Len() > 0 {
		return nil, verr
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := &users.User{
		Name:     in.Name,
		Email:    in.Email,
		Password: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			verr.Add("email", fmt.Sprintf(msgUnique, "email"))
			return nil, verr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	next, err := s.authenticate(ctx, current, user.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return next, nil
}

// Login は認証情報を照合し、成功すればユーザーと再生成したセッションを返します。
// 不一致の場合は ErrInvalidCredentials を返し、セッションは変更しません。
func (s *Service) Login(ctx context.Context, current *session.Session, in LoginInput) (*users.User, *session.Session, error) {
	in.Email = normalizeEmail(in.Email)

	verr := &ValidationError{}
	if err := checkStruct(in, verr); err != nil {
		return nil, nil, err
	}
	if verr.Len() > 0 {
		return nil, nil, verr
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			s.logger.Info("login failed", zap.String("email", in.Email), zap.String("reason", "unknown email"))
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !s.hasher.Verify(in.Password, user.Password) {
		s.logger.Info("login failed", zap.String("email", in.Email), zap.String("reason", "password mismatch"))
		return nil, nil, ErrInvalidCredentials
	}

	next, err := s.authenticate(ctx, current, user.ID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return user, next, nil
}

// CurrentUser はセッションに紐付いたユーザーを返します。未ログインなら nil です。
func (s *Service) CurrentUser(ctx context.Context, current *session.Session) (*users.User, error) {
	if !current.Authenticated() {
		return nil, nil
	}
	user, err := s.users.FindByID(ctx, current.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load current user: %w", err)
	}
	return user, nil
}

// Logout は現在のセッションを破棄し、新しい CSRF トークンを持つ未ログインのセッションを返します。
// 何度呼んでも成功します。
func (s *Service) Logout(ctx context.Context, current *session.Session) (*session.Session, error) {
	if current != nil {
		if err := s.sessions.Invalidate(ctx, current.ID); err != nil {
			return nil, err
		}
		if current.Authenticated() {
			s.logger.Info("user logged out", zap.String("user_id", current.UserID))
		}
	}
	return s.sessions.Start(ctx)
}

// authenticate はユーザーをセッションに紐付け、IDを再生成します。
func (s *Service) authenticate(ctx context.Context, current *session.Session, userID string) (*session.Session, error) {
	var bound session.Session
	if current != nil {
		bound = *current
	}
	bound.UserID = userID
	return s.sessions.Regenerate(ctx, &bound)
}

// normalizeEmail はメールアドレスを比較用の形にそろえます。大文字小文字は区別しません。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
