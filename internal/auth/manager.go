// Package auth は登録・ログイン・ログアウトと、それを公開する HTTP ハンドラーを提供します。
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/spa-auth/internal/session"
)

const (
	SessionCookieName = "spa_session"
	sessionKeyID      = "sid"

	csrfHeader = "X-CSRF-Token"
)

// ContextSessionKey は、ハンドラー間で現在のセッションを共有するためのキーです。
const ContextSessionKey = "auth.session"

const (
	msgRegistered         = "You have successfully registered & logged in!"
	msgLoggedIn           = "Successfully Logged In!"
	msgLoggedOut          = "Logout"
	msgInvalidCredentials = "Your provided credentials do not match in our records."
)

// SessionLoader はミドルウェアがクッキーからセッションを復元するための操作です。
type SessionLoader interface {
	Start(ctx context.Context) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Touch(ctx context.Context, sess *session.Session) error
}

// Manager は Service を HTTP に公開します。
// クッキーには署名付きでセッションIDのみを保存し、状態はサーバー側に置きます。
type Manager struct {
	service  *Service
	sessions SessionLoader
	logger   *zap.Logger
}

// NewManager は認証マネージャーを作成します。
func NewManager(service *Service, sessions SessionLoader, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		service:  service,
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterRoutes は認証 API を登録します。
func (m *Manager) RegisterRoutes(r gin.IRouter) {
	r.Use(m.LoadSession(), m.VerifyCSRF())
	r.GET("/csrf-token", m.CSRFToken)
	r.POST("/register", m.Register)
	r.POST("/login", m.Login)
	r.GET("/user", m.User)
	r.POST("/logout", m.Logout)
}

// SessionOptions はクッキーストアに設定する属性を返します。
func SessionOptions(maxAgeSeconds int, secure bool) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   maxAgeSeconds,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func currentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(ContextSessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}

// commitSession はセッションIDをクッキーに書き込み、CSRF トークンをヘッダーで返します。
// 失敗時はエラーレスポンスを書き込んで false を返します。
func (m *Manager) commitSession(c *gin.Context, sess *session.Session) bool {
	cookie := sessions.Default(c)
	if sess == nil {
		cookie.Delete(sessionKeyID)
	} else {
		cookie.Set(sessionKeyID, sess.ID)
		c.Header(csrfHeader, sess.CSRFToken)
	}
	c.Set(ContextSessionKey, sess)

	if err := cookie.Save(); err != nil {
		m.respondError(c, fmt.Errorf("failed to save session cookie: %w", err))
		return false
	}
	return true
}

func (m *Manager) respondError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": verr.Error(),
			"errors":  verr.Errors,
		})
	case errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusOK, gin.H{
			"status":  "error",
			"message": msgInvalidCredentials,
		})
	default:
		_ = c.Error(err)
		m.logger.Error("auth request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "Server Error",
		})
	}
}
