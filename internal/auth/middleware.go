package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoadSession はクッキーのセッションIDからサーバー側のセッションを復元するミドルウェアです。
// 無効なIDはクッキーから取り除き、未発行として扱います。
func (m *Manager) LoadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie := sessions.Default(c)
		id, _ := cookie.Get(sessionKeyID).(string)
		if id == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		sess, err := m.sessions.Get(ctx, id)
		if err != nil {
			m.logger.Error("failed to load session", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    "SESSION_LOAD_FAILED",
				"message": "Server Error",
			})
			return
		}
		if sess == nil {
			cookie.Delete(sessionKeyID)
			_ = cookie.Save()
			c.Next()
			return
		}

		if err := m.sessions.Touch(ctx, sess); err != nil {
			m.logger.Warn("failed to touch session", zap.Error(err))
		}
		c.Set(ContextSessionKey, sess)
		c.Next()
	}
}

// VerifyCSRF は X-CSRF-Token ヘッダーを検証するミドルウェアです。
// セッションを持たないリクエストには偽造対象がないため検証しません。
func (m *Manager) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		sess := currentSession(c)
		if sess == nil {
			c.Next()
			return
		}

		received := c.GetHeader(csrfHeader)
		if sess.CSRFToken == "" || subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(received)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_INVALID",
				"message": "CSRF token mismatch.",
			})
			return
		}

		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
