package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Register は POST /register のハンドラーです。
func (m *Manager) Register(c *gin.Context) {
	var req RegisterInput
	if !m.bind(c, &req) {
		return
	}

	next, err := m.service.Register(c.Request.Context(), currentSession(c), req)
	if err != nil {
		m.respondError(c, err)
		return
	}
	if !m.commitSession(c, next) {
		return
	}

	// 登録時はユーザー情報を返さない
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": msgRegistered,
	})
}

// Login は POST /login のハンドラーです。
// 認証情報の不一致は 200 の status=error で返します。
func (m *Manager) Login(c *gin.Context) {
	var req LoginInput
	if !m.bind(c, &req) {
		return
	}

	user, next, err := m.service.Login(c.Request.Context(), currentSession(c), req)
	if err != nil {
		m.respondError(c, err)
		return
	}
	if !m.commitSession(c, next) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"data":    user,
		"message": msgLoggedIn,
	})
}

// User は GET /user のハンドラーです。未ログインなら data は null です。
func (m *Manager) User(c *gin.Context) {
	user, err := m.service.CurrentUser(c.Request.Context(), currentSession(c))
	if err != nil {
		m.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// Logout は POST /logout のハンドラーです。
func (m *Manager) Logout(c *gin.Context) {
	next, err := m.service.Logout(c.Request.Context(), currentSession(c))
	if err != nil {
		m.respondError(c, err)
		return
	}
	if !m.commitSession(c, next) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": msgLoggedOut,
	})
}

// CSRFToken は GET /csrf-token のハンドラーです。
// セッションがなければ未ログインのセッションを開始し、トークンをヘッダーで返します。
func (m *Manager) CSRFToken(c *gin.Context) {
	sess := currentSession(c)
	if sess == nil {
		started, err := m.sessions.Start(c.Request.Context())
		if err != nil {
			m.respondError(c, err)
			return
		}
		sess = started
	}
	if !m.commitSession(c, sess) {
		return
	}
	c.Status(http.StatusNoContent)
}

// bind はリクエストボディ（JSON またはフォーム）を読み込みます。
// 空のボディは全フィールド未入力として扱い、検証に任せます。
func (m *Manager) bind(c *gin.Context, dst any) bool {
	err := c.ShouldBind(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		verr := &ValidationError{}
		verr.Add(typeErr.Field, fmt.Sprintf(msgString, fieldLabel(typeErr.Field)))
		m.respondError(c, verr)
		return false
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"code":    "INVALID_INPUT",
		"message": "request body must be valid JSON or form data",
	})
	return false
}
