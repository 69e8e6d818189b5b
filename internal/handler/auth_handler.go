package handler

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/headachelog/internal/logging"
	"github.com/headachelog/internal/service"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Identity *service.Identity    `json:"identity"`
	Editor   service.EditorStatus `json:"editor"`
	Entries  int                  `json:"entries"`
}

func sessionPayload(s *service.Session) sessionResponse {
	return sessionResponse{
		Identity: s.Identity(),
		Editor:   s.Editor().Status(),
		Entries:  s.Store().Len(),
	}
}

// GetSession 返回当前身份与编辑器状态。
func (a *API) GetSession(c *gin.Context) {
	s, _, ok := withSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionPayload(s))
}

// SignUp 注册远端账号并切换到该身份。
func (a *API) SignUp(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}

	id, err := a.auth.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	a.switchIdentity(c, s, id, http.StatusCreated)
}

// SignIn 登录远端账号。
func (a *API) SignIn(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}

	id, err := a.auth.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	a.switchIdentity(c, s, id, http.StatusOK)
}

// UseLocal 切换到本设备的本地缓存，设备 ID 保存在 cookie 中。
func (a *API) UseLocal(c *gin.Context) {
	s, _, ok := withSession(c)
	if !ok {
		return
	}
	deviceID, _ := sessions.Default(c).Get(cookieKeyDeviceID).(string)
	if _, err := uuid.Parse(deviceID); err != nil {
		deviceID = uuid.NewString()
	}
	a.switchIdentity(c, s, service.Identity{DeviceID: deviceID}, http.StatusOK)
}

// SignOut 退出当前身份；设备 ID 保留，以便之后继续使用本地缓存。
func (a *API) SignOut(c *gin.Context) {
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}
	if err := s.SignOut(ctx); err != nil {
		logging.From(c).Warn("sign out handler failed", "error", err)
	}
	if err := forgetIdentity(c); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to save session")
		return
	}
	c.JSON(http.StatusOK, sessionPayload(s))
}

func (a *API) switchIdentity(c *gin.Context, s *service.Session, id service.Identity, status int) {
	if err := s.SignIn(c.Request.Context(), id); err != nil {
		handleServiceError(c, err)
		return
	}
	if err := rememberIdentity(c, id); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to save session")
		return
	}
	logging.From(c).Info("identity switched", "identity", id.Label())
	c.JSON(status, sessionPayload(s))
}
