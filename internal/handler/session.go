package handler

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/headachelog/internal/logging"
	"github.com/headachelog/internal/service"
)

const (
	// SessionCookieName 是 gin-contrib/sessions 使用的 cookie 名。
	SessionCookieName = "headachelog_session"

	cookieKeySessionID = "sid"
	cookieKeyUserID    = "user_id"
	cookieKeyEmail     = "email"
	cookieKeyDeviceID  = "device_id"
	cookieKeyLocal     = "local"

	sessionContextKey = "__journal_session"
)

// SessionRequired 为请求挂上服务端会话。会话被回收或进程重启后，
// 按 cookie 中保存的身份重新登录，编辑器回到今天。
func (a *API) SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie := sessions.Default(c)
		sid, _ := cookie.Get(cookieKeySessionID).(string)

		s, created := a.sessions.GetOrCreate(sid)
		logging.Extend(c, "session", s.ID)
		if created {
			cookie.Set(cookieKeySessionID, s.ID)
			if err := cookie.Save(); err != nil {
				respondError(c, http.StatusInternalServerError, "failed to save session")
				c.Abort()
				return
			}
			if id, ok := identityFromCookie(cookie); ok {
				if err := s.SignIn(c.Request.Context(), id); err != nil {
					logging.From(c).Warn("restoring identity failed", "error", err)
				}
			}
		}

		c.Set(sessionContextKey, s)
		c.Next()
	}
}

func identityFromCookie(cookie sessions.Session) (service.Identity, bool) {
	if userID, ok := cookie.Get(cookieKeyUserID).(uint); ok && userID != 0 {
		email, _ := cookie.Get(cookieKeyEmail).(string)
		return service.Identity{UserID: userID, Email: email}, true
	}
	local, _ := cookie.Get(cookieKeyLocal).(bool)
	if deviceID, ok := cookie.Get(cookieKeyDeviceID).(string); ok && local && deviceID != "" {
		return service.Identity{DeviceID: deviceID}, true
	}
	return service.Identity{}, false
}

func rememberIdentity(c *gin.Context, id service.Identity) error {
	cookie := sessions.Default(c)
	if id.Remote() {
		cookie.Set(cookieKeyUserID, id.UserID)
		cookie.Set(cookieKeyEmail, id.Email)
		cookie.Set(cookieKeyLocal, false)
	} else {
		cookie.Delete(cookieKeyUserID)
		cookie.Delete(cookieKeyEmail)
		cookie.Set(cookieKeyDeviceID, id.DeviceID)
		cookie.Set(cookieKeyLocal, true)
	}
	return cookie.Save()
}

// forgetIdentity 清除登录状态，device_id 保留给下一次本地使用。
func forgetIdentity(c *gin.Context) error {
	cookie := sessions.Default(c)
	cookie.Delete(cookieKeyUserID)
	cookie.Delete(cookieKeyEmail)
	cookie.Set(cookieKeyLocal, false)
	return cookie.Save()
}

func currentSession(c *gin.Context) *service.Session {
	if v, ok := c.Get(sessionContextKey); ok {
		if s, ok := v.(*service.Session); ok {
			return s
		}
	}
	return nil
}

// withSession 取出会话，缺失时直接返回 500。
func withSession(c *gin.Context) (*service.Session, context.Context, bool) {
	s := currentSession(c)
	if s == nil {
		respondError(c, http.StatusInternalServerError, "session middleware not installed")
		return nil, nil, false
	}
	return s, c.Request.Context(), true
}
