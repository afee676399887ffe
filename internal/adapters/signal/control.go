package signal

import (
	"strings"
	"time"

	"github.com/dkeye/Multiview/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SessionTokenKey is where POST /api/session keeps the bearer token.
const SessionTokenKey = "token"

// TokenFrom reads the bearer token from the query, the Authorization header or
// the cookie session, first match wins.
func TokenFrom(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	if h := c.GetHeader("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	if _, ok := c.Get(sessions.DefaultKey); ok {
		if t, ok := sessions.Default(c).Get(SessionTokenKey).(string); ok {
			return t
		}
	}
	return ""
}

// CloseCode is the WebSocket close status sent for an admission error.
func CloseCode(err error) int {
	if domain.KindOf(err) == domain.KindInternal || !domain.IsFatal(err) {
		return websocket.CloseInternalServerErr
	}
	return websocket.ClosePolicyViolation
}

func reject(ws *websocket.Conn, err error) {
	msg := websocket.FormatCloseMessage(CloseCode(err), domain.CloseReason(err))
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = ws.Close()
}
