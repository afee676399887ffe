package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Multiview/internal/app/orch"
	"github.com/dkeye/Multiview/internal/core"
	"github.com/dkeye/Multiview/internal/domain"
	"github.com/dkeye/Multiview/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("connection closed")

// Admitter turns a bearer token into an identity and role.
type Admitter interface {
	Admit(ctx context.Context, token string) (domain.Identity, domain.Role, error)
}

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
	RateLimit  int
	RateWindow time.Duration
	// AllowedOrigin restricts browser origins; empty allows any.
	AllowedOrigin string
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Gate    Admitter
	Metrics *metrics.Metrics

	opts     Options
	limiter  *EventRateLimiter
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, gate Admitter, m *metrics.Metrics, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	ctl := &SignalWSController{
		Orch:    o,
		Gate:    gate,
		Metrics: m,
		opts:    opts,
		limiter: NewEventRateLimiter(opts.RateLimit, opts.RateWindow),
	}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return ctl.opts.AllowedOrigin == "" || origin == "" || origin == ctl.opts.AllowedOrigin
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request, admits the caller and runs its pumps.
// Admission failures are reported in the close frame and the socket is dropped.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := TokenFrom(c)

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	identity, role, err := ctl.Gate.Admit(c.Request.Context(), token)
	if err != nil {
		reason := domain.CloseReason(err)
		ctl.Metrics.Admission(reason)
		log.Warn().Err(err).Str("module", "signal").Str("reason", reason).Msg("admission rejected")
		reject(ws, err)
		return
	}
	ctl.Metrics.Admission("admitted")

	sid := domain.ConnID(uuid.NewString())
	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	sess := &core.Session{ID: sid, Identity: identity, Role: role, Signal: conn}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.Bind(sess, cancel)
	if err := ctl.Orch.Connect(sid); err != nil {
		cancel()
		ctl.Orch.Registry.Leave(sid)
		reject(ws, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", identity.ID).Str("role", string(role)).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
