package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Multiview/internal/adapters/signal"
	"github.com/dkeye/Multiview/internal/app/orch"
	"github.com/dkeye/Multiview/internal/config"
	"github.com/dkeye/Multiview/internal/domain"
	"github.com/dkeye/Multiview/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const identityKey = "identity"

type Deps struct {
	Orch     *orch.Orchestrator
	Gate     signal.Admitter
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 12, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("MultiviewSessions", store))

	ctrl := signal.NewSignalWSController(deps.Orch, deps.Gate, deps.Metrics, signal.Options{
		ReadLimit:     cfg.ReadLimit,
		PingPeriod:    cfg.PingPeriod,
		SendBuffer:    cfg.SendBuffer,
		RateLimit:     cfg.Events.RateLimit,
		RateWindow:    cfg.Events.RateWindow,
		AllowedOrigin: cfg.FrontendURL,
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("remote", c.ClientIP()).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	h := &handlers{orch: deps.Orch, gate: deps.Gate, maxStreamAge: cfg.Streams.MaxAge}
	api.POST("/session", h.createSession)
	api.DELETE("/session", h.deleteSession)

	ops := api.Group("", requireObserver(deps.Gate))
	ops.GET("/streams", h.streams)
	ops.GET("/diagnostics", h.diagnostics)
	ops.POST("/maintenance/evict-stale", h.evictStale)

	return r
}

// requireObserver admits the request's bearer token and lets only observers through.
func requireObserver(gate signal.Admitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, role, err := gate.Admit(c.Request.Context(), signal.TokenFrom(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.CloseReason(err)})
			return
		}
		if role != domain.RoleObserver {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": string(domain.KindRoleMismatch)})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

type handlers struct {
	orch         *orch.Orchestrator
	gate         signal.Admitter
	maxStreamAge time.Duration
}

type sessionRequest struct {
	Token string `json:"token" binding:"required"`
}

// createSession stores a verified token in the cookie session so browser
// sockets can connect without putting it in the URL.
func (h *handlers) createSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": string(domain.KindMalformedPayload)})
		return
	}
	identity, role, err := h.gate.Admit(c.Request.Context(), req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.CloseReason(err)})
		return
	}
	s := sessions.Default(c)
	s.Set(signal.SessionTokenKey, req.Token)
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server-error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identity, "role": role})
}

func (h *handlers) deleteSession(c *gin.Context) {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	_ = s.Save()
	c.Status(http.StatusNoContent)
}

func (h *handlers) streams(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Streams.Stats())
}

func (h *handlers) diagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connections":  h.orch.Graph.Diagnostics(),
		"streams":      h.orch.Streams.Stats(),
		"observers":    h.orch.Registry.Count(domain.RoleObserver),
		"broadcasters": h.orch.Registry.Count(domain.RoleBroadcaster),
		"timestamp":    time.Now(),
	})
}

// evictStale runs stream eviction on demand. maxAge defaults to streams.max_age.
func (h *handlers) evictStale(c *gin.Context) {
	maxAge := h.maxStreamAge
	if q := c.Query("maxAge"); q != "" {
		d, err := time.ParseDuration(q)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "maxAge must be a duration like 10m"})
			return
		}
		maxAge = d
	}
	n := h.orch.Streams.EvictStale(maxAge)
	log.Info().Str("module", "adapters.http").Int("removed", n).Dur("max_age", maxAge).Msg("operator eviction")
	c.JSON(http.StatusOK, gin.H{"cleanedStreams": n, "timestamp": time.Now()})
}
