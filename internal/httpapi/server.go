// Package httpapi exposes the portal's three screens as JSON endpoints.
// Handlers are thin: state lives in the session manager, and every
// failure maps to one taxonomy kind with no state regression.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/snapetech/iptv-portal/internal/connlog"
	"github.com/snapetech/iptv-portal/internal/errs"
	"github.com/snapetech/iptv-portal/internal/ipresolve"
	"github.com/snapetech/iptv-portal/internal/provider"
	"github.com/snapetech/iptv-portal/internal/session"
)

// Server wires the session manager into HTTP handlers.
type Server struct {
	mgr      *session.Manager
	resolver *ipresolve.Resolver
	connLog  *connlog.Log // nil hides the connections listing
	log      *zap.Logger
}

func NewServer(mgr *session.Manager, resolver *ipresolve.Resolver, connLog *connlog.Log, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{mgr: mgr, resolver: resolver, connLog: connLog, log: log}
}

// Router builds the gin engine.
func (s *Server) Router() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/ip", s.getIP)
	api.POST("/login", s.login)

	authed := api.Group("", s.requireToken)
	authed.GET("/session", s.getSession)
	authed.POST("/provider", s.bindProvider)
	authed.GET("/catalog/:kind", s.browse)
	authed.POST("/catalog/:kind/reload", s.reloadCatalog)
	authed.POST("/logout", s.logout)
	if s.connLog != nil {
		authed.GET("/connections", s.connections)
	}

	return r
}

func (s *Server) requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Info("request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("took", time.Since(start)))
}

// getIP reports the resolver state and kicks a lookup; the login screen
// polls this until the IP lands.
func (s *Server) getIP(c *gin.Context) {
	s.resolver.Kick(c.Request.Context())
	if ip, ok := s.resolver.Current(); ok {
		c.JSON(http.StatusOK, gin.H{"ip": ip})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"pending": true})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}
	token, err := s.mgr.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// requireToken resolves the Bearer token; an unknown or expired token
// sends the client back to the login screen.
func (s *Server) requireToken(c *gin.Context) {
	const prefix = "Bearer "
	h := c.GetHeader("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
		return
	}
	c.Set("token", h[len(prefix):])
}

func token(c *gin.Context) string { return c.GetString("token") }

func (s *Server) getSession(c *gin.Context) {
	info, err := s.mgr.Snapshot(token(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"identity":    info.Identity,
		"state":       info.State,
		"active_kind": info.ActiveKind,
		"filters":     info.Filters,
		"binding":     bindingSummary(info.Binding),
	})
}

type bindRequest struct {
	URL string `json:"url" binding:"required"`
}

func (s *Server) bindProvider(c *gin.Context) {
	var req bindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}
	binding, err := s.mgr.BindProvider(c.Request.Context(), token(c), req.URL)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"binding": bindingSummary(binding)})
}

func (s *Server) browse(c *gin.Context) {
	res, err := s.mgr.Browse(c.Request.Context(), token(c),
		c.Param("kind"), c.Query("category"), c.Query("q"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"kind":       res.Kind,
		"entries":    res.Entries,
		"categories": res.Categories,
		"total":      res.Total,
		"degraded":   res.Degraded,
	})
}

func (s *Server) reloadCatalog(c *gin.Context) {
	if err := s.mgr.ReloadCatalog(token(c), c.Param("kind")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) logout(c *gin.Context) {
	if err := s.mgr.Logout(token(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) connections(c *gin.Context) {
	entries, err := s.connLog.Recent(c.Request.Context(), 100)
	if err != nil {
		s.log.Warn("connections listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "connlog_unavailable"})
		return
	}
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"login_username":    e.LoginUsername,
			"provider_username": e.ProviderUsername,
			"host_port":         e.HostPort,
			"created_at":        e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"connections": out})
}

func bindingSummary(b *provider.Binding) gin.H {
	if b == nil {
		return nil
	}
	return gin.H{
		"host":               b.HostPort,
		"account_username":   b.AccountUsername,
		"status":             b.Status,
		"expires_at":         b.ExpiresAt,
		"indefinite":         b.Indefinite(),
		"max_connections":    b.MaxConnections,
		"active_connections": b.ActiveConnections,
	}
}

// fail converts an error into its HTTP shape. Taxonomy kinds map to
// stable codes; session sentinels send the client to the right screen.
func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session_expired"})
		return
	}
	if errors.Is(err, session.ErrWrongState) {
		c.JSON(http.StatusConflict, gin.H{"error": "wrong_state"})
		return
	}

	kind := errs.KindOf(err)
	body := gin.H{"error": string(kind), "retryable": kind.Retryable()}
	var te *errs.Error
	if errors.As(err, &te) && te.ObservedIP != "" {
		body["observed_ip"] = te.ObservedIP
	}

	status := http.StatusInternalServerError
	switch kind {
	case errs.IPNotResolved:
		status = http.StatusServiceUnavailable
	case errs.DirectoryUnavailable:
		status = http.StatusServiceUnavailable
	case errs.InvalidCredentials:
		status = http.StatusUnauthorized
	case errs.IPNotAuthorized:
		status = http.StatusForbidden
	case errs.ProviderUnreachable, errs.ProviderBadResponse:
		status = http.StatusBadGateway
	case errs.ProviderLoginRejected:
		status = http.StatusUnprocessableEntity
	case "":
		s.log.Error("unclassified failure", zap.Error(err))
		body["error"] = "internal"
	}
	c.JSON(status, body)
}
