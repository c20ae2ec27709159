package panel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/leap-se/bitmask-client/internal/account"
	"github.com/leap-se/bitmask-client/internal/bootstrap"
	"github.com/leap-se/bitmask-client/internal/metrics"
	"go.uber.org/zap"
)

// RouterConfig holds panel API configuration.
type RouterConfig struct {
	CORSOrigins []string
}

// accountView is the JSON form of an account. The session id stays private.
type accountView struct {
	Address       string `json:"address"`
	Domain        string `json:"domain"`
	Userpart      string `json:"userpart"`
	Authenticated bool   `json:"authenticated"`
}

func viewOf(a *account.Account) *accountView {
	if a == nil {
		return nil
	}
	return &accountView{
		Address:       a.Address(),
		Domain:        a.Domain(),
		Userpart:      a.Userpart(),
		Authenticated: a.Authenticated(),
	}
}

type propertiesView struct {
	InitialAccount *accountView `json:"initial_account,omitempty"`
	ShowLogin      bool         `json:"show_login,omitempty"`
}

type panelView struct {
	Panel      string         `json:"panel"`
	Properties propertiesView `json:"properties"`
	Error      string         `json:"error,omitempty"`
	UpdatedAt  *time.Time     `json:"updated_at,omitempty"`
}

// Handler serves the panel API.
type Handler struct {
	switcher *Switcher
	registry *account.Registry
	logger   *zap.Logger
}

// NewHandler creates a new Handler.
func NewHandler(sw *Switcher, registry *account.Registry, logger *zap.Logger) *Handler {
	return &Handler{switcher: sw, registry: registry, logger: logger}
}

// Register mounts the panel routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/panel", h.Panel)
	rg.DELETE("/panel/error", h.HideError)
	rg.GET("/accounts", h.Accounts)
}

// Panel handles GET /panel and returns the shown panel and the last error.
func (h *Handler) Panel(c *gin.Context) {
	snap := h.switcher.Snapshot()
	v := panelView{
		Panel: string(snap.Panel),
		Properties: propertiesView{
			InitialAccount: viewOf(snap.Props.InitialAccount),
			ShowLogin:      snap.Props.ShowLogin,
		},
	}
	if snap.Err != nil {
		v.Error = snap.Err.Error()
	}
	if !snap.UpdatedAt.IsZero() {
		v.UpdatedAt = &snap.UpdatedAt
	}
	c.JSON(http.StatusOK, v)
}

// HideError handles DELETE /panel/error.
func (h *Handler) HideError(c *gin.Context) {
	h.switcher.HideError()
	c.Status(http.StatusNoContent)
}

// Accounts handles GET /accounts. The current account comes first.
func (h *Handler) Accounts(c *gin.Context) {
	list := h.registry.List()
	metrics.SetAccounts(len(list))

	out := make([]*accountView, 0, len(list))
	for _, a := range list {
		out = append(out, viewOf(a))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

// NewRouter builds the gin engine serving the panel API, health and metrics.
// A panic in any handler is recovered and shown as an error.
func NewRouter(sw *Switcher, registry *account.Registry, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, rec any) {
		err := &bootstrap.PanicError{Value: rec}
		logger.Error("panel handler panicked", zap.Error(err), zap.String("path", c.Request.URL.Path))
		sw.ShowError(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}))

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: !containsWildcard(cfg.CORSOrigins),
			MaxAge:           12 * time.Hour,
		}))
	}

	router.Use(metrics.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	NewHandler(sw, registry, logger).Register(router.Group("/api"))
	return router
}

// Serve runs router on addr until ctx is cancelled, then shuts the server
// down gracefully.
func Serve(ctx context.Context, addr string, router http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("panel API listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("panel server on %s: %w", addr, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("panel shutdown error", zap.Error(err))
	}
	return <-errCh
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
