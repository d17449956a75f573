package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tokenWatch/internal/model"
)

// Store is what the HTTP surface needs from persistence.
type Store interface {
	TokenByName(ctx context.Context, name string) (model.Token, error)
	CreateAlertTarget(ctx context.Context, target model.PriceAlertTarget) (model.PriceAlertTarget, error)
	PriceHistory(ctx context.Context, tokenID int64, since time.Time) ([]model.PriceObservation, error)
}

// Options configures the router. Gatherer and TrackedTokens are optional;
// without them /metrics is not mounted and /health omits the token count.
type Options struct {
	Store         Store
	Gatherer      prometheus.Gatherer
	TrackedTokens func() int
	Logger        *zap.Logger
}

// Server serves the alert registration and price history endpoints.
type Server struct {
	store   Store
	tracked func() int
	logger  *zap.Logger
	now     func() time.Time
	router  *gin.Engine
}

// NewServer builds the router.
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		store:   opts.Store,
		tracked: opts.TrackedTokens,
		logger:  logger,
		now:     time.Now,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/health", s.health)
	router.POST("/price-alert/create", s.createPriceAlert)
	router.GET("/token-price/24h/:chain", s.last24hPrices)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	s.router = router
	return s, nil
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
