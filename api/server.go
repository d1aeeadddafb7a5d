package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/polyrabbit/cross-ticker/store"
	"github.com/sirupsen/logrus"
)

// Refresher asks for an out-of-band refresh cycle over sources, all of them when none is given
type Refresher interface {
	Trigger(sources ...string)
}

type Server struct {
	engine    *gin.Engine
	store     *store.MemoryStore
	hub       *Hub
	refresher Refresher
	exchanges []string
	upgrader  websocket.Upgrader
}

// NewServer serves memory, exchanges are the names POST /api/v1/refresh accepts
func NewServer(memory *store.MemoryStore, refresher Refresher, exchanges []string, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.SetTrustedProxies(nil)
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Upgrade", "Connection"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	s := &Server{
		engine:    engine,
		store:     memory,
		hub:       NewHub(),
		refresher: refresher,
		exchanges: exchanges,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start feeds the websocket hub from the memory store until ctx is done
func (s *Server) Start(ctx context.Context) {
	updates, unsubscribe := s.store.Subscribe(16)
	go func() {
		defer unsubscribe()
		s.hub.Run(ctx, updates)
	}()
}

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	s.Start(ctx)
	server := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Serving snapshots on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("Served request")
	}
}
