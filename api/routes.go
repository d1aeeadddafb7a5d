package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/polyrabbit/cross-ticker/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.GET("/ws", s.ws)

	v1 := s.engine.Group("/api/v1")
	v1.GET("/snapshot", s.snapshot)
	v1.GET("/snapshot/:asset", s.assetSnapshot)
	v1.POST("/refresh", s.refresh)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) latest(c *gin.Context) (*model.Snapshot, bool) {
	snapshot, err := s.store.Latest()
	if errors.Is(err, store.ErrNoSnapshot) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return snapshot, true
}

func (s *Server) snapshot(c *gin.Context) {
	if snapshot, ok := s.latest(c); ok {
		c.JSON(http.StatusOK, snapshot)
	}
}

type assetView struct {
	Asset    model.AssetSymbol                   `json:"asset"`
	TakenAt  time.Time                           `json:"taken_at"`
	Quotes   map[model.SourceID]model.PriceQuote `json:"quotes"`
	Failures map[model.SourceID]*model.Failure   `json:"failures,omitempty"`
}

// assetSnapshot answers with one asset's price from every source
func (s *Server) assetSnapshot(c *gin.Context) {
	asset, err := model.ParseAssetSymbol(c.Param("asset"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snapshot, ok := s.latest(c)
	if !ok {
		return
	}
	view := assetView{Asset: asset, TakenAt: snapshot.TakenAt, Quotes: snapshot.ByAsset(asset)}
	for source, result := range snapshot.BySource {
		failure := result.Failures[asset]
		if failure == nil {
			failure = result.Failure
		}
		if failure == nil {
			continue
		}
		if view.Failures == nil {
			view.Failures = make(map[model.SourceID]*model.Failure)
		}
		view.Failures[source] = failure
	}
	c.JSON(http.StatusOK, view)
}

// refresh schedules a cycle, ?exchange= (repeated or comma-separated) narrows it to those sources
func (s *Server) refresh(c *gin.Context) {
	var sources []string
	for _, param := range c.QueryArray("exchange") {
		for _, name := range strings.Split(param, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			official, ok := s.exchangeName(name)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown exchange " + name})
				return
			}
			sources = append(sources, official)
		}
	}
	s.refresher.Trigger(sources...)
	if len(sources) == 0 {
		sources = s.exchanges
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh scheduled", "exchanges": sources})
}

func (s *Server) exchangeName(name string) (string, bool) {
	for _, official := range s.exchanges {
		if strings.EqualFold(official, name) {
			return official, true
		}
	}
	return "", false
}

func (s *Server) ws(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	cl := &client{send: make(chan []byte, 16)}
	if !s.hub.join(cl) {
		conn.Close()
		return
	}
	// New clients get the current snapshot right away
	if snapshot, err := s.store.Latest(); err == nil {
		if b, err := json.Marshal(snapshot); err == nil {
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				logrus.WithError(err).Debug("Failed to send latest snapshot")
			}
		}
	}

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		defer conn.Close()

		for msg := range cl.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.leave(cl)
	<-writeDone
}
