package api

import (
	"context"
	"encoding/json"

	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/sirupsen/logrus"
)

// Hub fans every published snapshot out to the connected websocket clients
type Hub struct {
	register   chan *client
	unregister chan *client
	clients    map[*client]struct{}
	done       chan struct{}
}

type client struct {
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]struct{}),
		done:       make(chan struct{}),
	}
}

// Run broadcasts snapshots received from updates until ctx is done or updates is closed
func (h *Hub) Run(ctx context.Context, updates <-chan *model.Snapshot) {
	defer close(h.done)
	defer func() {
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			b, err := json.Marshal(snapshot)
			if err != nil {
				logrus.WithError(err).Warn("Failed to encode snapshot for websocket clients")
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- b:
				default:
					// Slow client, drop it rather than hold up the others
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// join returns false once the hub has stopped
func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
