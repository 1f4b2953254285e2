package api

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/essenlikcia/health-tracker/internal/model"
)

const (
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
)

// Hub manages WebSocket connections and broadcasts evaluated samples and
// status transitions to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	events  chan hubEvent
}

// hubEvent is a register or unregister request. A single channel keeps the
// two in the order the connection issued them, so a fast disconnect can
// never be processed before its own registration.
type hubEvent struct {
	c   *wsClient
	off bool
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool // subscribed metric names; empty = all
	mu   sync.Mutex
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		events:  make(chan hubEvent, 32),
	}
}

// Run processes register/unregister events.
func (h *Hub) Run() {
	for ev := range h.events {
		h.mu.Lock()
		if ev.off {
			// Close only while removing a live member: membership and an
			// open send channel stay in lockstep, so broadcasts never hit
			// a closed channel.
			if _, ok := h.clients[ev.c]; ok {
				delete(h.clients, ev.c)
				close(ev.c.send)
			}
		} else {
			h.clients[ev.c] = struct{}{}
		}
		h.mu.Unlock()
	}
}

func (h *Hub) register(c *wsClient)   { h.events <- hubEvent{c: c} }
func (h *Hub) unregister(c *wsClient) { h.events <- hubEvent{c: c, off: true} }

// BroadcastSample sends one evaluated sample to subscribed clients. Failed
// acquisitions carry a null value; NaN has no JSON encoding and would
// otherwise drop exactly the events a subscriber watches for.
func (h *Hub) BroadcastSample(sample model.Sample, status model.Status) {
	h.broadcast(sample.Metric, map[string]interface{}{
		"type": "sample",
		"sample": map[string]interface{}{
			"metric":    sample.Metric,
			"value":     jsonValue(sample.Value, sample.OK),
			"ok":        sample.OK,
			"timestamp": sample.Timestamp,
		},
		"status": status,
	})
}

// BroadcastTransition sends a status change to subscribed clients.
func (h *Hub) BroadcastTransition(tr model.Transition) {
	h.broadcast(tr.Metric, map[string]interface{}{
		"type": "transition",
		"transition": map[string]interface{}{
			"metric":    tr.Metric,
			"from":      tr.From,
			"to":        tr.To,
			"value":     jsonValue(tr.Value, true),
			"timestamp": tr.Timestamp,
		},
	})
}

func jsonValue(v float64, ok bool) *float64 {
	if !ok || math.IsNaN(v) {
		return nil
	}
	return &v
}

func (h *Hub) broadcast(metric string, payload map[string]interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[ws] encode broadcast: %v", err)
		return
	}

	for c := range h.clients {
		if !c.subscribed(metric) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// client too slow, skip
		}
	}
}

func (c *wsClient) subscribed(metric string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) == 0 {
		return true // no filter = receive all
	}
	return c.subs[metric]
}

func (c *wsClient) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

// HandleWS handles WebSocket upgrade and manages the connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for local tooling
	})
	if err != nil {
		log.Printf("[ws] accept error: %v", err)
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
		subs: make(map[string]bool),
	}

	h.register(client)

	ctx := r.Context()
	go client.pingLoop(ctx)
	go client.writePump(ctx)
	client.readPump(ctx)
}

func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	for {
		readCtx, cancel := context.WithTimeout(ctx, readTimeout)
		_, data, err := c.conn.Read(readCtx)
		cancel()
		if err != nil {
			return
		}
		// Parse subscription messages
		var msg struct {
			Type    string   `json:"type"`
			Metrics []string `json:"metrics"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "subscribe":
			c.mu.Lock()
			for _, m := range msg.Metrics {
				c.subs[m] = true
			}
			c.mu.Unlock()
		case "unsubscribe":
			c.mu.Lock()
			for _, m := range msg.Metrics {
				delete(c.subs, m)
			}
			c.mu.Unlock()
		}
	}
}

func (c *wsClient) writePump(ctx context.Context) {
	for data := range c.send {
		if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
			return
		}
	}
}
