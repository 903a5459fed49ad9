// Package notify pushes document change notifications to subscribers over
// WebSocket. The hub runs on its own net/http listener beside the fiber API
// and also serves in-process subscribers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/localnerve/crmsync/internal/logging"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/sirupsen/logrus"
)

// MessageType defines the type of notification
type MessageType string

const (
	// MessageTypeHello is sent once when a subscription is accepted
	MessageTypeHello MessageType = "hello"

	// MessageTypeDocument carries the full document after a change
	MessageTypeDocument MessageType = "document"
)

// Message is one notification frame
type Message struct {
	Type      MessageType      `json:"type"`
	Owner     string           `json:"owner,omitempty"`
	Document  *models.Snapshot `json:"document,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// ErrForbidden is returned by an Authorizer to refuse a subscription.
var ErrForbidden = errors.New("forbidden")

// Authorizer decides whether token may subscribe to owner's document.
type Authorizer func(ctx context.Context, token, owner string) error

// Config holds hub configuration
type Config struct {
	// Addr to listen on, e.g. ":3001". Port 0 picks a free port.
	Addr string

	// Authorize checks every WebSocket subscription. Nil accepts any token.
	Authorize Authorizer

	Logger *logrus.Entry
}

// Hub manages subscribers per owner and broadcasts document messages
type Hub struct {
	addr      string
	listener  net.Listener
	server    *http.Server
	authorize Authorizer

	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]struct{}
	local   map[string]map[uint64]func(*models.Snapshot)
	nextID  uint64

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *logrus.Entry
}

// NewHub creates a hub and starts its broadcast loop. Call Start to accept
// WebSocket subscribers and Stop to release everything.
func NewHub(cfg Config) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = logging.Component("notify")
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		addr:      cfg.Addr,
		authorize: cfg.Authorize,
		clients:   make(map[string]map[*websocket.Conn]struct{}),
		local:     make(map[string]map[uint64]func(*models.Snapshot)),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		log:       cfg.Logger,
	}
	h.wg.Add(1)
	go h.broadcastLoop()
	return h
}

// Handler returns the hub's HTTP routes.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWebSocket)
	mux.HandleFunc("/health", h.handleHealth)
	return mux
}

// Start begins accepting WebSocket subscribers
func (h *Hub) Start() error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.addr, err)
	}
	h.listener = ln
	h.server = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.log.Infof("Notify hub listening on %s", ln.Addr())
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.log.WithError(err).Error("Notify hub server error")
		}
	}()
	return nil
}

// Stop closes every subscriber and shuts the listener down
func (h *Hub) Stop() error {
	h.cancel()

	h.mu.Lock()
	for owner, conns := range h.clients {
		for conn := range conns {
			_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		}
		delete(h.clients, owner)
	}
	h.local = make(map[string]map[uint64]func(*models.Snapshot))
	h.mu.Unlock()

	var err error
	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := h.server.Shutdown(ctx); serr != nil {
			err = fmt.Errorf("notify hub shutdown error: %w", serr)
		}
	}
	h.wg.Wait()
	return err
}

// Publish queues doc for every subscriber of owner. It never blocks; a full
// queue drops the message.
func (h *Hub) Publish(owner string, doc *models.Snapshot) {
	msg := Message{Type: MessageTypeDocument, Owner: owner, Document: doc, Timestamp: time.Now()}
	select {
	case h.broadcast <- msg:
	case <-h.ctx.Done():
	default:
		h.log.WithField("owner", owner).Warn("Broadcast queue full, dropping notification")
	}
}

// SubscribeLocal registers an in-process subscriber for owner. The returned
// function removes it.
func (h *Hub) SubscribeLocal(owner string, fn func(*models.Snapshot)) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.local[owner] == nil {
		h.local[owner] = make(map[uint64]func(*models.Snapshot))
	}
	h.local[owner][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.local[owner], id)
			if len(h.local[owner]) == 0 {
				delete(h.local, owner)
			}
			h.mu.Unlock()
		})
	}
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.WithError(err).Error("Failed to marshal notification")
				continue
			}

			h.mu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients[msg.Owner]))
			for conn := range h.clients[msg.Owner] {
				conns = append(conns, conn)
			}
			locals := make([]func(*models.Snapshot), 0, len(h.local[msg.Owner]))
			for _, fn := range h.local[msg.Owner] {
				locals = append(locals, fn)
			}
			h.mu.RUnlock()

			if msg.Document != nil {
				for _, fn := range locals {
					doc := *msg.Document
					fn(&doc)
				}
			}
			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					h.log.WithError(err).Debug("Failed to send to subscriber")
					h.removeClient(msg.Owner, conn)
				}
			}
		}
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, "owner is required", http.StatusBadRequest)
		return
	}
	if h.authorize != nil {
		if err := h.authorize(r.Context(), bearerToken(r), owner); err != nil {
			h.log.WithError(err).WithField("owner", owner).Warn("Subscription refused")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	h.mu.Lock()
	if h.clients[owner] == nil {
		h.clients[owner] = make(map[*websocket.Conn]struct{})
	}
	h.clients[owner][conn] = struct{}{}
	h.mu.Unlock()

	hello, _ := json.Marshal(Message{Type: MessageTypeHello, Owner: owner, Timestamp: time.Now()})
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, hello)
	cancel()

	h.wg.Add(1)
	go h.readLoop(owner, conn)
}

// readLoop only detects disconnects; subscribers never send.
func (h *Hub) readLoop(owner string, conn *websocket.Conn) {
	defer h.wg.Done()
	defer h.removeClient(owner, conn)

	for {
		if _, _, err := conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(owner string, conn *websocket.Conn) {
	h.mu.Lock()
	if _, exists := h.clients[owner][conn]; !exists {
		h.mu.Unlock()
		return
	}
	delete(h.clients[owner], conn)
	if len(h.clients[owner]) == 0 {
		delete(h.clients, owner)
	}
	h.mu.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": h.ClientCount(),
	})
}

// Addr returns the listening address
func (h *Hub) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return h.addr
}

// ClientCount returns the number of WebSocket subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}
