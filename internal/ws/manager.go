package ws

import (
	"context"
	"log/slog"
	"supmap-directions/internal/navigation"
	"supmap-directions/internal/session"
	"sync"

	"github.com/coder/websocket"
)

type Manager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *slog.Logger

	routes       session.RouteFetcher
	sessionCache navigation.SessionCache
	padding      navigation.EdgePadding
}

func NewManager(ctx context.Context, logger *slog.Logger, routes session.RouteFetcher, sessionCache navigation.SessionCache, padding navigation.EdgePadding) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		clients:      make(map[string]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
		routes:       routes,
		sessionCache: sessionCache,
		padding:      padding,
	}
}

func (m *Manager) Start() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			previous, ok := m.clients[client.ID]
			m.clients[client.ID] = client
			m.mu.Unlock()
			if ok && previous != client {
				m.logger.Info("session taken over by a new connection", "clientID", client.ID)
				go previous.Close()
			}
			m.logger.Info("client connected", "clientID", client.ID)
		case client := <-m.unregister:
			m.mu.Lock()
			if current, ok := m.clients[client.ID]; ok && current == client {
				delete(m.clients, client.ID)
				m.logger.Info("client disconnected", "clientID", client.ID)
			}
			m.mu.Unlock()
		case <-m.ctx.Done():
			return
		}
	}
}

// HandleNewConnection starts serving a device connection for the session.
func (m *Manager) HandleNewConnection(sessionID string, conn *websocket.Conn) {
	NewClient(sessionID, conn, m).Start()
}

func (m *Manager) add(c *Client) {
	select {
	case m.register <- c:
	case <-m.ctx.Done():
		go c.Close()
	}
}

func (m *Manager) remove(c *Client) {
	select {
	case m.unregister <- c:
	case <-m.ctx.Done():
	}
}

// ForEachClient calls fn for every connected client while holding the read lock.
// fn must not block.
func (m *Manager) ForEachClient(fn func(*Client)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, client := range m.clients {
		fn(client)
	}
}

func (m *Manager) forceDisconnect(c *Client) {
	c.Close()
}

func (m *Manager) Shutdown() {
	m.cancel()
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}
