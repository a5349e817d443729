// Package websocket pushes live telemetry snapshots to connected clients.
// The protocol is one-way: the server broadcasts, clients only read.
package websocket

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/syncstream/netpulse/internal/logging"
)

// SnapshotFunc builds the payload for one push. It is called once per push
// interval, not per client.
type SnapshotFunc func() any

type Server struct {
	upgrader       websocket.Upgrader
	snapshot       SnapshotFunc
	clients        map[*websocket.Conn]*clientConn
	allowedOrigins []string
	pushInterval   time.Duration
	pingInterval   time.Duration
	stopCh         chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
	mu             sync.RWMutex
}

type clientConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewServer(snapshot SnapshotFunc, pushInterval, pingInterval time.Duration) *Server {
	server := &Server{
		snapshot:     snapshot,
		clients:      make(map[*websocket.Conn]*clientConn),
		pushInterval: pushInterval,
		pingInterval: pingInterval,
		stopCh:       make(chan struct{}),
	}
	server.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return server.isAllowedOrigin(r.Header.Get("Origin"), r.Host)
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return server
}

func (s *Server) SetAllowedOrigins(origins []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowedOrigins = origins
}

// Start launches the push and ping loops.
func (s *Server) Start() {
	s.wg.Add(2)
	go s.pushLoop()
	go s.pingLoop()
}

func (s *Server) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]*clientConn)
}

// Handle upgrades the request and keeps the connection registered until the
// peer goes away. Reads are only for disconnect detection.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade error",
			logging.Field{Key: "error", Value: err},
			logging.Field{Key: "remote", Value: r.RemoteAddr})
		return
	}
	defer conn.Close()

	conn.SetReadLimit(4096)

	client := &clientConn{conn: conn}
	s.mu.Lock()
	s.clients[conn] = client
	s.mu.Unlock()

	if err := client.writeJSON(map[string]any{
		"type": "connected",
		"time": time.Now().Unix(),
	}); err != nil {
		s.removeClient(conn)
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.removeClient(conn)
}

// ClientCount reports how many connections are currently registered.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) pushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.broadcast()
		}
	}
}

func (s *Server) broadcast() {
	clients := s.clientList()
	if len(clients) == 0 {
		return
	}

	payload := struct {
		Type string `json:"type"`
		Data any    `json:"data"`
		Time int64  `json:"time"`
	}{
		Type: "snapshot",
		Data: s.snapshot(),
		Time: time.Now().Unix(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Warn("WebSocket snapshot marshal failed",
			logging.Field{Key: "error", Value: err})
		return
	}

	for _, client := range clients {
		if err := client.writeMessage(websocket.TextMessage, data); err != nil {
			s.removeClient(client.conn)
			client.conn.Close()
		}
	}
}

func (s *Server) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			for _, client := range s.clientList() {
				if err := client.writeMessage(websocket.PingMessage, nil); err != nil {
					s.removeClient(client.conn)
					client.conn.Close()
				}
			}
		}
	}
}

func (s *Server) clientList() []*clientConn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*clientConn, 0, len(s.clients))
	for _, client := range s.clients {
		list = append(list, client)
	}
	return list
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, conn)
}

func (s *Server) isAllowedOrigin(origin string, host string) bool {
	if origin == "" {
		return true
	}

	s.mu.RLock()
	allowedOrigins := append([]string(nil), s.allowedOrigins...)
	s.mu.RUnlock()

	if len(allowedOrigins) == 0 {
		return sameOrigin(origin, host)
	}

	originH := originHost(origin)
	for _, allowed := range allowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if allowed == "*" {
			return true
		}
		if strings.EqualFold(allowed, origin) {
			return true
		}
		if strings.HasPrefix(allowed, "*.") {
			suffix := strings.TrimPrefix(allowed, "*.")
			if originH != "" && (originH == suffix || strings.HasSuffix(originH, "."+suffix)) {
				return true
			}
		}
		if allowedH := originHost(allowed); allowedH != "" && originH != "" &&
			strings.EqualFold(allowedH, originH) {
			return true
		}
	}
	return false
}

func sameOrigin(origin string, host string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(stripHostPort(parsed.Host), stripHostPort(host))
}

func originHost(origin string) string {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return stripHostPort(parsed.Host)
}

func stripHostPort(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}

func (c *clientConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(v)
}

func (c *clientConn) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(messageType, data)
}
