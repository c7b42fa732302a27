package monitoring

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"injurywatch/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 512
)

// wsMessage 推送给仪表盘客户端的消息
type wsMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	State     UIState   `json:"state"`
}

// client 一个已连接的仪表盘客户端
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub WebSocket中心：跟踪客户端并广播UI状态快照
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	upgrader   websocket.Upgrader
	done       chan struct{}
}

// NewHub 创建WebSocket中心
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
}

// Run 运行中心事件循环，直到Stop被调用
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			logger.S().Infow("dashboard client connected", "total", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			logger.S().Infow("dashboard client disconnected", "total", len(h.clients))

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// 慢客户端直接断开，不能阻塞广播
					close(c.send)
					delete(h.clients, c)
				}
			}

		case <-h.done:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		}
	}
}

// Stop 停止事件循环并断开所有客户端
func (h *Hub) Stop() {
	close(h.done)
}

// BroadcastState 将一次状态迁移广播给所有客户端
func (h *Hub) BroadcastState(state UIState) {
	msg := wsMessage{Type: "ui_state", Timestamp: time.Now(), State: state}
	data, err := json.Marshal(msg)
	if err != nil {
		logger.S().Warnw("failed to marshal state broadcast", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logger.S().Warn("broadcast channel full, dropping state update")
	}
}

// ServeWS 处理仪表盘WebSocket升级请求
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.S().Warnw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	select {
	case h.register <- c:
	case <-h.done:
		// 中心已停止，升级后的连接直接关掉
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
