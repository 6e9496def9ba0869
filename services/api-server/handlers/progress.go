package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ProgressEvent 機台完成事件，推送給進度看板
type ProgressEvent struct {
	SessionID   string         `json:"session_id"`
	Tester      string         `json:"tester"`
	MachineCode string         `json:"machine_code"`
	Series      string         `json:"series"`
	Progress    map[string]int `json:"progress"`
	State       string         `json:"state"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ProgressHub WebSocket連線管理
// 每次完成機台廣播一個事件；寫入失敗的連線直接移除
type ProgressHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
}

// NewProgressHub 建立進度廣播中樞
func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 看板與表單可能部署在不同來源
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handle 升級連線並註冊到中樞
func (h *ProgressHub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket升級失敗: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	// 讀取迴圈只用來偵測連線關閉
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast 向所有連線廣播事件
func (h *ProgressHub) Broadcast(event *ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// remove 關閉並移除連線
func (h *ProgressHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()
	delete(h.clients, conn)
}

// ProgressWS 進度看板的WebSocket端點
func (h *Handlers) ProgressWS(c *gin.Context) {
	h.hub.Handle(c)
}
