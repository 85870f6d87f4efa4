package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   如何把傳輸層（接受連接、訊框收發）與協定狀態機乾淨地隔開？
//
// 設計方案：
//   ✅ Hub 模式 - 集中管理所有連接，統一關閉
//   ✅ 身份在接受時推導 - Origin/User-Agent 只在這一刻可得
//   ✅ 讀寫分離 - readPump 解碼並轉交路由器，writePump 發送與心跳
//   ✅ Ping/Pong 心跳 - 檢測死連接（54s/60s）
//   ✅ 緩衝 channel - 非同步發送（不阻塞路由器）

const (
	// writeWait 單次寫入的期限
	writeWait = 10 * time.Second

	// sendBufferSize 每條連接的發送緩衝
	sendBufferSize = 256
)

// Hub WebSocket 連接中心
//
// 每條連接各自獨立：一則入站訊息對應一次路由器調用，
// 同房間 / 同身份的互斥由註冊表與房間鎖負責，Hub 不做序列化。
type Hub struct {
	router       *SessionRouter
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	connections  map[string]*Connection // connID -> Connection
	mu           sync.RWMutex
	pingInterval time.Duration
	pongWait     time.Duration
}

// Connection 一條 WebSocket 連接與其綁定的身份令牌
type Connection struct {
	ID        string // 診斷用連接識別碼
	Token     string // 連接標頭推導的身份令牌
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub
	LastPing  time.Time
	mu        sync.Mutex
	closeOnce sync.Once // 確保 channel 只關閉一次
}

// NewHub 創建 WebSocket Hub
func NewHub(router *SessionRouter, logger *slog.Logger, hb HeartbeatConfig) *Hub {
	pingInterval := time.Duration(hb.PingInterval)
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	pongWait := time.Duration(hb.PongWait)
	if pongWait <= 0 {
		pongWait = DefaultPongWait
	}

	return &Hub{
		router: router,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections:  make(map[string]*Connection),
		pingInterval: pingInterval,
		pongWait:     pongWait,
	}
}

// ServeWS 處理 WebSocket 連接
//
// 身份令牌在接受連接的當下從 Origin / User-Agent 推導一次，
// 之後的 id 指令用的就是這個令牌。推導是確定性的：同一客戶端的
// 多條連接（均未實作斷開仲裁）會解析到同一個身份。
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := DeriveToken(r.Header.Get("Origin"), r.Header.Get("User-Agent"))

	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	connection := &Connection{
		ID:       uuid.NewString(),
		Token:    token,
		Conn:     conn,
		Send:     make(chan []byte, sendBufferSize),
		Hub:      hub,
		LastPing: time.Now(),
	}

	hub.register(connection)

	go connection.writePump()
	go connection.readPump()

	hub.logger.Info("新連接建立",
		"conn_id", connection.ID,
		"token", token,
		"origin", r.Header.Get("Origin"))
}

// register 註冊連接
func (hub *Hub) register(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.connections[conn.ID] = conn
}

// unregister 取消註冊連接
func (hub *Hub) unregister(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if actual, exists := hub.connections[conn.ID]; exists && actual == conn {
		delete(hub.connections, conn.ID)
		conn.closeOnce.Do(func() {
			close(conn.Send)
		})
	}
}

// ConnectionCount 獲取目前連接數
func (hub *Hub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.connections)
}

// Stop 停止 Hub，關閉所有連接
func (hub *Hub) Stop() {
	hub.mu.Lock()
	for _, conn := range hub.connections {
		conn.closeOnce.Do(func() {
			close(conn.Send)
		})
		conn.Conn.Close()
	}
	hub.connections = make(map[string]*Connection)
	hub.mu.Unlock()

	hub.logger.Info("WebSocket Hub 已停止")
}

// readPump 讀取客戶端訊息並轉交路由器
//
// 心跳（讀取端）：pongWait 內沒有任何訊息（包括 Pong）就關閉連接，
// 收到 Pong 則重置期限。時間配置與 writePump 的 Ping 間隔配合
// （54s Ping + 6s 余量 = 60s 期限）。
func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
		c.Hub.logger.Info("連接已關閉", "conn_id", c.ID, "token", c.Token)
	}()

	if err := c.Conn.SetReadDeadline(time.Now().Add(c.Hub.pongWait)); err != nil {
		c.Hub.logger.Error("設置讀取期限失敗", "error", err)
	}

	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.Hub.pongWait)); err != nil {
			c.Hub.logger.Error("設置讀取期限失敗", "error", err)
		}
		c.mu.Lock()
		c.LastPing = time.Now()
		c.mu.Unlock()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"conn_id", c.ID,
					"token", c.Token)
			}
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		// 一則入站訊息對應一次路由器調用；nil 代表靜默丟棄
		if resp := c.Hub.router.Handle(c.Token, message); resp != nil {
			c.send(resp)
		}
	}
}

// send 序列化回應並排入發送佇列
//
// 時間戳（epoch 毫秒）在送出前的這一刻補上，路由器產生的回應
// 不帶時間資訊。
func (c *Connection) send(resp *Response) {
	resp.Timestamp = time.Now().UnixMilli()

	data, err := json.Marshal(resp)
	if err != nil {
		c.Hub.logger.Error("序列化回應失敗", "error", err, "conn_id", c.ID)
		return
	}

	select {
	case c.Send <- data:
	default:
		// 緩衝區滿：丟棄回應，避免慢客戶端阻塞讀取循環
		c.Hub.logger.Warn("連接緩衝區滿，丟棄回應", "conn_id", c.ID)
	}
}

// writePump 發送訊息與心跳 Ping
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// Hub 關閉了通道，優雅關閉連接
				deadline := time.Now().Add(time.Second)
				if err := c.Conn.SetWriteDeadline(deadline); err == nil {
					_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				}
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量發送佇列中的訊息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					c.Hub.logger.Error("發送訊息失敗", "error", err)
					return
				}
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
