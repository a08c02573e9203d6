package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Subscribed symbols; empty means every symbol.
	mu      sync.RWMutex
	symbols map[string]bool
}

// clientMsg is what peers send: SUBSCRIBE / UNSUBSCRIBE a symbol, or a
// ping carrying the client's clock.
type clientMsg struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
	Ping   int64  `json:"ping"`
}

func newClient(conn *websocket.Conn, hub *Hub) *Client {
	conn.EnableWriteCompression(true)
	return &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     hub,
		symbols: make(map[string]bool),
	}
}

func (c *Client) wants(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.symbols) == 0 || c.symbols[symbol]
}

// replayAfter queues buffered envelopes newer than seq. Called before the
// pumps start.
func (c *Client) replayAfter(seq int64) {
	for _, e := range c.hub.replay.After(seq, c.wants) {
		select {
		case c.send <- e.Data:
		default:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg clientMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}

		switch msg.Type {
		case "SUBSCRIBE":
			if msg.Symbol != "" {
				c.mu.Lock()
				c.symbols[msg.Symbol] = true
				c.mu.Unlock()
			}
		case "UNSUBSCRIBE":
			c.mu.Lock()
			delete(c.symbols, msg.Symbol)
			c.mu.Unlock()
		default:
			if msg.Ping > 0 {
				pong, _ := json.Marshal(map[string]interface{}{
					"type":      "pong",
					"ping":      msg.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				select {
				case c.send <- pong:
				default:
				}
			}
		}
	}
}
