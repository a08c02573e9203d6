package gateway

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trading-platform/internal/metrics"
	"trading-platform/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub manages WebSocket clients and broadcasts emitted signals to them.
// Every envelope carries a hub-wide seq; clients reconnecting with
// ?last_seq=N are replayed what they missed from the replay buffer.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64

	replay  *ReplayBuffer
	metrics *metrics.Metrics // optional
}

// NewHub creates a hub keeping the last replaySize envelopes. m may be nil.
func NewHub(replaySize int, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replaySize),
		metrics: m,
	}
}

// Run broadcasts every signal from in until ctx is cancelled or in closes.
func (h *Hub) Run(ctx context.Context, in <-chan model.TradingSignal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-in:
			if !ok {
				return
			}
			h.Broadcast(sig)
		}
	}
}

// Broadcast sends sig to every client subscribed to its symbol.
func (h *Hub) Broadcast(sig model.TradingSignal) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	buf := envelope(seq, time.Now().UTC(), sig)
	h.replay.Push(seq, sig.Symbol, buf)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wants(sig.Symbol) {
			continue
		}
		select {
		case client.send <- buf:
		default:
			// slow client, drop
		}
	}
}

// envelope hand-builds {"type":"signal","seq":N,"ts":"...","data":{...}}.
func envelope(seq int64, now time.Time, sig model.TradingSignal) []byte {
	data := sig.JSON()
	buf := make([]byte, 0, len(data)+96)
	buf = append(buf, `{"type":"signal","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, '}')
	return buf
}

// ServeHTTP upgrades to WebSocket. ?symbol=A,B limits the stream to those
// symbols; ?last_seq=N replays buffered signals newer than N.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}

	client := newClient(conn, h)
	for _, s := range strings.Split(r.URL.Query().Get("symbol"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			client.symbols[s] = true
		}
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
	log.Printf("[gateway] ws client connected (%d total)", count)

	if lastSeq, err := strconv.ParseInt(r.URL.Query().Get("last_seq"), 10, 64); err == nil {
		client.replayAfter(lastSeq)
	}

	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Seq returns the last assigned envelope seq.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}
