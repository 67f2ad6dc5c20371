package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
)

// Event types pushed to WebSocket clients.
const (
	EventMemoryCreated     = "memory_created"
	EventDeliveryCompleted = "delivery_completed"
	EventDeliveryFailed    = "delivery_failed"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 10 * time.Second
)

// Event is the message pushed to WebSocket clients.
type Event struct {
	Type      string    `json:"type"`
	RecordID  string    `json:"record_id"`
	Owner     string    `json:"owner,omitempty"`
	State     string    `json:"state,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// subscriber is one receiver of hub messages. hangUp is called when the hub
// drops it; it is nil for in-process subscribers.
type subscriber struct {
	send   chan []byte
	hangUp func()
}

// WebSocketHub fans delivery events out to connected browsers.
type WebSocketHub struct {
	originPatterns []string
	queue          chan any
	ctx            context.Context
	cancel         context.CancelFunc

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// NewWebSocketHub creates a hub accepting browser connections from the
// given host:port origin patterns. Requests without an Origin header are
// always accepted.
func NewWebSocketHub(originPatterns ...string) *WebSocketHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketHub{
		originPatterns: originPatterns,
		queue:          make(chan any, 256),
		ctx:            ctx,
		cancel:         cancel,
		subs:           make(map[*subscriber]struct{}),
	}
}

// Run encodes queued messages and hands them to every subscriber until Stop
// is called.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			log.Println("websocket: hub stopping")
			return
		case msg := <-h.queue:
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("websocket: failed to marshal message: %v", err)
				continue
			}
			h.fanOut(data)
		}
	}
}

func (h *WebSocketHub) fanOut(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.send <- data:
		default:
			log.Println("websocket: dropping slow client")
			h.dropLocked(s)
		}
	}
}

// Stop ends Run and disconnects every subscriber.
func (h *WebSocketHub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		h.dropLocked(s)
	}
}

// Broadcast queues message for all subscribers. The message is dropped when
// the queue is full.
func (h *WebSocketHub) Broadcast(message any) {
	select {
	case h.queue <- message:
	default:
		log.Println("websocket: broadcast queue full, dropping message")
	}
}

// Publish broadcasts ev, stamping it with the current time when unset.
func (h *WebSocketHub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	h.Broadcast(ev)
}

// Subscribe registers an in-process receiver of the encoded messages. The
// returned function unsubscribes it; the channel is closed on unsubscribe or
// when the hub stops.
func (h *WebSocketHub) Subscribe() (<-chan []byte, func()) {
	s := h.add(nil)
	return s.send, func() { h.remove(s) }
}

// Clients returns the number of current subscribers.
func (h *WebSocketHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *WebSocketHub) add(hangUp func()) *subscriber {
	s := &subscriber{send: make(chan []byte, subscriberBuffer), hangUp: hangUp}
	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		close(s.send)
		if hangUp != nil {
			hangUp()
		}
		return s
	}
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	log.Printf("websocket: client connected (total: %d)", n)
	return s
}

func (h *WebSocketHub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		h.dropLocked(s)
		log.Printf("websocket: client disconnected (total: %d)", len(h.subs))
	}
}

// dropLocked removes s; h.mu must be held. The close handshake runs in
// the background so a stalled peer cannot hold the lock.
func (h *WebSocketHub) dropLocked(s *subscriber) {
	delete(h.subs, s)
	close(s.send)
	if s.hangUp != nil {
		go s.hangUp()
	}
}

// ServeHTTP upgrades the request and streams hub messages to the browser.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{ //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept has already written the 403 or 400 response.
		log.Printf("websocket: upgrade failed: %v", err)
		return
	}

	s := h.add(func() {
		_ = conn.Close(websocket.StatusGoingAway, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	})

	// Browsers never send anything we act on; CloseRead handles pings and
	// cancels the context once the peer goes away.
	ctx := conn.CloseRead(h.ctx)
	go func() {
		defer h.remove(s)
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-s.send:
				if !ok {
					return
				}
				writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
				err := conn.Write(writeCtx, websocket.MessageText, data) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
				cancel()
				if err != nil {
					log.Printf("websocket: write failed: %v", err)
					return
				}
			}
		}
	}()
}
