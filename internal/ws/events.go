package ws

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/prowhq/billing/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is handled at the HTTP level
	},
}

// Hub fans payment events out to the organizations watching them. Each
// subscriber is a buffered channel; slow consumers drop events rather than
// stalling payment processing.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan *domain.PaymentEvent]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan *domain.PaymentEvent]struct{})}
}

// Broadcast delivers an event to every subscriber of the organization.
// It never blocks.
func (h *Hub) Broadcast(orgID string, e *domain.PaymentEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[orgID] {
		select {
		case ch <- e:
		default:
			// Subscriber is not keeping up; skip it.
		}
	}
}

func (h *Hub) subscribe(orgID string) chan *domain.PaymentEvent {
	ch := make(chan *domain.PaymentEvent, 16)
	h.mu.Lock()
	if h.subs[orgID] == nil {
		h.subs[orgID] = make(map[chan *domain.PaymentEvent]struct{})
	}
	h.subs[orgID][ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(orgID string, ch chan *domain.PaymentEvent) {
	h.mu.Lock()
	if set := h.subs[orgID]; set != nil {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.subs, orgID)
		}
	}
	h.mu.Unlock()
}

// EventsHandler handles WebSocket connections streaming live payment events.
type EventsHandler struct {
	hub       *Hub
	jwtSecret string
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(hub *Hub, jwtSecret string) *EventsHandler {
	return &EventsHandler{hub: hub, jwtSecret: jwtSecret}
}

// Handle upgrades HTTP to WebSocket and streams the organization's payment
// events as JSON messages.
// URL: /billing/events?token=JWT_TOKEN
func (h *EventsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// Authenticate via query param token (browsers cannot set WS headers)
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	orgID, err := h.verifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch := h.hub.subscribe(orgID)
	defer h.hub.unsubscribe(orgID, ch)

	log.Printf("🔌 Event stream connected (org: %s)", orgID)

	// Drain client frames so we notice disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case e := <-ch:
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}

func (h *EventsHandler) verifyToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	orgID, _ := claims["orgId"].(string)
	if orgID == "" {
		return "", fmt.Errorf("token has no organization")
	}
	return orgID, nil
}
