package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/jupiterclapton/agora/internal/adapters/primary/auth"
	"github.com/jupiterclapton/agora/internal/adapters/secondary/live"
	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/pkg/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// Presence est la partie du ChatService appelée à la connexion et à la déconnexion.
type Presence interface {
	Connect(ctx context.Context, profileID string) error
	Disconnect(ctx context.Context, profileID string) error
}

// Sessions compte les connexions d'un profil sur toutes les instances.
// Sans Sessions, le Hub ne voit que ses propres connexions.
type Sessions interface {
	Join(ctx context.Context, profileID string) (int64, error)
	Leave(ctx context.Context, profileID string) (int64, error)
}

// Hub relaie aux connexions locales les événements publiés sur Redis par toutes les instances.
// Une connexion écoute le topic "profile:<id>" de son propriétaire.
type Hub struct {
	presence Presence
	sessions Sessions
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	topics  map[string]map[*client]struct{}
	perUser map[string]int
}

type client struct {
	conn  *websocket.Conn
	topic string
	send  chan []byte
	once  sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub : origins vide ou "*" accepte toutes les origines. sessions peut être nil.
func NewHub(presence Presence, sessions Sessions, origins []string, logger *slog.Logger) *Hub {
	h := &Hub{
		presence: presence,
		sessions: sessions,
		logger:   logger.With("component", "ws.Hub"),
		topics:   make(map[string]map[*client]struct{}),
		perUser:  make(map[string]int),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(origins) == 0 || lo.Contains(origins, "*") {
				return true
			}
			return lo.Contains(origins, origin)
		},
	}
	return h
}

// ServeHTTP doit être monté derrière auth.Middleware.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal := auth.ForContext(r.Context())
	if principal == nil {
		http.Error(w, domain.ErrNotLoggedIn.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// L'upgrader a déjà répondu au client.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	// Le contexte de la requête meurt avec ServeHTTP : la présence a besoin du sien.
	ctx := context.WithoutCancel(r.Context())

	c := &client{conn: conn, topic: domain.ProfileTopic(principal.ProfileID), send: make(chan []byte, sendBuffer)}
	if first := h.join(ctx, principal.ProfileID, h.register(c, principal.ProfileID)); first {
		if err := h.presence.Connect(ctx, principal.ProfileID); err != nil {
			h.logger.Error("❌ Failed to mark profile online", "profile_id", principal.ProfileID, "error", err)
		}
	}
	h.logger.Debug("🔌 Client connected", "profile_id", principal.ProfileID)

	go h.writePump(c)
	h.readPump(c)

	dctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	if last := h.leave(dctx, principal.ProfileID, h.unregister(c, principal.ProfileID)); last {
		if err := h.presence.Disconnect(dctx, principal.ProfileID); err != nil {
			h.logger.Error("❌ Failed to mark profile offline", "profile_id", principal.ProfileID, "error", err)
		}
	}
	h.logger.Debug("🔌 Client disconnected", "profile_id", principal.ProfileID)
}

// register renvoie true pour la première connexion du profil sur cette instance.
func (h *Hub) register(c *client, profileID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[c.topic] == nil {
		h.topics[c.topic] = make(map[*client]struct{})
	}
	h.topics[c.topic][c] = struct{}{}
	h.perUser[profileID]++
	telemetry.LiveConnections.Inc()
	return h.perUser[profileID] == 1
}

// unregister renvoie true quand la dernière connexion du profil se ferme.
func (h *Hub) unregister(c *client, profileID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.topics[c.topic]; ok {
		if _, ok := set[c]; !ok {
			return false
		}
		delete(set, c)
		if len(set) == 0 {
			delete(h.topics, c.topic)
		}
	}
	c.close()
	telemetry.LiveConnections.Dec()

	h.perUser[profileID]--
	if h.perUser[profileID] > 0 {
		return false
	}
	delete(h.perUser, profileID)
	return true
}

// join décide si la connexion est la première du profil, toutes instances confondues.
// Si Redis est indisponible, on retombe sur le compte local.
func (h *Hub) join(ctx context.Context, profileID string, localFirst bool) bool {
	if h.sessions == nil {
		return localFirst
	}
	n, err := h.sessions.Join(ctx, profileID)
	if err != nil {
		h.logger.Warn("session count unavailable, using local count", "profile_id", profileID, "error", err)
		return localFirst
	}
	return n == 1
}

func (h *Hub) leave(ctx context.Context, profileID string, localLast bool) bool {
	if h.sessions == nil {
		return localLast
	}
	n, err := h.sessions.Leave(ctx, profileID)
	if err != nil {
		h.logger.Warn("session count unavailable, using local count", "profile_id", profileID, "error", err)
		return localLast
	}
	return n == 0
}

// Deliver envoie une trame aux connexions locales d'un topic.
// Un client trop lent est déconnecté plutôt que de bloquer le relais.
func (h *Hub) Deliver(topic string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.topics[topic] {
		select {
		case c.send <- data:
			sent++
		default:
			h.logger.Warn("slow client, dropping connection", "topic", topic)
			_ = c.conn.Close()
		}
	}
	return sent
}

// Connections compte les connexions locales d'un topic.
func (h *Hub) Connections(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Run écoute "live:*" sur Redis jusqu'à l'annulation de ctx.
func (h *Hub) Run(ctx context.Context, rdb redis.UniversalClient) error {
	pubsub := rdb.PSubscribe(ctx, live.ChannelPrefix+"*")
	defer pubsub.Close()

	// Attend la confirmation de l'abonnement.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	h.logger.Info("🎧 Relaying live events", "pattern", live.ChannelPrefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("🛑 Live relay stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			topic := strings.TrimPrefix(msg.Channel, live.ChannelPrefix)
			h.Deliver(topic, []byte(msg.Payload))
		}
	}
}

// --- POMPES ---

// readPump ignore les trames entrantes : il sert à détecter la fermeture et les pongs.
func (h *Hub) readPump(c *client) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
