// Package push streams store changes to connected UI clients over
// websockets. Each client gets the snapshot of every collection followed by
// the live change feed, the same contract the in-process mirror consumes.
package push

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"auditflow/internal/syncstore"
	id "auditflow/pkg/domain"
	"auditflow/pkg/requestcontext"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	// sendBuffer bounds the per-client queue; a client that cannot keep up
	// is disconnected rather than allowed to stall the store feed.
	sendBuffer = 256
)

// Frame is one message on the wire.
type Frame struct {
	Collection string          `json:"collection"`
	Kind       string          `json:"kind"`
	ID         string          `json:"id,omitempty"`
	Revision   int64           `json:"revision,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Handler upgrades websocket connections and bridges store subscriptions.
type Handler struct {
	store    syncstore.Store
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a push Handler over the authoritative store.
func New(store syncstore.Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The token in the upgrade request is the authorization boundary.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the websocket endpoint on the authenticated router group.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ws", h.handleConnect)
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}

	client := &client{
		conn:   conn,
		userID: userID,
		send:   make(chan Frame, sendBuffer),
		done:   make(chan struct{}),
		logger: h.logger,
	}

	subs := make([]*syncstore.Subscription, 0, len(syncstore.Collections))
	for _, collection := range syncstore.Collections {
		sub, err := h.store.Subscribe(collection)
		if err != nil {
			h.logger.WarnContext(ctx, "websocket subscribe failed", "collection", collection, "error", err)
			conn.Close()
			return
		}
		subs = append(subs, sub)
		go client.pump(sub)
	}

	h.logger.InfoContext(ctx, "websocket client connected", "user_id", userID.String())
	go client.writeLoop()
	client.readLoop()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	h.logger.InfoContext(ctx, "websocket client disconnected", "user_id", userID.String())
}

type client struct {
	conn      *websocket.Conn
	userID    id.UserID
	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// pump forwards one subscription into the client queue. Notifications are
// private: only the connected user's own are forwarded.
func (c *client) pump(sub *syncstore.Subscription) {
	for change := range sub.C {
		if !c.visible(change) {
			continue
		}
		frame := Frame{
			Collection: change.Doc.Collection,
			Kind:       string(change.Kind),
			ID:         change.Doc.ID,
			Revision:   change.Doc.Revision,
			Data:       change.Doc.Data,
		}
		select {
		case c.send <- frame:
		case <-c.done:
			return
		default:
			// Slow consumer: drop the connection, the client re-syncs on
			// reconnect from the snapshot.
			c.close()
			return
		}
	}
}

func (c *client) visible(change syncstore.Change) bool {
	if change.Doc.Collection != syncstore.CollectionNotifications || change.Kind == syncstore.ChangeSnapshotComplete {
		return true
	}
	if change.Kind == syncstore.ChangeDelete {
		return true
	}
	var addr struct {
		RecipientID id.UserID `json:"recipient_id"`
	}
	if err := json.Unmarshal(change.Doc.Data, &addr); err != nil {
		return false
	}
	return addr.RecipientID == c.userID
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// readLoop consumes (and discards) client frames to observe the close
// handshake and keep pong handling alive.
func (c *client) readLoop() {
	defer c.close()
	c.conn.SetReadLimit(1024)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
