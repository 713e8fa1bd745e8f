package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// handleEvents streams neighbor change events over a WebSocket. The
// current tables are replayed first as added events, then live changes
// flow until either side closes.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.WithError(err).Error("Failed to accept WebSocket client")
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "closing")

	client := uuid.NewString()
	logger := log.WithField("client", client)
	logger.Info("Event stream client connected")
	defer logger.Info("Event stream client disconnected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch, unsub := s.events.Subscribe(s.fleet.SnapshotEvents)
	defer unsub()

	// Reads only detect the client going away.
	go func() {
		for {
			if _, _, err := c.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				logger.WithError(err).Warn("Failed to encode event")
				continue
			}
			if err := c.Write(ctx, websocket.MessageText, b); err != nil {
				return
			}
		}
	}
}
