// internal/handlers/presence_ws.go keeps players marked online. Clients open
// a websocket and send periodic heartbeat frames; each one re-arms the
// player's offline timer. Closing the socket, or going silent past the
// timeout, marks the player offline.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/sixelasacul/friend-blind-test/internal/auth"
	"github.com/sixelasacul/friend-blind-test/internal/middleware"
)

// PresenceWSHandler upgrades the connection and pumps heartbeats into the
// engine until the client goes away.
func (s *Server) PresenceWSHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.PlayerIDFromRequest(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"presence"},
		OriginPatterns: []string{"*"}, // Adjust in production
	})
	if err != nil {
		s.Log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "presence" {
		c.Close(websocket.StatusPolicyViolation, "client must speak the presence subprotocol")
		return
	}

	middleware.LogWebSocketConnect(s.Log, r.RemoteAddr, r.URL.Path)

	// The first heartbeat is the connection itself.
	if err := s.Engine.Heartbeat(r.Context(), playerID); err != nil {
		s.writeWSClose(c, err)
		return
	}

	readErr := s.readHeartbeats(r.Context(), c, playerID)

	if err := s.Engine.Disconnect(context.Background(), playerID); err != nil {
		s.Log.WithError(err).Warn("failed to mark player offline on disconnect")
	}
	middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, readErr)
	c.Close(websocket.StatusNormalClosure, "bye")
}

func (s *Server) readHeartbeats(ctx context.Context, c *websocket.Conn, playerID uuid.UUID) error {
	for {
		readCtx, cancel := context.WithTimeout(ctx, time.Minute)
		_, _, err := c.Read(readCtx)
		cancel()
		if err != nil {
			return err
		}

		if err := s.Engine.Heartbeat(ctx, playerID); err != nil {
			return err
		}
	}
}

func (s *Server) writeWSClose(c *websocket.Conn, err error) {
	s.Log.WithError(err).Warn("presence heartbeat rejected")
	c.Close(websocket.StatusPolicyViolation, "unknown player")
}
