package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mev-engine/evm-arb-engine/internal/broadcast"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// pongWait bounds how long readPump waits for an inbound frame or pong
// before considering the connection dead.
const pongWait = 60 * time.Second

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client, ok := s.hub.Connect()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(broadcast.CloseCodeCapacity, "at capacity"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	go s.writePump(conn, client)
	s.readPump(conn, client)
}

// writePump drains client.Send and forwards every message as a JSON text
// frame until the mailbox is closed by the hub.
func (s *Server) writePump(conn *websocket.Conn, client *broadcast.Client) {
	defer conn.Close()
	for msg := range client.Send {
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug("websocket write failed", zap.String("connection_id", client.ID), zap.Error(err))
			return
		}
	}
}

// readPump decodes inbound subscribe/unsubscribe/ping frames until the
// client disconnects or sends a malformed frame.
func (s *Server) readPump(conn *websocket.Conn, client *broadcast.Client) {
	defer s.hub.Disconnect(client)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var in broadcast.Inbound
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		resp := s.hub.HandleInbound(client, in)
		if resp.Type != "" {
			select {
			case client.Send <- resp:
			default:
			}
		}
	}
}
