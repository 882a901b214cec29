package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/killallgit/canvaschat/pkg/controllers"
)

// Inbound frame types
const (
	frameSend   = "send"
	frameCancel = "cancel"
	frameCanvas = "canvas"
	frameAccept = "accept"
	frameReject = "reject"
	frameReset  = "reset"
)

type inboundFrame struct {
	Type       string `json:"type"`
	Message    string `json:"message,omitempty"`
	Canvas     string `json:"canvas,omitempty"`
	AllowEdits bool   `json:"allow_edits,omitempty"`
}

// outboundFrame carries an update, a session snapshot, a patch outcome or
// an error. Updates are sent flat with their own type name.
type outboundFrame struct {
	Type    string               `json:"type"`
	Session *controllers.Session `json:"session,omitempty"`
	Patch   *patchResponse       `json:"patch,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// wsConn serialises writes to a WebSocket connection
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// handleWebSocket drives a session over one connection. Updates of every
// exchange started on the connection are forwarded as they arrive; the
// exchange is abandoned when the connection closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.session(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "session", ctrl.ID(), "error", err)
		return
	}
	defer conn.Close()

	ws := &wsConn{conn: conn}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var forwarders sync.WaitGroup
	defer forwarders.Wait()

	session := ctrl.Session()
	if !s.write(ws, ctrl, outboundFrame{Type: "session", Session: &session}) {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("WebSocket read failed", "session", ctrl.ID(), "error", err)
			}
			cancel()
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.write(ws, ctrl, outboundFrame{Type: "error", Error: "invalid frame"})
			continue
		}

		switch frame.Type {
		case frameSend:
			updates, err := ctrl.SendMessage(ctx, frame.Message, frame.Canvas, frame.AllowEdits)
			if err != nil {
				s.write(ws, ctrl, outboundFrame{Type: "error", Error: err.Error()})
				continue
			}
			forwarders.Add(1)
			go func() {
				defer forwarders.Done()
				s.forward(ws, ctrl, updates)
			}()
		case frameCancel:
			ctrl.Cancel()
			s.writeSession(ws, ctrl)
		case frameCanvas:
			ctrl.SetCanvas(frame.Canvas)
			s.writeSession(ws, ctrl)
		case frameAccept:
			resp, err := acceptPatch(ctrl)
			if err != nil {
				s.write(ws, ctrl, outboundFrame{Type: "error", Error: err.Error()})
				continue
			}
			s.write(ws, ctrl, outboundFrame{Type: "patch", Patch: &resp})
		case frameReject:
			if err := ctrl.RejectPatch(); err != nil {
				s.write(ws, ctrl, outboundFrame{Type: "error", Error: err.Error()})
				continue
			}
			s.writeSession(ws, ctrl)
		case frameReset:
			ctrl.Reset()
			s.writeSession(ws, ctrl)
		default:
			s.write(ws, ctrl, outboundFrame{Type: "error", Error: "unknown frame type " + frame.Type})
		}
	}
}

// forward writes every update of one exchange, then the resulting session
func (s *Server) forward(ws *wsConn, ctrl *controllers.Controller, updates <-chan controllers.Update) {
	for update := range updates {
		if err := ws.writeJSON(update); err != nil {
			s.log.Debug("WebSocket write failed", "session", ctrl.ID(), "error", err)
			// keep draining so the exchange can finish
			continue
		}
	}
	s.writeSession(ws, ctrl)
}

func (s *Server) writeSession(ws *wsConn, ctrl *controllers.Controller) {
	session := ctrl.Session()
	s.write(ws, ctrl, outboundFrame{Type: "session", Session: &session})
}

// write sends one frame and reports whether it went out
func (s *Server) write(ws *wsConn, ctrl *controllers.Controller, frame outboundFrame) bool {
	if err := ws.writeJSON(frame); err != nil {
		s.log.Debug("WebSocket write failed", "session", ctrl.ID(), "frame", frame.Type, "error", err)
		return false
	}
	return true
}
