package bridge

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentdeck/agentdeck/internal/session"
)

const writeTimeout = 10 * time.Second

// WSConn adapts a gorilla websocket connection to the Transport
// interface. Gorilla permits at most one concurrent writer, so all sends
// funnel through a mutex.
type WSConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  bool

	onMessage func(raw []byte)
	onClose   func()
}

func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

func (w *WSConn) Send(msg session.Envelope) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if w.closed {
		return websocket.ErrCloseSent
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteJSON(msg)
}

func (w *WSConn) Close(reason string) {
	w.writeMu.Lock()
	if w.closed {
		w.writeMu.Unlock()
		return
	}
	w.closed = true
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	w.writeMu.Unlock()

	_ = w.conn.Close()
}

func (w *WSConn) OnMessage(handler func(raw []byte)) {
	w.onMessage = handler
}

func (w *WSConn) OnClose(handler func()) {
	w.onClose = handler
}

// ReadLoop pumps inbound frames to the message handler until the peer
// disconnects, then fires the close handler. Call after VerifyAndAttach
// succeeds; it blocks for the connection's lifetime.
func (w *WSConn) ReadLoop() {
	defer func() {
		if w.onClose != nil {
			w.onClose()
		}
		w.Close("connection closed")
	}()

	for {
		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		if w.onMessage != nil {
			w.onMessage(raw)
		}
	}
}
