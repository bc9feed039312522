// Package bridge connects transport connections to the session core. It
// owns token verification at attach time and the inbound control-message
// vocabulary; the session core never sees a raw socket.
package bridge

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/agentdeck/agentdeck/internal/token"
	"github.com/agentdeck/agentdeck/logging"
)

// Close reasons sent to a connection rejected at attach time. These are
// machine-readable and distinct per failure mode.
const (
	ReasonTokenMissing    = "token missing"
	ReasonTokenInvalid    = "token invalid"
	ReasonSessionNotFound = "session not found"
)

// Transport is the duplex stream abstraction the bridge consumes. The
// websocket adapter implements it; tests substitute their own.
type Transport interface {
	session.Conn
	OnMessage(handler func(raw []byte))
	OnClose(handler func())
}

// inboundMessage is the closed set of client-to-session control
// messages. Unknown types are dropped.
type inboundMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
}

// Bridge verifies attachment tokens and wires transports to sessions.
type Bridge struct {
	sessions *session.Manager
	codec    *token.Codec
	logger   *logrus.Entry
}

func New(sessions *session.Manager, codec *token.Codec) *Bridge {
	return &Bridge{
		sessions: sessions,
		codec:    codec,
		logger:   logging.NewLogger("bridge"),
	}
}

// VerifyAndAttach checks the bearer token, resolves the session, and on
// success attaches the transport to its broadcast set and starts routing
// inbound messages. On any failure the transport is closed with a
// distinct reason and the function returns false.
func (b *Bridge) VerifyAndAttach(rawToken string, conn Transport) bool {
	if rawToken == "" {
		conn.Close(ReasonTokenMissing)
		return false
	}

	claims, ok := b.codec.Verify(rawToken)
	if !ok {
		b.logger.Debug("Rejected connection with invalid token")
		conn.Close(ReasonTokenInvalid)
		return false
	}

	sessionID := claims.SessionID

	conn.OnMessage(func(raw []byte) {
		b.route(sessionID, raw)
	})
	conn.OnClose(func() {
		b.sessions.Detach(conn)
	})

	if err := b.sessions.Attach(sessionID, conn); err != nil {
		b.logger.WithField("session", sessionID).Debug("Attach to unknown session rejected")
		conn.Close(ReasonSessionNotFound)
		return false
	}

	b.logger.WithField("session", sessionID).Debug("Attached connection")
	return true
}

// route dispatches one inbound control message. Malformed payloads and
// unknown types are logged and dropped; they never tear down the
// session.
func (b *Bridge) route(sessionID string, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		b.logger.WithError(err).Debug("Dropping malformed control message")
		return
	}

	switch msg.Type {
	case "input":
		if err := b.sessions.Write(sessionID, []byte(msg.Data)); err != nil {
			b.logger.WithError(err).WithField("session", sessionID).Debug("Input write failed")
		}
	case "resize":
		if err := b.sessions.Resize(sessionID, msg.Cols, msg.Rows); err != nil {
			b.logger.WithError(err).WithField("session", sessionID).Debug("Resize failed")
		}
	default:
		b.logger.WithField("type", msg.Type).Debug("Dropping unknown control message")
	}
}
