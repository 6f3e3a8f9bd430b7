package socket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/freehandle/ripple/crypto"
	"github.com/gorilla/websocket"
)

const (
	wsReadBuffer  = 4096
	wsWriteBuffer = 4096
)

var wsBufferPool = new(sync.Pool)

var errUnexpectedMessageType = errors.New("unexpected websocket message type")

// wsFramer carries one frame per binary websocket message.
type wsFramer struct {
	conn *websocket.Conn
}

func NewWebsocketFramer(conn *websocket.Conn) Framer {
	conn.SetReadLimit(MaxFrameSize)
	return &wsFramer{conn: conn}
}

func (w *wsFramer) WriteFrame(data []byte) error {
	if len(data) > MaxFrameSize {
		return ErrMessageTooLarge
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (w *wsFramer) ReadFrame() ([]byte, error) {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		switch messageType {
		case websocket.BinaryMessage:
			return data, nil
		case websocket.TextMessage:
			return nil, errUnexpectedMessageType
		}
	}
}

func (w *wsFramer) SetDeadline(t time.Time) error {
	if err := w.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return w.conn.SetWriteDeadline(t)
}

func (w *wsFramer) RemoteAddr() string {
	return w.conn.RemoteAddr().String()
}

func (w *wsFramer) Close() error {
	return w.conn.Close()
}

// DialWebsocket connects to a websocket endpoint (ws:// or wss://) and
// performs the client handshake over it.
func DialWebsocket(ctx context.Context, url string, credentials crypto.PrivateKey, token crypto.Token, validator ValidateConnection) (*SignedConnection, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:   wsReadBuffer,
		WriteBufferSize:  wsWriteBuffer,
		WriteBufferPool:  wsBufferPool,
		HandshakeTimeout: HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return performClientHandShake(ctx, NewWebsocketFramer(conn), credentials, token, validator)
}

// WebsocketHandler upgrades incoming requests, performs the server handshake
// and hands every authenticated connection to accept.
func WebsocketHandler(credentials crypto.PrivateKey, validator ValidateConnection, accept func(*SignedConnection)) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsReadBuffer,
		WriteBufferSize: wsWriteBuffer,
		WriteBufferPool: wsBufferPool,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Debug("websocket upgrade failed", "error", err)
			return
		}
		signed, err := PromoteConnection(NewWebsocketFramer(conn), credentials, validator)
		if err != nil {
			slog.Info("websocket handshake failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		accept(signed)
	})
}
