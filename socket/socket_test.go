package socket

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/freehandle/ripple/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handshakeResult struct {
	conn *SignedConnection
	err  error
}

func pipeHandshake(t *testing.T, clientKey, serverKey crypto.PrivateKey, expected crypto.Token, clientValidator, serverValidator ValidateConnection) (client, server handshakeResult) {
	t.Helper()
	a, b := net.Pipe()
	done := make(chan handshakeResult, 1)
	go func() {
		conn, err := PromoteConnection(NewStreamFramer(b), serverKey, serverValidator)
		done <- handshakeResult{conn, err}
	}()
	conn, err := performClientHandShake(context.Background(), NewStreamFramer(a), clientKey, expected, clientValidator)
	client = handshakeResult{conn, err}
	server = <-done
	return
}

func TestHandshake(t *testing.T) {
	clientToken, clientKey := crypto.RandomAsymetricKey()
	serverToken, serverKey := crypto.RandomAsymetricKey()

	client, server := pipeHandshake(t, clientKey, serverKey, serverToken, AcceptAllConnections, AcceptAllConnections)
	require.NoError(t, client.err)
	require.NoError(t, server.err)
	assert.Equal(t, serverToken, client.conn.Remote())
	assert.Equal(t, clientToken, server.conn.Remote())

	go func() {
		client.conn.Send([]byte("hello"))
	}()
	msg, err := server.conn.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), msg)

	go func() {
		server.conn.Send(nil)
	}()
	msg, err = client.conn.Read()
	require.NoError(t, err)
	assert.Empty(t, msg)

	client.conn.Shutdown()
	client.conn.Shutdown()
	_, err = server.conn.Read()
	assert.Error(t, err)
}

func TestHandshakeAnyToken(t *testing.T) {
	_, clientKey := crypto.RandomAsymetricKey()
	serverToken, serverKey := crypto.RandomAsymetricKey()

	client, server := pipeHandshake(t, clientKey, serverKey, crypto.ZeroToken, AcceptAllConnections, AcceptAllConnections)
	require.NoError(t, client.err)
	require.NoError(t, server.err)
	assert.Equal(t, serverToken, client.conn.Remote())
}

func TestHandshakeServerRejects(t *testing.T) {
	_, clientKey := crypto.RandomAsymetricKey()
	serverToken, serverKey := crypto.RandomAsymetricKey()
	refused := errors.New("refused")

	client, server := pipeHandshake(t, clientKey, serverKey, serverToken, AcceptAllConnections,
		ValidateFunc(func(crypto.Token) error { return refused }))
	assert.ErrorIs(t, client.err, ErrConnectionRejected)
	assert.ErrorIs(t, server.err, refused)
}

func TestHandshakeClientRejects(t *testing.T) {
	_, clientKey := crypto.RandomAsymetricKey()
	serverToken, serverKey := crypto.RandomAsymetricKey()

	client, server := pipeHandshake(t, clientKey, serverKey, serverToken, NewValidConnections(nil), AcceptAllConnections)
	assert.ErrorIs(t, client.err, ErrConnectionRejected)
	assert.ErrorIs(t, server.err, ErrConnectionRejected)
}

func TestHandshakeWrongToken(t *testing.T) {
	_, clientKey := crypto.RandomAsymetricKey()
	_, serverKey := crypto.RandomAsymetricKey()
	otherToken, _ := crypto.RandomAsymetricKey()

	client, server := pipeHandshake(t, clientKey, serverKey, otherToken, AcceptAllConnections, AcceptAllConnections)
	assert.ErrorIs(t, client.err, errCouldNotVerify)
	assert.Error(t, server.err)
}

func TestValidConnections(t *testing.T) {
	token, _ := crypto.RandomAsymetricKey()
	valid := NewValidConnections([]crypto.Token{token})
	assert.NoError(t, valid.ValidateConnection(token))
	valid.Remove(token)
	assert.ErrorIs(t, valid.ValidateConnection(token), ErrConnectionRejected)
	valid.Add(token)
	assert.NoError(t, valid.ValidateConnection(token))
}

func TestReadRejectsForgedSignature(t *testing.T) {
	_, clientKey := crypto.RandomAsymetricKey()
	serverToken, serverKey := crypto.RandomAsymetricKey()
	client, server := pipeHandshake(t, clientKey, serverKey, serverToken, AcceptAllConnections, AcceptAllConnections)
	require.NoError(t, client.err)
	require.NoError(t, server.err)

	go func() {
		forged := append([]byte("payload"), make([]byte, crypto.SignatureSize)...)
		client.conn.framer.WriteFrame(forged)
	}()
	_, err := server.conn.Read()
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestWebsocketHandshake(t *testing.T) {
	clientToken, clientKey := crypto.RandomAsymetricKey()
	serverToken, serverKey := crypto.RandomAsymetricKey()

	accepted := make(chan *SignedConnection, 1)
	srv := httptest.NewServer(WebsocketHandler(serverKey, AcceptAllConnections, func(conn *SignedConnection) {
		accepted <- conn
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := DialWebsocket(context.Background(), url, clientKey, serverToken, AcceptAllConnections)
	require.NoError(t, err)
	defer conn.Shutdown()

	remote := <-accepted
	defer remote.Shutdown()
	assert.Equal(t, clientToken, remote.Remote())

	require.NoError(t, conn.Send([]byte("over websocket")))
	msg, err := remote.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("over websocket"), msg)
}
