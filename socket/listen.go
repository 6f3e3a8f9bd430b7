package socket

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/freehandle/ripple/crypto"
)

// Listen accepts TCP connections on address and promotes each of them to a
// SignedConnection in its own goroutine. Authenticated connections are handed
// to accept. The loop ends when ctx is done or the returned listener is
// closed.
func Listen(ctx context.Context, address string, credentials crypto.PrivateKey, validator ValidateConnection, accept func(*SignedConnection)) (net.Listener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					slog.Warn("socket listener stopped", "address", address, "error", err)
				}
				return
			}
			go func() {
				signed, err := PromoteConnection(NewStreamFramer(conn), credentials, validator)
				if err != nil {
					slog.Info("handshake failed", "remote", conn.RemoteAddr().String(), "error", err)
					return
				}
				accept(signed)
			}()
		}
	}()
	return listener, nil
}
