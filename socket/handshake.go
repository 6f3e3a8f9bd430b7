package socket

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/freehandle/ripple/crypto"
)

var (
	errCouldNotVerify = errors.New("could not verify communication")
	// ErrConnectionRejected is returned when the remote side refused the
	// handshake.
	ErrConnectionRejected = errors.New("connection rejected by remote node")
)

// HandshakeTimeout bounds the whole handshake.
var HandshakeTimeout = 5 * time.Second

const (
	handshakeReject byte = iota
	handshakeAccept
)

// Simple implementation of handshake for signed communication between nodes.
//
// The caller sends its token naked and a random nonce which the called must
// sign to prove its identity.
//
// The called checks with its ValidateConnection whether the proposed token may
// connect. If not, it sends a single reject byte and closes, so the caller
// fails immediately. Otherwise it sends an accept byte, its own token, a
// signature of the proposed nonce and a new nonce to be signed by the caller.
//
// The caller checks the token is the expected one (if any), verifies the
// signature and runs its own ValidateConnection on the remote token. It then
// answers with an accept byte and the signature of the nonce, or with a reject
// byte.
//
// The called verifies the signature and, if ok, the connection is ready.

func performClientHandShake(ctx context.Context, framer Framer, prvKey crypto.PrivateKey, remotePub crypto.Token, validator ValidateConnection) (*SignedConnection, error) {
	conn, err := clientHandShake(ctx, framer, prvKey, remotePub, validator)
	if err != nil {
		framer.Close()
		return nil, err
	}
	return conn, nil
}

func clientHandShake(ctx context.Context, framer Framer, prvKey crypto.PrivateKey, remotePub crypto.Token, validator ValidateConnection) (*SignedConnection, error) {
	framer.SetDeadline(handshakeDeadline(ctx))
	defer framer.SetDeadline(time.Time{})

	pubKey := prvKey.PublicKey()
	nonce := crypto.Nonce()
	if err := framer.WriteFrame(append(pubKey[:], nonce...)); err != nil {
		return nil, err
	}

	resp, err := framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	if len(resp) == 1 && resp[0] == handshakeReject {
		return nil, ErrConnectionRejected
	}
	if len(resp) != 1+crypto.TokenSize+crypto.SignatureSize+crypto.NonceSize || resp[0] != handshakeAccept {
		return nil, errCouldNotVerify
	}
	resp = resp[1:]
	var remoteToken crypto.Token
	copy(remoteToken[:], resp[0:crypto.TokenSize])
	var remoteSignature crypto.Signature
	copy(remoteSignature[:], resp[crypto.TokenSize:crypto.TokenSize+crypto.SignatureSize])
	remoteNonce := resp[crypto.TokenSize+crypto.SignatureSize:]
	if !remotePub.IsZero() && subtle.ConstantTimeCompare(remoteToken[:], remotePub[:]) != 1 {
		return nil, errCouldNotVerify
	}
	if !remoteToken.Verify(nonce, remoteSignature) {
		return nil, errCouldNotVerify
	}
	if err := validator.ValidateConnection(remoteToken); err != nil {
		framer.WriteFrame([]byte{handshakeReject})
		return nil, err
	}
	signature := prvKey.Sign(remoteNonce)
	if err := framer.WriteFrame(append([]byte{handshakeAccept}, signature[:]...)); err != nil {
		return nil, err
	}
	return &SignedConnection{
		Token:   remoteToken,
		Address: framer.RemoteAddr(),
		framer:  framer,
		key:     prvKey,
	}, nil
}

// PromoteConnection performs the server side of the handshake over framer and
// returns a SignedConnection if it succeeds. The framer is closed otherwise.
func PromoteConnection(framer Framer, prvKey crypto.PrivateKey, validator ValidateConnection) (*SignedConnection, error) {
	conn, err := serverHandShake(framer, prvKey, validator)
	if err != nil {
		framer.Close()
		return nil, err
	}
	return conn, nil
}

func serverHandShake(framer Framer, prvKey crypto.PrivateKey, validator ValidateConnection) (*SignedConnection, error) {
	framer.SetDeadline(time.Now().Add(HandshakeTimeout))
	defer framer.SetDeadline(time.Time{})

	// read client token and random nonce
	resp, err := framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	if len(resp) != crypto.TokenSize+crypto.NonceSize {
		return nil, errCouldNotVerify
	}
	var remoteToken crypto.Token
	copy(remoteToken[:], resp[:crypto.TokenSize])
	if err := validator.ValidateConnection(remoteToken); err != nil {
		framer.WriteFrame([]byte{handshakeReject})
		return nil, err
	}

	nonce := resp[crypto.TokenSize:]
	signature := prvKey.Sign(nonce)
	token := prvKey.PublicKey()
	newNonce := crypto.Nonce()

	msgToSend := []byte{handshakeAccept}
	msgToSend = append(append(append(msgToSend, token[:]...), signature[:]...), newNonce...)
	if err := framer.WriteFrame(msgToSend); err != nil {
		return nil, err
	}

	// receive signature of proposed nonce from client
	resp, err = framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	if len(resp) == 1 && resp[0] == handshakeReject {
		return nil, ErrConnectionRejected
	}
	if len(resp) != 1+crypto.SignatureSize || resp[0] != handshakeAccept {
		return nil, errCouldNotVerify
	}
	var clientSignature crypto.Signature
	copy(clientSignature[:], resp[1:])
	if !remoteToken.Verify(newNonce, clientSignature) {
		return nil, errCouldNotVerify
	}
	return &SignedConnection{
		Token:   remoteToken,
		Address: framer.RemoteAddr(),
		framer:  framer,
		key:     prvKey,
	}, nil
}

func handshakeDeadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}
