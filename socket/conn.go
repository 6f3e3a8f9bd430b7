// Package socket implements signed, framed connections between nodes over TCP
// or websocket streams. Every frame carries the signature of its sender and is
// verified against the token established at handshake.
package socket

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/freehandle/ripple/crypto"
)

const MaxFrameSize = 1 << 24

var (
	ErrMessageTooLarge  = errors.New("frame size exceeds maximum")
	ErrInvalidSignature = errors.New("signature is invalid")
	ErrMessageTooShort  = errors.New("message too short")
)

// TokenAddr is the address of a node together with the token it must prove to
// own.
type TokenAddr struct {
	Token crypto.Token
	Addr  string
}

// Framer moves whole frames over an ordered stream.
type Framer interface {
	WriteFrame(data []byte) error
	ReadFrame() ([]byte, error)
	SetDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// streamFramer prefixes each frame with its 4 byte little endian length.
type streamFramer struct {
	conn   net.Conn
	reader *bufio.Reader
}

func NewStreamFramer(conn net.Conn) Framer {
	return &streamFramer{conn: conn, reader: bufio.NewReader(conn)}
}

func (s *streamFramer) WriteFrame(data []byte) error {
	if len(data) > MaxFrameSize {
		return ErrMessageTooLarge
	}
	frame := make([]byte, 4, 4+len(data))
	binary.LittleEndian.PutUint32(frame, uint32(len(data)))
	frame = append(frame, data...)
	_, err := s.conn.Write(frame)
	return err
}

func (s *streamFramer) ReadFrame() ([]byte, error) {
	length := make([]byte, 4)
	if _, err := io.ReadFull(s.reader, length); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(length)
	if size > MaxFrameSize {
		return nil, ErrMessageTooLarge
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(s.reader, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *streamFramer) SetDeadline(t time.Time) error {
	return s.conn.SetDeadline(t)
}

func (s *streamFramer) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

func (s *streamFramer) Close() error {
	return s.conn.Close()
}

// Conn is a live signed connection with an authenticated remote token.
type Conn interface {
	Remote() crypto.Token
	RemoteAddr() string
	Send(msg []byte) error
	Read() ([]byte, error)
	Shutdown()
}

type SignedConnection struct {
	Token   crypto.Token
	Address string
	key     crypto.PrivateKey
	framer  Framer
	mu      sync.Mutex
	once    sync.Once
}

func (s *SignedConnection) Remote() crypto.Token {
	return s.Token
}

func (s *SignedConnection) RemoteAddr() string {
	return s.Address
}

// Send signs msg and writes it as a single frame. It is safe for concurrent
// use.
func (s *SignedConnection) Send(msg []byte) error {
	if len(msg)+crypto.SignatureSize > MaxFrameSize {
		return ErrMessageTooLarge
	}
	signature := s.key.Sign(msg)
	data := make([]byte, 0, len(msg)+crypto.SignatureSize)
	data = append(append(data, msg...), signature[:]...)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framer.WriteFrame(data)
}

// Read returns the next frame after checking the remote signature. It must be
// called from a single goroutine.
func (s *SignedConnection) Read() ([]byte, error) {
	data, err := s.framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	if len(data) < crypto.SignatureSize {
		return nil, ErrMessageTooShort
	}
	msg := data[0 : len(data)-crypto.SignatureSize]
	var signature crypto.Signature
	copy(signature[:], data[len(data)-crypto.SignatureSize:])
	if !s.Token.Verify(msg, signature) {
		return nil, ErrInvalidSignature
	}
	return msg, nil
}

func (s *SignedConnection) Shutdown() {
	s.once.Do(func() {
		s.framer.Close()
	})
}

// Dial opens a TCP connection to address and performs the client handshake.
// A zero token accepts any remote identity, which validator may still refuse.
func Dial(ctx context.Context, address string, credentials crypto.PrivateKey, token crypto.Token, validator ValidateConnection) (*SignedConnection, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return performClientHandShake(ctx, NewStreamFramer(conn), credentials, token, validator)
}
