package socket

import (
	"sync"

	"github.com/freehandle/ripple/crypto"
)

// ValidateConnection is used by the handshake protocol to confirm if a given
// token is accredited with rights to establish the connection. A non nil error
// refuses the connection and is returned to the local caller.
type ValidateConnection interface {
	ValidateConnection(token crypto.Token) error
}

// ValidateFunc adapts a function to the ValidateConnection interface.
type ValidateFunc func(token crypto.Token) error

func (f ValidateFunc) ValidateConnection(token crypto.Token) error {
	return f(token)
}

type acceptAll struct{}

func (a acceptAll) ValidateConnection(token crypto.Token) error {
	return nil
}

// An implementation with ValidateConnection interface that accepts all
// requested connections.
var AcceptAllConnections = acceptAll{}

// AcceptValidConnections accepts only the tokens in its list.
type AcceptValidConnections struct {
	mu    sync.Mutex
	valid map[crypto.Token]struct{}
}

func NewValidConnections(tokens []crypto.Token) *AcceptValidConnections {
	valid := make(map[crypto.Token]struct{})
	for _, token := range tokens {
		valid[token] = struct{}{}
	}
	return &AcceptValidConnections{valid: valid}
}

func (a *AcceptValidConnections) Add(token crypto.Token) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.valid[token] = struct{}{}
}

func (a *AcceptValidConnections) Remove(token crypto.Token) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.valid, token)
}

func (a *AcceptValidConnections) ValidateConnection(token crypto.Token) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.valid[token]; !ok {
		return ErrConnectionRejected
	}
	return nil
}
