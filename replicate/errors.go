package replicate

import (
	"errors"

	"github.com/freehandle/ripple/policy"
)

var (
	// ErrConnectionDenied is returned by Connect, and logged on accept, when
	// either side refuses the session at handshake.
	ErrConnectionDenied = policy.ErrConnectionDenied
	ErrClosed           = errors.New("node is closed")
	ErrSelfConnection   = errors.New("cannot connect to own identity")
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnexpectedFrame  = errors.New("unexpected replication frame")
)
