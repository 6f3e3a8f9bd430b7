// Package policy decides, from the social graph, which peers may open a
// replication session and which messages may be relayed to them.
package policy

import (
	"errors"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/feed"
)

var ErrConnectionDenied = errors.New("connection denied")

// Graph is the view of the social graph the decisions depend on.
type Graph interface {
	IsBlocked(source, dest crypto.Token) bool
	IsBlockedAt(source, dest crypto.Token, sequence uint64) bool
}

// MayConnect denies a session between local and remote if local blocks
// remote.
func MayConnect(graph Graph, local, remote crypto.Token) error {
	if graph.IsBlocked(local, remote) {
		return ErrConnectionDenied
	}
	return nil
}

// MayRelay reports whether forwarder may send msg to peer to. A feed is always
// relayed by its own author and to its own author. Otherwise msg is withheld
// if its author blocked to as of msg and the block still stands.
//
// Decisions must be taken in ascending sequence order of the feed: messages
// preceding the block message are relayed, the block message and later ones
// are not, until a later contact lifts the block.
func MayRelay(graph Graph, forwarder crypto.Token, msg *feed.Message, to crypto.Token) bool {
	if forwarder == msg.Author || to == msg.Author {
		return true
	}
	return !(graph.IsBlockedAt(msg.Author, to, msg.Sequence) && graph.IsBlocked(msg.Author, to))
}
