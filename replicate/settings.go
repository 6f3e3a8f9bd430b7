package replicate

import (
	"time"

	"github.com/freehandle/ripple/feed"
	"github.com/freehandle/ripple/socket"
)

type Settings struct {
	// NegotiationTimeout bounds the exchange of clocks after the handshake.
	NegotiationTimeout time.Duration
	// Hops is the follow distance within which feeds are replicated.
	Hops int
	// SubscriptionBuffer is the capacity of every subscription channel.
	SubscriptionBuffer int
	// ValidatorCache is the number of verified message hashes remembered.
	ValidatorCache int
	// WriterQueue is the capacity of the append queue of the writer.
	WriterQueue int
	// Firewall, if set, must also accept a remote token for a session to be
	// established.
	Firewall socket.ValidateConnection
	// AfterCommit is called by the writer once a message is durable and
	// before its graph effect is published. A returned error is fatal to
	// the node.
	AfterCommit func(msg *feed.Message) error
}

func DefaultSettings() Settings {
	return Settings{
		NegotiationTimeout: 10 * time.Second,
		Hops:               2,
		SubscriptionBuffer: 256,
		ValidatorCache:     4096,
		WriterQueue:        64,
	}
}
