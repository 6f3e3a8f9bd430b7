package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/feed"
	"github.com/freehandle/ripple/graph"
)

type author struct {
	key  crypto.PrivateKey
	head feed.Head
}

func newAuthor() *author {
	_, key := crypto.RandomAsymetricKey()
	return &author{key: key}
}

func (a *author) token() crypto.Token {
	return a.key.PublicKey()
}

func (a *author) add(content feed.Content) *feed.Message {
	msg := feed.NewMessage(a.key, a.head, content, time.Now())
	a.head = msg.Head()
	return msg
}

func TestMayConnect(t *testing.T) {
	alice, bob, carol := newAuthor(), newAuthor(), newAuthor()
	set := graph.Replay([]*feed.Message{
		alice.add(feed.Follow(bob.token(), true)),
		alice.add(feed.Block(bob.token(), true)),
	})
	assert.ErrorIs(t, MayConnect(set, alice.token(), bob.token()), ErrConnectionDenied)
	assert.NoError(t, MayConnect(set, alice.token(), carol.token()))
	// blocks are directed
	assert.NoError(t, MayConnect(set, bob.token(), alice.token()))
}

func TestMayRelayPriorHistory(t *testing.T) {
	alice, bob, carol := newAuthor(), newAuthor(), newAuthor()
	m1 := alice.add(feed.Follow(bob.token(), true))
	m2 := alice.add(feed.Block(bob.token(), true))
	m3 := alice.add(feed.Other{Type: "post"})
	set := graph.Replay([]*feed.Message{m1, m2, m3})

	assert.True(t, MayRelay(set, carol.token(), m1, bob.token()))
	assert.False(t, MayRelay(set, carol.token(), m2, bob.token()))
	assert.False(t, MayRelay(set, carol.token(), m3, bob.token()))

	// the author relays its own feed, and the feed is always relayed to its author
	assert.True(t, MayRelay(set, alice.token(), m2, bob.token()))
	assert.True(t, MayRelay(set, bob.token(), m2, alice.token()))
	// other peers are not affected
	assert.True(t, MayRelay(set, carol.token(), m3, carol.token()))
}

func TestMayRelayReversal(t *testing.T) {
	alice, bob, carol := newAuthor(), newAuthor(), newAuthor()
	m1 := alice.add(feed.Block(bob.token(), true))
	m2 := alice.add(feed.Other{Type: "post"})
	set := graph.Replay([]*feed.Message{m1, m2})
	assert.False(t, MayRelay(set, carol.token(), m1, bob.token()))

	m3 := alice.add(feed.Block(bob.token(), false))
	set = graph.ApplyContact(set, m3)
	for _, msg := range []*feed.Message{m1, m2, m3} {
		assert.True(t, MayRelay(set, carol.token(), msg, bob.token()))
	}
}
