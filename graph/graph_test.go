package graph

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/feed"
)

type testFeed struct {
	key  crypto.PrivateKey
	head feed.Head
}

func newTestFeed() *testFeed {
	_, key := crypto.RandomAsymetricKey()
	return &testFeed{key: key}
}

func (f *testFeed) token() crypto.Token {
	return f.key.PublicKey()
}

func (f *testFeed) add(content feed.Content) *feed.Message {
	msg := feed.NewMessage(f.key, f.head, content, time.Now())
	f.head = msg.Head()
	return msg
}

func TestApplyContactLastWriteWins(t *testing.T) {
	alice, bob := newTestFeed(), newTestFeed()
	follow := alice.add(feed.Follow(bob.token(), true))
	post := alice.add(feed.Other{Type: "post"})
	unfollow := alice.add(feed.Follow(bob.token(), false))

	set := NewEdgeSet()
	set = ApplyContact(set, follow)
	assert.True(t, set.IsFollowing(alice.token(), bob.token()))

	same := ApplyContact(set, post)
	assert.Equal(t, set.Records(), same.Records())

	set = ApplyContact(set, unfollow)
	value, ok := set.Get(alice.token(), bob.token(), FollowEdge)
	assert.True(t, ok)
	assert.False(t, value)

	// an older message replayed after a newer one is ignored
	set = ApplyContact(set, follow)
	assert.False(t, set.IsFollowing(alice.token(), bob.token()))

	_, ok = set.Get(bob.token(), alice.token(), FollowEdge)
	assert.False(t, ok)
}

func TestApplyContactDoesNotMutate(t *testing.T) {
	alice, bob := newTestFeed(), newTestFeed()
	before := ApplyContact(NewEdgeSet(), alice.add(feed.Block(bob.token(), true)))
	after := ApplyContact(before, alice.add(feed.Block(bob.token(), false)))
	assert.True(t, before.IsBlocked(alice.token(), bob.token()))
	assert.False(t, after.IsBlocked(alice.token(), bob.token()))
	assert.Len(t, before.Records(), 1)
	assert.Len(t, after.Records(), 2)
}

func TestReplayIdempotent(t *testing.T) {
	alice, bob, carol := newTestFeed(), newTestFeed(), newTestFeed()
	messages := []*feed.Message{
		alice.add(feed.Follow(bob.token(), true)),
		bob.add(feed.Follow(alice.token(), true)),
		alice.add(feed.Block(bob.token(), true)),
		carol.add(feed.Follow(alice.token(), true)),
		alice.add(feed.Follow(carol.token(), true)),
		alice.add(feed.Block(bob.token(), false)),
	}
	once := Replay(messages)
	twice := Replay(append(append([]*feed.Message{}, messages...), messages...))
	require.Equal(t, once.Records(), twice.Records())

	again := once
	for _, msg := range messages {
		again = ApplyContact(again, msg)
	}
	require.Equal(t, once.Records(), again.Records())
	require.Equal(t, once.Records(), FromRecords(once.Records()).Records())
}

func TestIsBlockedAt(t *testing.T) {
	alice, bob := newTestFeed(), newTestFeed()
	set := Replay([]*feed.Message{
		alice.add(feed.Follow(bob.token(), true)),
		alice.add(feed.Block(bob.token(), true)),
		alice.add(feed.Other{Type: "post"}),
		alice.add(feed.Block(bob.token(), false)),
	})
	assert.False(t, set.IsBlockedAt(alice.token(), bob.token(), 1))
	assert.True(t, set.IsBlockedAt(alice.token(), bob.token(), 2))
	assert.True(t, set.IsBlockedAt(alice.token(), bob.token(), 3))
	assert.False(t, set.IsBlockedAt(alice.token(), bob.token(), 4))
	assert.False(t, set.IsBlocked(alice.token(), bob.token()))
	assert.False(t, set.IsBlocked(bob.token(), alice.token()))
}

func TestReachable(t *testing.T) {
	alice, bob, carol, dave := newTestFeed(), newTestFeed(), newTestFeed(), newTestFeed()
	set := Replay([]*feed.Message{
		alice.add(feed.Follow(bob.token(), true)),
		bob.add(feed.Follow(carol.token(), true)),
		carol.add(feed.Follow(dave.token(), true)),
	})
	one := set.Reachable(alice.token(), 1)
	assert.True(t, one.Contains(alice.token(), bob.token()))
	assert.False(t, one.Contains(carol.token()))

	two := set.Reachable(alice.token(), 2)
	assert.True(t, two.Contains(carol.token()))
	assert.False(t, two.Contains(dave.token()))

	set = ApplyContact(set, alice.add(feed.Block(carol.token(), true)))
	assert.False(t, set.Reachable(alice.token(), 3).Contains(carol.token()))
	assert.False(t, set.Reachable(alice.token(), 3).Contains(dave.token()))
}

func TestIndexConcurrentReaders(t *testing.T) {
	alice, bob := newTestFeed(), newTestFeed()
	index := NewIndex(NewEdgeSet())
	messages := make([]*feed.Message, 0)
	for n := 0; n < 100; n++ {
		messages = append(messages, alice.add(feed.Block(bob.token(), n%2 == 0)))
	}
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 1000; n++ {
				snapshot := index.Snapshot()
				records := snapshot.Records()
				if len(records) == 0 {
					continue
				}
				last := records[len(records)-1]
				// the current value always agrees with the last assertion
				if snapshot.IsBlocked(alice.token(), bob.token()) != last.Value {
					t.Error("partial update observed")
					return
				}
			}
		}()
	}
	for _, msg := range messages {
		index.Update(msg)
	}
	wg.Wait()
	assert.False(t, index.IsBlocked(alice.token(), bob.token()))
}
