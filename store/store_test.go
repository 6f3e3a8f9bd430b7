package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/feed"
	"github.com/freehandle/ripple/graph"
)

func chain(key crypto.PrivateKey, contents ...feed.Content) []*feed.Message {
	messages := make([]*feed.Message, 0, len(contents))
	head := feed.Head{}
	for _, content := range contents {
		msg := feed.NewMessage(key, head, content, time.Now())
		head = msg.Head()
		messages = append(messages, msg)
	}
	return messages
}

func TestAppendReadHead(t *testing.T) {
	s, err := OpenMemory(Options{})
	require.NoError(t, err)
	defer s.Close()

	token, key := crypto.RandomAsymetricKey()
	messages := chain(key, feed.Other{Type: "post"}, feed.Other{Type: "post"}, feed.Other{Type: "post"})

	seq, err := s.MaxSeq(token)
	require.NoError(t, err)
	require.Zero(t, seq)

	for _, msg := range messages {
		require.NoError(t, s.Append(msg))
	}
	head, err := s.Head(token)
	require.NoError(t, err)
	require.Equal(t, messages[2].Head(), head)

	read, err := s.Read(token, 2, 3)
	require.NoError(t, err)
	require.Len(t, read, 2)
	require.Equal(t, messages[1].Hash(), read[0].Hash())
	require.Equal(t, messages[2].Hash(), read[1].Hash())

	all, err := s.Read(token, 1, ^uint64(0))
	require.NoError(t, err)
	require.Len(t, all, 3)

	empty, err := s.Read(token, 3, 2)
	require.NoError(t, err)
	require.Empty(t, empty)

	msg, err := s.Get(token, 1)
	require.NoError(t, err)
	require.Equal(t, messages[0].Hash(), msg.Hash())
	_, err = s.Get(token, 9)
	require.ErrorIs(t, err, ErrNotFound)

	clock, err := s.Clock()
	require.NoError(t, err)
	require.Equal(t, uint64(3), clock.Get(token))
}

func TestSequenceConflict(t *testing.T) {
	s, err := OpenMemory(Options{})
	require.NoError(t, err)
	defer s.Close()

	_, key := crypto.RandomAsymetricKey()
	messages := chain(key, feed.Other{Type: "post"}, feed.Other{Type: "post"})
	require.ErrorIs(t, s.Append(messages[1]), ErrSequenceConflict)
	require.NoError(t, s.Append(messages[0]))
	require.ErrorIs(t, s.Append(messages[0]), ErrSequenceConflict)

	fork := feed.NewMessage(key, feed.Head{Sequence: 1}, feed.Other{Type: "fork"}, time.Now())
	require.ErrorIs(t, s.Append(fork), ErrSequenceConflict)
	require.NoError(t, s.Append(messages[1]))
}

func TestCommitEdgesAndReopen(t *testing.T) {
	stor := storage.NewMemStorage()
	s, err := OpenStorage(stor, Options{})
	require.NoError(t, err)

	alice, key := crypto.RandomAsymetricKey()
	bob, _ := crypto.RandomAsymetricKey()
	messages := chain(key, feed.Follow(bob, true), feed.Block(bob, true))
	for _, msg := range messages {
		require.NoError(t, s.Commit(msg, graph.Assertions(msg)))
	}
	require.NoError(t, s.Close())

	s, err = OpenStorage(stor, Options{})
	require.NoError(t, err)
	defer s.Close()

	records, err := s.Edges()
	require.NoError(t, err)
	require.Equal(t, graph.Replay(messages).Records(), graph.FromRecords(records).Records())
	require.True(t, graph.FromRecords(records).IsBlocked(alice, bob))

	count := 0
	require.NoError(t, s.ForEach(func(msg *feed.Message) error {
		count++
		require.Equal(t, uint64(count), msg.Sequence)
		return nil
	}))
	require.Equal(t, 2, count)
}

func TestAppendPersistsEdges(t *testing.T) {
	stor := storage.NewMemStorage()
	s, err := OpenStorage(stor, Options{})
	require.NoError(t, err)

	alice, key := crypto.RandomAsymetricKey()
	bob, _ := crypto.RandomAsymetricKey()
	for _, msg := range chain(key, feed.Block(bob, true)) {
		require.NoError(t, s.Append(msg))
	}
	require.NoError(t, s.Close())

	s, err = OpenStorage(stor, Options{})
	require.NoError(t, err)
	defer s.Close()

	records, err := s.Edges()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, graph.FromRecords(records).IsBlocked(alice, bob))
}

func TestBeforeCommitAbort(t *testing.T) {
	crash := errors.New("crash")
	s, err := OpenMemory(Options{BeforeCommit: func(msg *feed.Message) error {
		if msg.Sequence == 2 {
			return crash
		}
		return nil
	}})
	require.NoError(t, err)
	defer s.Close()

	alice, key := crypto.RandomAsymetricKey()
	bob, _ := crypto.RandomAsymetricKey()
	messages := chain(key, feed.Follow(bob, true), feed.Block(bob, true))
	require.NoError(t, s.Commit(messages[0], graph.Assertions(messages[0])))
	require.ErrorIs(t, s.Commit(messages[1], graph.Assertions(messages[1])), crash)

	seq, err := s.MaxSeq(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq)
	records, err := s.Edges()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.False(t, graph.FromRecords(records).IsBlocked(alice, bob))
}
