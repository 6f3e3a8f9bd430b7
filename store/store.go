// Package store is the durable log store. Messages, feed heads and the edge
// assertions derived from them are kept in leveldb and committed together in
// one batch.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	ldbutil "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/feed"
	"github.com/freehandle/ripple/graph"
	"github.com/freehandle/ripple/util"
	"github.com/freehandle/ripple/vclock"
)

var (
	ErrSequenceConflict = errors.New("sequence conflict")
	ErrNotFound         = errors.New("message not found")
	ErrCorrupted        = errors.New("stored data is corrupted")
)

type Options struct {
	// Sync flushes every commit to disk before returning.
	Sync bool
	// BeforeCommit is called with the staged batch complete and nothing
	// written yet. A returned error aborts the commit.
	BeforeCommit func(msg *feed.Message) error
}

type Store struct {
	mu           sync.Mutex
	db           *leveldb.DB
	writeOptions *opt.WriteOptions
	beforeCommit func(msg *feed.Message) error
}

// Open opens or creates a store in the directory path.
func Open(path string, options Options) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("could not open log store: %w", err)
	}
	return newStore(db, options), nil
}

// OpenStorage opens a store over a leveldb storage. Closing the store does not
// close the storage, so a memory storage can be reopened.
func OpenStorage(stor storage.Storage, options Options) (*Store, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, fmt.Errorf("could not open log store: %w", err)
	}
	return newStore(db, options), nil
}

// OpenMemory opens an empty store kept in memory.
func OpenMemory(options Options) (*Store, error) {
	return OpenStorage(storage.NewMemStorage(), options)
}

func newStore(db *leveldb.DB, options Options) *Store {
	return &Store{
		db:           db,
		writeOptions: &opt.WriteOptions{Sync: options.Sync},
		beforeCommit: options.BeforeCommit,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Head returns the last appended position of feed.
func (s *Store) Head(token crypto.Token) (feed.Head, error) {
	data, err := s.db.Get(headKey(token), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return feed.Head{}, nil
	}
	if err != nil {
		return feed.Head{}, err
	}
	return parseHead(data)
}

func (s *Store) MaxSeq(token crypto.Token) (uint64, error) {
	head, err := s.Head(token)
	return head.Sequence, err
}

// Append stores msg as the next message of its feed, with the edge
// assertions it carries.
func (s *Store) Append(msg *feed.Message) error {
	return s.Commit(msg, graph.Assertions(msg))
}

// Commit stores msg together with the edge assertions derived from it in a
// single atomic write. It returns ErrSequenceConflict if msg does not
// directly follow the stored head of its feed.
func (s *Store) Commit(msg *feed.Message, edges []graph.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	head, err := s.Head(msg.Author)
	if err != nil {
		return err
	}
	if msg.Sequence != head.Sequence+1 || msg.Previous != head.Hash {
		return ErrSequenceConflict
	}
	batch := new(leveldb.Batch)
	batch.Put(messageKey(msg.Author, msg.Sequence), msg.Serialize())
	batch.Put(headKey(msg.Author), serializeHead(msg.Head()))
	for _, record := range edges {
		value := []byte{0}
		if record.Value {
			value[0] = 1
		}
		batch.Put(edgeKey(record), value)
	}
	if s.beforeCommit != nil {
		if err := s.beforeCommit(msg); err != nil {
			return fmt.Errorf("commit aborted: %w", err)
		}
	}
	return s.db.Write(batch, s.writeOptions)
}

func (s *Store) Get(token crypto.Token, sequence uint64) (*feed.Message, error) {
	data, err := s.db.Get(messageKey(token, sequence), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	msg := feed.ParseMessage(data)
	if msg == nil {
		return nil, ErrCorrupted
	}
	return msg, nil
}

// Read returns the messages of feed from sequence from to sequence to, both
// inclusive, in ascending order.
func (s *Store) Read(token crypto.Token, from, to uint64) ([]*feed.Message, error) {
	messages := make([]*feed.Message, 0)
	if to < from {
		return messages, nil
	}
	rng := &ldbutil.Range{Start: messageKey(token, from), Limit: messageKey(token, to+1)}
	if to == ^uint64(0) {
		rng.Limit = ldbutil.BytesPrefix(messageKey(token, 0)[:1+crypto.TokenSize]).Limit
	}
	iter := s.db.NewIterator(rng, nil)
	defer iter.Release()
	for iter.Next() {
		msg := feed.ParseMessage(iter.Value())
		if msg == nil {
			return nil, ErrCorrupted
		}
		messages = append(messages, msg)
	}
	return messages, iter.Error()
}

// Clock returns the stored head sequence of every feed.
func (s *Store) Clock() (vclock.Clock, error) {
	clock := vclock.New()
	iter := s.db.NewIterator(ldbutil.BytesPrefix([]byte{headPrefix}), nil)
	defer iter.Release()
	for iter.Next() {
		var token crypto.Token
		copy(token[:], iter.Key()[1:])
		head, err := parseHead(iter.Value())
		if err != nil {
			return nil, err
		}
		clock.Set(token, head.Sequence)
	}
	return clock, iter.Error()
}

// Edges returns every persisted edge assertion.
func (s *Store) Edges() ([]graph.Record, error) {
	records := make([]graph.Record, 0)
	iter := s.db.NewIterator(ldbutil.BytesPrefix([]byte{edgePrefix}), nil)
	defer iter.Release()
	for iter.Next() {
		record, ok := parseEdgeKey(iter.Key())
		if !ok || len(iter.Value()) != 1 {
			return nil, ErrCorrupted
		}
		record.Value = iter.Value()[0] == 1
		records = append(records, record)
	}
	return records, iter.Error()
}

// ForEach calls fn with every stored message, feed by feed, each feed in
// ascending sequence order.
func (s *Store) ForEach(fn func(msg *feed.Message) error) error {
	iter := s.db.NewIterator(ldbutil.BytesPrefix([]byte{messagePrefix}), nil)
	defer iter.Release()
	for iter.Next() {
		msg := feed.ParseMessage(iter.Value())
		if msg == nil {
			return ErrCorrupted
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
	return iter.Error()
}

func serializeHead(head feed.Head) []byte {
	bytes := make([]byte, 0, 8+crypto.Size)
	util.PutUint64(head.Sequence, &bytes)
	util.PutHash(head.Hash, &bytes)
	return bytes
}

func parseHead(data []byte) (feed.Head, error) {
	var head feed.Head
	position := 0
	head.Sequence, position = util.ParseUint64(data, position)
	head.Hash, position = util.ParseHash(data, position)
	if position != len(data) {
		return feed.Head{}, ErrCorrupted
	}
	return head, nil
}
