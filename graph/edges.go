// Package graph derives the follow and block edges between feeds from the
// contact messages of their logs.
//
// An EdgeSet is immutable. ApplyContact folds one message into a set and
// returns a new one sharing every untouched source with the previous set, so
// the same function serves incremental updates and full replays.
package graph

import (
	"bytes"
	"slices"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/feed"
)

type Kind byte

const (
	FollowEdge Kind = iota
	BlockEdge
)

func (k Kind) String() string {
	switch k {
	case FollowEdge:
		return "follow"
	case BlockEdge:
		return "block"
	}
	return "unknown"
}

// Assertion is the value of an edge asserted by the message at Sequence of the
// source feed.
type Assertion struct {
	Sequence uint64
	Value    bool
}

// Record is a single assertion about the edge (Source, Dest, Kind).
type Record struct {
	Source crypto.Token
	Dest   crypto.Token
	Kind   Kind
	Assertion
}

type edgeKey struct {
	dest crypto.Token
	kind Kind
}

// history is ordered by ascending sequence. The last assertion is the current
// value of the edge.
type history []Assertion

func (h history) current() Assertion {
	return h[len(h)-1]
}

func (h history) at(sequence uint64) bool {
	for n := len(h) - 1; n >= 0; n-- {
		if h[n].Sequence <= sequence {
			return h[n].Value
		}
	}
	return false
}

type sourceEdges map[edgeKey]history

type EdgeSet struct {
	sources map[crypto.Token]sourceEdges
}

func NewEdgeSet() EdgeSet {
	return EdgeSet{sources: make(map[crypto.Token]sourceEdges)}
}

// Assertions returns the edge assertions carried by msg. Messages other than
// contacts assert nothing.
func Assertions(msg *feed.Message) []Record {
	contact, ok := msg.Contact()
	if !ok {
		return nil
	}
	records := make([]Record, 0, 2)
	if contact.Following != nil {
		records = append(records, Record{
			Source:    msg.Author,
			Dest:      contact.Contact,
			Kind:      FollowEdge,
			Assertion: Assertion{Sequence: msg.Sequence, Value: *contact.Following},
		})
	}
	if contact.Flagged != nil {
		records = append(records, Record{
			Source:    msg.Author,
			Dest:      contact.Contact,
			Kind:      BlockEdge,
			Assertion: Assertion{Sequence: msg.Sequence, Value: *contact.Flagged},
		})
	}
	return records
}

// ApplyContact returns the edge set after folding msg. Assertions not newer
// than the latest sequence already folded into their edge are ignored, so
// replaying messages is idempotent.
func ApplyContact(set EdgeSet, msg *feed.Message) EdgeSet {
	return set.apply(Assertions(msg))
}

// FromRecords rebuilds an edge set from persisted assertions.
func FromRecords(records []Record) EdgeSet {
	return NewEdgeSet().apply(records)
}

// Replay folds messages, in the given order, into an empty edge set.
func Replay(messages []*feed.Message) EdgeSet {
	set := NewEdgeSet()
	for _, msg := range messages {
		set = ApplyContact(set, msg)
	}
	return set
}

func (s EdgeSet) apply(records []Record) EdgeSet {
	if len(records) == 0 {
		return s
	}
	sources := make(map[crypto.Token]sourceEdges, len(s.sources)+1)
	for token, edges := range s.sources {
		sources[token] = edges
	}
	cloned := make(map[crypto.Token]struct{})
	for _, record := range records {
		edges := sources[record.Source]
		if _, ok := cloned[record.Source]; !ok {
			copied := make(sourceEdges, len(edges)+1)
			for key, h := range edges {
				copied[key] = h
			}
			edges = copied
			sources[record.Source] = edges
			cloned[record.Source] = struct{}{}
		}
		key := edgeKey{dest: record.Dest, kind: record.Kind}
		h := edges[key]
		if len(h) > 0 && h.current().Sequence >= record.Sequence {
			continue
		}
		edges[key] = append(slices.Clip(h), record.Assertion)
	}
	return EdgeSet{sources: sources}
}

// Get returns the current value of an edge and whether it was ever asserted.
func (s EdgeSet) Get(source, dest crypto.Token, kind Kind) (bool, bool) {
	h, ok := s.sources[source][edgeKey{dest: dest, kind: kind}]
	if !ok {
		return false, false
	}
	return h.current().Value, true
}

func (s EdgeSet) IsBlocked(source, dest crypto.Token) bool {
	value, _ := s.Get(source, dest, BlockEdge)
	return value
}

// IsBlockedAt returns the block edge from source to dest as it stood after the
// message at sequence of the source feed was folded.
func (s EdgeSet) IsBlockedAt(source, dest crypto.Token, sequence uint64) bool {
	h, ok := s.sources[source][edgeKey{dest: dest, kind: BlockEdge}]
	if !ok {
		return false
	}
	return h.at(sequence)
}

func (s EdgeSet) IsFollowing(source, dest crypto.Token) bool {
	value, _ := s.Get(source, dest, FollowEdge)
	return value
}

// Follows returns the feeds source currently follows.
func (s EdgeSet) Follows(source crypto.Token) []crypto.Token {
	follows := make([]crypto.Token, 0)
	for key, h := range s.sources[source] {
		if key.kind == FollowEdge && h.current().Value {
			follows = append(follows, key.dest)
		}
	}
	return follows
}

// Records lists every assertion in a deterministic order.
func (s EdgeSet) Records() []Record {
	records := make([]Record, 0)
	for source, edges := range s.sources {
		for key, h := range edges {
			for _, assertion := range h {
				records = append(records, Record{Source: source, Dest: key.dest, Kind: key.kind, Assertion: assertion})
			}
		}
	}
	slices.SortFunc(records, compareRecords)
	return records
}

func compareRecords(a, b Record) int {
	if c := bytes.Compare(a.Source[:], b.Source[:]); c != 0 {
		return c
	}
	if c := bytes.Compare(a.Dest[:], b.Dest[:]); c != 0 {
		return c
	}
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	if a.Sequence < b.Sequence {
		return -1
	}
	if a.Sequence > b.Sequence {
		return 1
	}
	return 0
}
