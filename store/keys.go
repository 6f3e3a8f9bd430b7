package store

import (
	"encoding/binary"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/graph"
)

// Key layout. Sequences are big endian so that leveldb iterates a feed in
// ascending order.
//
//	m | feed | sequence            -> message
//	h | feed                       -> head (sequence, hash)
//	e | source | dest | kind | seq -> edge assertion value
const (
	messagePrefix byte = 'm'
	headPrefix    byte = 'h'
	edgePrefix    byte = 'e'
)

func messageKey(feed crypto.Token, sequence uint64) []byte {
	key := make([]byte, 1+crypto.TokenSize+8)
	key[0] = messagePrefix
	copy(key[1:], feed[:])
	binary.BigEndian.PutUint64(key[1+crypto.TokenSize:], sequence)
	return key
}

func headKey(feed crypto.Token) []byte {
	return append([]byte{headPrefix}, feed[:]...)
}

func edgeKey(record graph.Record) []byte {
	key := make([]byte, 0, 1+2*crypto.TokenSize+1+8)
	key = append(key, edgePrefix)
	key = append(key, record.Source[:]...)
	key = append(key, record.Dest[:]...)
	key = append(key, byte(record.Kind))
	return binary.BigEndian.AppendUint64(key, record.Sequence)
}

func parseEdgeKey(key []byte) (graph.Record, bool) {
	var record graph.Record
	if len(key) != 1+2*crypto.TokenSize+1+8 || key[0] != edgePrefix {
		return record, false
	}
	position := 1
	copy(record.Source[:], key[position:position+crypto.TokenSize])
	position += crypto.TokenSize
	copy(record.Dest[:], key[position:position+crypto.TokenSize])
	position += crypto.TokenSize
	record.Kind = graph.Kind(key[position])
	record.Sequence = binary.BigEndian.Uint64(key[position+1:])
	return record, true
}
