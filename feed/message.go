// Package feed defines the signed, hash-chained messages that compose a feed
// and the validator that checks them before they are appended.
package feed

import (
	"time"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/util"
)

// Head is the last appended position of a feed. The zero Head is the head of
// an empty feed.
type Head struct {
	Sequence uint64
	Hash     crypto.Hash
}

type Message struct {
	Author    crypto.Token
	Sequence  uint64
	Previous  crypto.Hash
	Timestamp time.Time
	Content   Content
	Signature crypto.Signature
}

// NewMessage creates and signs the message following head on the feed owned
// by key.
func NewMessage(key crypto.PrivateKey, head Head, content Content, timestamp time.Time) *Message {
	msg := &Message{
		Author:    key.PublicKey(),
		Sequence:  head.Sequence + 1,
		Previous:  head.Hash,
		Timestamp: timestamp,
		Content:   content,
	}
	msg.Signature = key.Sign(msg.serializeToSign())
	return msg
}

func (m *Message) serializeToSign() []byte {
	bytes := make([]byte, 0)
	util.PutToken(m.Author, &bytes)
	util.PutUint64(m.Sequence, &bytes)
	util.PutHash(m.Previous, &bytes)
	util.PutUint64(uint64(m.Timestamp.UnixNano()), &bytes)
	util.PutByte(m.Content.Kind(), &bytes)
	m.Content.serialize(&bytes)
	return bytes
}

func (m *Message) Serialize() []byte {
	bytes := m.serializeToSign()
	util.PutSignature(m.Signature, &bytes)
	return bytes
}

// Hash is the link the next message of the feed must point to.
func (m *Message) Hash() crypto.Hash {
	return crypto.Hasher(m.Serialize())
}

// Head returns the feed head after this message is appended.
func (m *Message) Head() Head {
	return Head{Sequence: m.Sequence, Hash: m.Hash()}
}

// VerifySignature checks the author signature over the message body.
func (m *Message) VerifySignature() bool {
	return m.Author.Verify(m.serializeToSign(), m.Signature)
}

// Contact returns the contact content of the message, if any.
func (m *Message) Contact() (Contact, bool) {
	contact, ok := m.Content.(Contact)
	return contact, ok
}

// ParseMessage returns nil if data is not a well formed message.
func ParseMessage(data []byte) *Message {
	msg := Message{}
	position := 0
	msg.Author, position = util.ParseToken(data, position)
	msg.Sequence, position = util.ParseUint64(data, position)
	msg.Previous, position = util.ParseHash(data, position)
	var nano uint64
	nano, position = util.ParseUint64(data, position)
	msg.Timestamp = time.Unix(0, int64(nano))
	var kind byte
	kind, position = util.ParseByte(data, position)
	switch kind {
	case ContactKind:
		msg.Content, position = parseContact(data, position)
	case OtherKind:
		msg.Content, position = parseOther(data, position)
	default:
		return nil
	}
	msg.Signature, position = util.ParseSignature(data, position)
	if position != len(data) {
		return nil
	}
	return &msg
}
