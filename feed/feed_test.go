package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/freehandle/ripple/crypto"
)

func TestMessageSerializeParse(t *testing.T) {
	_, key := crypto.RandomAsymetricKey()
	friend, _ := crypto.RandomAsymetricKey()

	first := NewMessage(key, Head{}, Follow(friend, true), time.Now())
	second := NewMessage(key, first.Head(), Other{Type: "post", Data: []byte("hello")}, time.Now())

	for _, msg := range []*Message{first, second} {
		parsed := ParseMessage(msg.Serialize())
		require.NotNil(t, parsed)
		require.Equal(t, msg.Hash(), parsed.Hash())
		require.True(t, parsed.VerifySignature())
	}

	parsed := ParseMessage(first.Serialize())
	contact, ok := parsed.Contact()
	require.True(t, ok)
	require.Equal(t, friend, contact.Contact)
	require.NotNil(t, contact.Following)
	require.True(t, *contact.Following)
	require.Nil(t, contact.Flagged)

	_, ok = ParseMessage(second.Serialize()).Contact()
	require.False(t, ok)
}

func TestParseMessageMalformed(t *testing.T) {
	_, key := crypto.RandomAsymetricKey()
	msg := NewMessage(key, Head{}, Other{Type: "post"}, time.Now())
	data := msg.Serialize()
	require.Nil(t, ParseMessage(data[:len(data)-1]))
	require.Nil(t, ParseMessage(append(data, 0)))
	require.Nil(t, ParseMessage(nil))
}

func TestValidator(t *testing.T) {
	validator, err := NewValidator(16)
	require.NoError(t, err)
	_, key := crypto.RandomAsymetricKey()
	_, other := crypto.RandomAsymetricKey()

	first := NewMessage(key, Head{}, Other{Type: "post"}, time.Now())
	require.NoError(t, validator.Validate(first, Head{}))
	// cached signature
	require.NoError(t, validator.Validate(first, Head{}))

	second := NewMessage(key, first.Head(), Other{Type: "post"}, time.Now())
	require.NoError(t, validator.Validate(second, first.Head()))
	require.ErrorIs(t, validator.Validate(second, Head{}), ErrInvalidSequence)

	badLink := NewMessage(key, Head{Sequence: 1, Hash: crypto.Hasher([]byte("fork"))}, Other{Type: "post"}, time.Now())
	require.ErrorIs(t, validator.Validate(badLink, first.Head()), ErrInvalidLinkage)

	forged := NewMessage(other, first.Head(), Other{Type: "post"}, time.Now())
	forged.Author = key.PublicKey()
	require.ErrorIs(t, validator.Validate(forged, first.Head()), ErrInvalidSignature)
}

func TestMessageJSON(t *testing.T) {
	_, key := crypto.RandomAsymetricKey()
	friend, _ := crypto.RandomAsymetricKey()
	msg := NewMessage(key, Head{}, Block(friend, true), time.Now())

	var decoded struct {
		Author   string
		Sequence uint64
		Content  struct {
			Type    string
			Contact string
			Flagged *bool
		}
	}
	require.NoError(t, json.Unmarshal([]byte(msg.JSON()), &decoded))
	require.Equal(t, key.PublicKey().String(), decoded.Author)
	require.Equal(t, uint64(1), decoded.Sequence)
	require.Equal(t, "contact", decoded.Content.Type)
	require.Equal(t, friend.String(), decoded.Content.Contact)
	require.NotNil(t, decoded.Content.Flagged)
	require.True(t, *decoded.Content.Flagged)

	other := NewMessage(key, msg.Head(), Other{Type: "say \"hi\"", Data: []byte{1, 2}}, time.Now())
	require.True(t, json.Valid([]byte(other.JSON())))
}
