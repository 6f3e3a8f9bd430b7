package crypto

import (
	"crypto/sha256"
	"encoding/base64"
)

type Hash [Size]byte

var hashLength = base64.StdEncoding.EncodedLen(Size)

// ZeroHash is the previous link of the first message of every feed.
var ZeroHash Hash

func (h Hash) MarshalText() (text []byte, err error) {
	text = make([]byte, hashLength)
	base64.StdEncoding.Encode(text, h[:])
	return
}

func (h *Hash) UnmarshalText(text []byte) error {
	_, err := base64.StdEncoding.Decode(h[:], text)
	return err
}

func EncodeHash(h Hash) string {
	text := make([]byte, hashLength)
	base64.StdEncoding.Encode(text, h[:])
	return string(text)
}

func DecodeHash(text string) Hash {
	var hash Hash
	base64.StdEncoding.Decode(hash[:], []byte(text))
	return hash
}

func (h Hash) String() string {
	return EncodeHash(h)
}

func (h Hash) Equal(another Hash) bool {
	return h == another
}

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

func BytesToHash(bytes []byte) Hash {
	var hash Hash
	if len(bytes) != Size {
		return hash
	}
	copy(hash[:], bytes)
	return hash
}

func Hasher(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}
