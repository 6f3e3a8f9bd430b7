// Package crypto wraps the ed25519 and sha256 primitives used to identify
// feeds, sign messages and chain them by hash.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
)

const (
	TokenSize      = ed25519.PublicKeySize
	PrivateKeySize = ed25519.PrivateKeySize
	SignatureSize  = ed25519.SignatureSize
	NonceSize      = 32
	Size           = 32
)

// Token is the public key identifying a feed or a node.
type Token [TokenSize]byte

type PrivateKey [PrivateKeySize]byte

type Signature [SignatureSize]byte

var ZeroToken Token
var ZeroPrivateKey PrivateKey
var ZeroSignature Signature

func (t Token) Equal(another Token) bool {
	return t == another
}

func (t Token) IsZero() bool {
	return t == ZeroToken
}

func (t Token) Verify(msg []byte, signature Signature) bool {
	return ed25519.Verify(t[:], msg, signature[:])
}

func (t Token) String() string {
	return hex.EncodeToString(t[:])
}

// Short is a prefix of the hex representation, used in logs.
func (t Token) Short() string {
	return hex.EncodeToString(t[:4])
}

func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Token) UnmarshalText(text []byte) error {
	*t = TokenFromString(string(text))
	return nil
}

// TokenFromString parses a hex encoded token. It returns ZeroToken if the
// string is not a valid token.
func TokenFromString(s string) Token {
	var token Token
	bytes, err := hex.DecodeString(s)
	if err != nil || len(bytes) != TokenSize {
		return token
	}
	copy(token[:], bytes)
	return token
}

func (p PrivateKey) PublicKey() Token {
	var token Token
	copy(token[:], p[32:])
	return token
}

func (p PrivateKey) Sign(msg []byte) Signature {
	var signature Signature
	copy(signature[:], ed25519.Sign(p[:], msg))
	return signature
}

func PrivateKeyFromSeed(seed [32]byte) PrivateKey {
	var key PrivateKey
	copy(key[:], ed25519.NewKeyFromSeed(seed[:]))
	return key
}

// IsValidPrivateKey checks that the public half of the key matches the one
// derived from its seed.
func IsValidPrivateKey(data []byte) bool {
	if len(data) != PrivateKeySize {
		return false
	}
	derived := ed25519.NewKeyFromSeed(data[:32])
	return string(derived[32:]) == string(data[32:])
}

func RandomAsymetricKey() (Token, PrivateKey) {
	pub, prv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic("could not generate ed25519 key")
	}
	var token Token
	var key PrivateKey
	copy(token[:], pub)
	copy(key[:], prv)
	return token, key
}

func Nonce() []byte {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		panic("could not read random nonce")
	}
	return nonce
}
