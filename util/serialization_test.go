package util

import (
	"bytes"
	"testing"

	"github.com/freehandle/ripple/crypto"
)

func TestSerializationRoundTrip(t *testing.T) {
	token, key := crypto.RandomAsymetricKey()
	hash := crypto.Hasher([]byte("previous"))
	signature := key.Sign([]byte("data"))

	data := make([]byte, 0)
	PutToken(token, &data)
	PutUint64(1<<40+7, &data)
	PutHash(hash, &data)
	PutBool(true, &data)
	PutString("contact", &data)
	PutLongByteArray([]byte{1, 2, 3}, &data)
	PutSignature(signature, &data)

	position := 0
	var parsedToken crypto.Token
	parsedToken, position = ParseToken(data, position)
	var sequence uint64
	sequence, position = ParseUint64(data, position)
	var parsedHash crypto.Hash
	parsedHash, position = ParseHash(data, position)
	var flag bool
	flag, position = ParseBool(data, position)
	var kind string
	kind, position = ParseString(data, position)
	var payload []byte
	payload, position = ParseLongByteArray(data, position)
	var parsedSignature crypto.Signature
	parsedSignature, position = ParseSignature(data, position)

	if position != len(data) {
		t.Fatalf("expected position %v, got %v", len(data), position)
	}
	if parsedToken != token || sequence != 1<<40+7 || parsedHash != hash || !flag {
		t.Error("fixed size fields do not match")
	}
	if kind != "contact" || !bytes.Equal(payload, []byte{1, 2, 3}) || parsedSignature != signature {
		t.Error("variable size fields do not match")
	}
}

func TestParseTruncated(t *testing.T) {
	data := make([]byte, 0)
	PutUint64(10, &data)
	if _, position := ParseUint64(data[:5], 0); position <= 5 {
		t.Errorf("expected position beyond data, got %v", position)
	}
	if _, position := ParseByteArray([]byte{10, 0, 1}, 0); position <= 3 {
		t.Errorf("expected position beyond data, got %v", position)
	}
}
