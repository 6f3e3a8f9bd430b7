package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
)

var ErrCipherOpen = errors.New("could not open sealed data")

// Cipher seals data with AES-GCM. The random nonce is prepended to the sealed
// output.
type Cipher struct {
	aead cipher.AEAD
}

func CipherFromKey(key []byte) (Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return Cipher{}, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return Cipher{}, err
	}
	return Cipher{aead: aead}, nil
}

func (c Cipher) Seal(data []byte) []byte {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		panic("could not read random nonce")
	}
	return c.aead.Seal(nonce, nonce, data, nil)
}

func (c Cipher) Open(sealed []byte) ([]byte, error) {
	size := c.aead.NonceSize()
	if len(sealed) < size {
		return nil, ErrCipherOpen
	}
	data, err := c.aead.Open(nil, sealed[:size], sealed[size:], nil)
	if err != nil {
		return nil, ErrCipherOpen
	}
	return data, nil
}
