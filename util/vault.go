package util

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/scrypt"

	"github.com/freehandle/ripple/crypto"
)

var ErrVaultCorrupted = errors.New("vault file seems corrupted")

const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	cipherKey = 32
)

// SecureVault keeps the private key of a node identity sealed under a key
// derived from a password. The file holds a random salt followed by the
// sealed key.
type SecureVault struct {
	SecretKey crypto.PrivateKey
}

// NewSecureVault seals secret into a new file. It fails if the file exists.
func NewSecureVault(password []byte, fileName string, secret crypto.PrivateKey) (*SecureVault, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("could not create secure vault file: %w", err)
	}
	defer file.Close()
	data := make([]byte, 0)
	salt, _ := crypto.RandomAsymetricKey()
	PutToken(salt, &data)
	cipher, err := vaultCipher(password, salt)
	if err != nil {
		return nil, err
	}
	PutByteArray(cipher.Seal(secret[:]), &data)
	if n, err := file.Write(data); n != len(data) || err != nil {
		return nil, fmt.Errorf("could not write secure vault file: %w", err)
	}
	return &SecureVault{SecretKey: secret}, nil
}

func OpenVaultFromPassword(password []byte, fileName string) (*SecureVault, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("could not read secure vault: %w", err)
	}
	position := 0
	var salt crypto.Token
	salt, position = ParseToken(data, position)
	var sealed []byte
	sealed, position = ParseByteArray(data, position)
	if position != len(data) {
		return nil, ErrVaultCorrupted
	}
	cipher, err := vaultCipher(password, salt)
	if err != nil {
		return nil, err
	}
	naked, err := cipher.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("could not decrypt key: %w", err)
	}
	if !crypto.IsValidPrivateKey(naked) {
		return nil, fmt.Errorf("%w: could not read valid private key", ErrVaultCorrupted)
	}
	vault := SecureVault{}
	copy(vault.SecretKey[:], naked)
	return &vault, nil
}

func vaultCipher(password []byte, salt crypto.Token) (crypto.Cipher, error) {
	key, err := scrypt.Key(password, salt[:], scryptN, scryptR, scryptP, cipherKey)
	if err != nil {
		return crypto.Cipher{}, fmt.Errorf("could not derive cipher key from password and salt: %w", err)
	}
	return crypto.CipherFromKey(key)
}
