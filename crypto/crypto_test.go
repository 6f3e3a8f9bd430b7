package crypto

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"testing"
)

func TestSignVerify(t *testing.T) {
	token, key := RandomAsymetricKey()
	if !key.PublicKey().Equal(token) {
		t.Fatal("public key does not match token")
	}
	msg := []byte("feed message")
	signature := key.Sign(msg)
	if !token.Verify(msg, signature) {
		t.Error("valid signature rejected")
	}
	if token.Verify([]byte("another message"), signature) {
		t.Error("signature accepted for different message")
	}
	if !IsValidPrivateKey(key[:]) {
		t.Error("generated key reported invalid")
	}
}

func TestTokenFromString(t *testing.T) {
	token, _ := RandomAsymetricKey()
	if parsed := TokenFromString(token.String()); !parsed.Equal(token) {
		t.Errorf("expected %v, got %v", token, parsed)
	}
	if parsed := TokenFromString("not a token"); !parsed.IsZero() {
		t.Errorf("expected zero token, got %v", parsed)
	}
}

func TestCipherSealOpen(t *testing.T) {
	cipher, err := CipherFromKey(make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	sealed := cipher.Seal([]byte("secret"))
	open, err := cipher.Open(sealed)
	if err != nil || string(open) != "secret" {
		t.Fatalf("could not open sealed data: %v", err)
	}
	sealed[len(sealed)-1] ^= 1
	if _, err := cipher.Open(sealed); err != ErrCipherOpen {
		t.Errorf("expected ErrCipherOpen, got %v", err)
	}
}

func TestParsePEMPrivateKey(t *testing.T) {
	pub, prv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(prv)
	if err != nil {
		t.Fatal(err)
	}
	data := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	key, err := ParsePEMPrivateKey(data)
	if err != nil {
		t.Fatal(err)
	}
	if string(key[32:]) != string(pub) {
		t.Error("parsed key does not match generated key")
	}
}
