package feed

import (
	"errors"

	lru "github.com/hashicorp/golang-lru"
)

var (
	ErrInvalidSignature = errors.New("invalid message signature")
	ErrInvalidSequence  = errors.New("invalid message sequence")
	ErrInvalidLinkage   = errors.New("invalid previous message link")
)

// Validator checks signature, sequence and hash chain linkage of a message
// against the current head of its feed. Verified signatures are cached by
// message hash so the same message received from several peers is verified
// once.
type Validator struct {
	verified *lru.Cache
}

func NewValidator(cacheSize int) (*Validator, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Validator{verified: cache}, nil
}

func (v *Validator) Validate(msg *Message, head Head) error {
	if msg.Sequence != head.Sequence+1 {
		return ErrInvalidSequence
	}
	if msg.Previous != head.Hash {
		return ErrInvalidLinkage
	}
	return v.verifySignature(msg)
}

func (v *Validator) verifySignature(msg *Message) error {
	hash := msg.Hash()
	if v.verified.Contains(hash) {
		return nil
	}
	if !msg.VerifySignature() {
		return ErrInvalidSignature
	}
	v.verified.Add(hash, struct{}{})
	return nil
}
