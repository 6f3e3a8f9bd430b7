// Package util implements the canonical little-endian binary encoding used to
// sign and hash feed messages.
//
// Put functions append to a byte slice. Parse functions read at a position and
// return the new position. A returned position beyond len(data) signals a
// truncated or malformed input.
package util

import (
	"github.com/freehandle/ripple/crypto"
)

func PutToken(token crypto.Token, data *[]byte) {
	*data = append(*data, token[:]...)
}

func PutHash(hash crypto.Hash, data *[]byte) {
	*data = append(*data, hash[:]...)
}

func PutSignature(sign crypto.Signature, data *[]byte) {
	*data = append(*data, sign[:]...)
}

// PutByteArray puts a byte array up to 2^16-1 bytes into a byte array
func PutByteArray(b []byte, data *[]byte) {
	if len(b) > 1<<16-1 {
		b = b[0 : 1<<16-1]
	}
	v := len(b)
	*data = append(*data, byte(v), byte(v>>8))
	*data = append(*data, b...)
}

// PutLongByteArray puts a byte array up to 2^32-1 bytes into a byte array
func PutLongByteArray(b []byte, data *[]byte) {
	if len(b) > 1<<32-1 {
		b = b[0 : 1<<32-1]
	}
	v := len(b)
	*data = append(*data, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	*data = append(*data, b...)
}

func PutString(value string, data *[]byte) {
	PutByteArray([]byte(value), data)
}

func PutUint16(v uint16, data *[]byte) {
	*data = append(*data, byte(v), byte(v>>8))
}

func PutUint32(v uint32, data *[]byte) {
	*data = append(*data, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func PutUint64(v uint64, data *[]byte) {
	*data = append(*data, byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

func PutBool(b bool, data *[]byte) {
	if b {
		*data = append(*data, 1)
	} else {
		*data = append(*data, 0)
	}
}

func PutByte(b byte, data *[]byte) {
	*data = append(*data, b)
}

func ParseToken(data []byte, position int) (crypto.Token, int) {
	var token crypto.Token
	if position+crypto.TokenSize > len(data) {
		return token, len(data) + 1
	}
	copy(token[:], data[position:position+crypto.TokenSize])
	return token, position + crypto.TokenSize
}

func ParseHash(data []byte, position int) (crypto.Hash, int) {
	var hash crypto.Hash
	if position+crypto.Size > len(data) {
		return hash, len(data) + 1
	}
	copy(hash[:], data[position:position+crypto.Size])
	return hash, position + crypto.Size
}

func ParseSignature(data []byte, position int) (crypto.Signature, int) {
	var sign crypto.Signature
	if position+crypto.SignatureSize > len(data) {
		return sign, len(data) + 1
	}
	copy(sign[:], data[position:position+crypto.SignatureSize])
	return sign, position + crypto.SignatureSize
}

func ParseByteArray(data []byte, position int) ([]byte, int) {
	if position+1 >= len(data) {
		return []byte{}, len(data) + 1
	}
	length := int(data[position+0]) | int(data[position+1])<<8
	if position+length+2 > len(data) {
		return []byte{}, len(data) + 1
	}
	return data[position+2 : position+length+2], position + length + 2
}

func ParseLongByteArray(data []byte, position int) ([]byte, int) {
	if position+3 >= len(data) {
		return []byte{}, len(data) + 1
	}
	length := int(data[position+0]) | int(data[position+1])<<8 | int(data[position+2])<<16 | int(data[position+3])<<24
	if position+length+4 > len(data) {
		return []byte{}, len(data) + 1
	}
	return data[position+4 : position+length+4], position + length + 4
}

func ParseString(data []byte, position int) (string, int) {
	bytes, newPosition := ParseByteArray(data, position)
	return string(bytes), newPosition
}

func ParseUint16(data []byte, position int) (uint16, int) {
	if position+1 >= len(data) {
		return 0, len(data) + 1
	}
	value := uint16(data[position+0]) |
		uint16(data[position+1])<<8
	return value, position + 2
}

func ParseUint32(data []byte, position int) (uint32, int) {
	if position+3 >= len(data) {
		return 0, len(data) + 1
	}
	value := uint32(data[position+0]) |
		uint32(data[position+1])<<8 |
		uint32(data[position+2])<<16 |
		uint32(data[position+3])<<24
	return value, position + 4
}

func ParseUint64(data []byte, position int) (uint64, int) {
	if position+7 >= len(data) {
		return 0, len(data) + 1
	}
	value := uint64(data[position+0]) |
		uint64(data[position+1])<<8 |
		uint64(data[position+2])<<16 |
		uint64(data[position+3])<<24 |
		uint64(data[position+4])<<32 |
		uint64(data[position+5])<<40 |
		uint64(data[position+6])<<48 |
		uint64(data[position+7])<<56
	return value, position + 8
}

func ParseBool(data []byte, position int) (bool, int) {
	if position >= len(data) {
		return false, len(data) + 1
	}
	return data[position] != 0, position + 1
}

func ParseByte(data []byte, position int) (byte, int) {
	if position >= len(data) {
		return 0, len(data) + 1
	}
	return data[position], position + 1
}
