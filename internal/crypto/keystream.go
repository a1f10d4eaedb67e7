package crypto

import (
	"crypto/sha256"
	"encoding/binary"
)

// Keystream XORs data with SHA-256(key ∥ counter) blocks, counter starting
// at 0 and encoded as 4 little-endian bytes.
//
// WARNING: there is no authentication tag. Decrypting with the wrong key
// silently yields different bytes of the same length; callers must validate
// the output themselves. Backs the opt-in password_only scheme and files
// written before AEAD containers existed.
type Keystream struct{}

// Encrypt XORs plaintext with the keystream derived from key.
func (Keystream) Encrypt(key, plaintext []byte) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return xorKeystream(key, plaintext), nil
}

// Decrypt is the same operation as Encrypt.
func (Keystream) Decrypt(key, ciphertext []byte) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return xorKeystream(key, ciphertext), nil
}

// Algorithm returns AlgKeystream.
func (Keystream) Algorithm() Algorithm { return AlgKeystream }

// Authenticated returns false.
func (Keystream) Authenticated() bool { return false }

func xorKeystream(key, data []byte) []byte {
	out := make([]byte, len(data))
	var counter uint32
	var ctr [4]byte
	block := make([]byte, 0, len(key)+len(ctr))

	for off := 0; off < len(data); off += sha256.Size {
		binary.LittleEndian.PutUint32(ctr[:], counter)
		block = append(append(block[:0], key...), ctr[:]...)
		sum := sha256.Sum256(block)

		end := min(off+sha256.Size, len(data))
		for i := off; i < end; i++ {
			out[i] = data[i] ^ sum[i-off]
		}
		counter++
	}
	ZeroBytes(block)
	return out
}
