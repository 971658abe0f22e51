// ABOUTME: AES-CBC primitive used to verify handshake challenge responses
// ABOUTME: Deterministic encryption plus random IV and constant-time comparison helpers

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidKeyMaterial is returned when a key, IV, or plaintext does not
// meet the cipher's size requirements.
var ErrInvalidKeyMaterial = errors.New("invalid key material")

// challengeTextLength is the length of the challenge text in hex characters.
// The decoded form is half this many random bytes; the hex form is what gets
// encrypted, so it must stay a multiple of the AES block size.
const challengeTextLength = 64

// Encrypt encrypts plaintext with AES in CBC mode using the given key and IV.
// No padding is applied: plaintext length must be a non-zero multiple of the
// AES block size. The output is deterministic for identical inputs, which is
// what challenge verification relies on.
func Encrypt(plaintext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrInvalidKeyMaterial, aes.BlockSize, len(iv))
	}
	if len(plaintext) == 0 || len(plaintext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: plaintext must be a non-empty multiple of %d bytes, got %d", ErrInvalidKeyMaterial, aes.BlockSize, len(plaintext))
	}

	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out, nil
}

// MakeIV returns a fresh random IV. The legacy service used a constant IV
// string for every challenge; generating a random IV per challenge closes the
// known-plaintext leak that comes with CBC IV reuse. Clients must read the IV
// from the challenge's cipher_iv field instead of hardcoding it.
func MakeIV() ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generating iv: %w", err)
	}
	return iv, nil
}

// NewChallengeText returns a random hex string of challengeTextLength
// characters. The hex encoding keeps the text printable and block-aligned.
func NewChallengeText() (string, error) {
	raw := make([]byte, challengeTextLength/2)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating challenge text: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// EqualCiphertext compares two ciphertexts in constant time.
func EqualCiphertext(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
