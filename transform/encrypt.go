// Package transform implements the two collaborator transforms spec.md §6
// describes as "external, only their contracts matter": encryption and
// compression of content bytes before they are handed to the cartridge's
// CreateFile/WriteFile.
//
// Both satisfy the cartridge.Encryptor / cartridge.Compressor contracts
// directly; neither is part of the storage engine core, but the core's
// CreateFile/WriteFile accept plain bytes so callers wire these in at the
// edge.
package transform

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// nonceSize is the GCM standard 96-bit nonce (spec.md §6).
const nonceSize = 12

// tagSize is the GCM authentication tag length baked into the ciphertext
// layout (spec.md §6: "nonce ∥ ct ∥ tag (12 + ct + 16 bytes)").
const tagSize = 16

// AESGCMEncryptor implements cartridge.Encryptor with AES-256-GCM.
// Grounded on spec.md §6's literal ciphersuite; stdlib crypto/aes and
// crypto/cipher are the correct tools here, not a fallback, since no
// third-party library changes what cipher is being run.
type AESGCMEncryptor struct {
	gcm cipher.AEAD
}

// NewAESGCMEncryptor returns an Encryptor over a 32-byte (AES-256) key.
func NewAESGCMEncryptor(key []byte) (*AESGCMEncryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("transform: AES-256 requires a 32-byte key, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("transform: new cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("transform: new gcm: %w", err)
	}

	return &AESGCMEncryptor{gcm: gcm}, nil
}

// Encrypt returns nonce ∥ ciphertext ∥ tag for plaintext, with a fresh
// random nonce every call.
func (e *AESGCMEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("transform: read nonce: %w", err)
	}

	out := e.gcm.Seal(nonce, nonce, plaintext, nil)
	return out, nil
}

// Decrypt splits the nonce off the front of ciphertext, verifies the tag,
// and returns the plaintext. A tampered ciphertext or wrong key fails
// authentication and returns an error.
func (e *AESGCMEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize+tagSize {
		return nil, fmt.Errorf("transform: ciphertext too short: %d bytes", len(ciphertext))
	}

	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("transform: decrypt: authentication failed: %w", err)
	}
	return plaintext, nil
}
