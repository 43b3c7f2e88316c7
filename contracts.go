package cartridge

// Compressor is the compression transform contract (spec.md §6): the core
// makes no assumption about ratio beyond "beneficial if compressed < 0.9 *
// input", which callers should check themselves before preferring the
// compressed form.
type Compressor interface {
	Compress(data []byte, method string) ([]byte, error)
	Decompress(data []byte, method string) ([]byte, error)
}

// Encryptor is the encryption transform contract (spec.md §6): AES-256-GCM
// with a random 96-bit nonce per encrypted unit, ciphertext laid out as
// nonce ∥ ct ∥ tag.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}
