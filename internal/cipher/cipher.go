package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// keyLength selects AES-256.
	keyLength = 32

	// kdfIterations is the PBKDF2 work factor applied to the configured secret.
	kdfIterations = 100_000
)

// kdfSalt is fixed so that every process deriving from the same secret
// reaches the same key. The secret itself carries the entropy.
var kdfSalt = []byte("byteforge/field-cipher/v1")

var (
	// ErrEmptyKey is returned by New when no secret is configured.
	ErrEmptyKey = errors.New("cipher: encryption key must not be empty")

	// ErrMalformedCiphertext is returned when a stored value is not valid
	// base64 or is shorter than a nonce plus tag.
	ErrMalformedCiphertext = errors.New("cipher: malformed ciphertext")

	// ErrDecrypt is returned when authentication of a ciphertext fails,
	// typically because it was produced under a different key.
	ErrDecrypt = errors.New("cipher: decryption failed")
)

// Cipher performs symmetric authenticated encryption of individual text
// fields. It is safe for concurrent use.
type Cipher struct {
	aead stdcipher.AEAD
	rand io.Reader
}

// Option configures a Cipher.
type Option func(*Cipher)

// WithRandom replaces the nonce source. Tests use it for determinism.
func WithRandom(r io.Reader) Option {
	return func(c *Cipher) {
		c.rand = r
	}
}

// New derives an AES-256-GCM key from secret and returns a ready Cipher.
func New(secret string, opts ...Option) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}

	key := pbkdf2.Key([]byte(secret), kdfSalt, kdfIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create block cipher: %w", err)
	}

	aead, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	c := &Cipher{
		aead: aead,
		rand: rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Encrypt seals plaintext and returns nonce||ciphertext||tag encoded as
// URL-safe base64. Two encryptions of the same plaintext differ.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", ErrMalformedCiphertext
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}

	return string(plain), nil
}
