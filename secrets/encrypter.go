package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// SecretSource provides the raw secret material the Encrypter derives its
// AEAD key from. The gateway uses the cookie_key persisted in the
// configuration file; tests may provide their own source.
type SecretSource interface {
	GetSecret() ([]byte, error)
}

type staticSecretSource struct {
	secret []byte
}

func (s *staticSecretSource) GetSecret() ([]byte, error) {
	if len(s.secret) == 0 {
		return nil, fmt.Errorf("secret is empty")
	}
	return s.secret, nil
}

// StaticSource returns a SecretSource serving a fixed secret.
func StaticSource(secret []byte) SecretSource {
	return &staticSecretSource{secret: secret}
}

// Encrypter provides authenticated encryption of cookie payloads with an
// AES-GCM cipher derived from the secret source. It is safe for concurrent
// use.
type Encrypter struct {
	mu           sync.RWMutex
	aead         cipher.AEAD
	secretSource SecretSource
}

// New creates an Encrypter over the given secret source and derives the
// cipher immediately. Processes sharing the same secret derive the same
// cipher and can decrypt each other's output.
func New(s SecretSource) (*Encrypter, error) {
	e := &Encrypter{secretSource: s}
	if err := e.refreshCipher(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Encrypter) refreshCipher() error {
	secret, err := e.secretSource.GetSecret()
	if err != nil {
		return fmt.Errorf("failed to read secret from secret source: %w", err)
	}
	key, err := scrypt.Key(secret, []byte{}, 1<<15, 8, 1, 32)
	if err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create new GCM: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aead = aead
	return nil
}

func (e *Encrypter) createNonce() ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(crand.Reader, nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}

// Encrypt seals the plaintext, prepending the nonce to the ciphertext. The
// additional data is authenticated but not encrypted; decryption with
// different additional data fails. Cookie payloads pass the cookie name here
// so a value issued under one name cannot be replayed under another.
func (e *Encrypter) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.aead == nil {
		return nil, fmt.Errorf("no cipher which can be used")
	}
	nonce, err := e.createNonce()
	if err != nil {
		return nil, err
	}
	return e.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Decrypt opens ciphertext produced by Encrypt with the same additional
// data.
func (e *Encrypter) Decrypt(cipherText, additionalData []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.aead == nil {
		return nil, fmt.Errorf("no cipher which can be used")
	}
	nonceSize := e.aead.NonceSize()
	if len(cipherText) < nonceSize {
		return nil, fmt.Errorf("failed to decrypt, ciphertext too short %d", len(cipherText))
	}
	nonce, input := cipherText[:nonceSize], cipherText[nonceSize:]
	data, err := e.aead.Open(nil, nonce, input, additionalData)
	if err != nil {
		return nil, fmt.Errorf("cipher cannot decrypt the data: %w", err)
	}
	return data, nil
}

// EncryptToString seals the plaintext and hex encodes it so the result can
// travel as a cookie or query parameter value.
func (e *Encrypter) EncryptToString(plaintext, additionalData []byte) (string, error) {
	b, err := e.Encrypt(plaintext, additionalData)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// DecryptString reverses EncryptToString.
func (e *Encrypter) DecryptString(value string, additionalData []byte) ([]byte, error) {
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return e.Decrypt(b, additionalData)
}
