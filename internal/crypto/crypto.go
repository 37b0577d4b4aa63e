// Package crypto provides the vault envelope codec.
// It implements PBKDF2-HMAC-SHA256 key derivation, AES-256-CBC with PKCS#7
// padding, and an HMAC-SHA256 tag over the envelope (encrypt-then-MAC).
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of the AES-256 key in bytes.
	KeySize = 32

	// MACKeySize is the size of the HMAC-SHA256 key in bytes.
	MACKeySize = 32

	// MACSize is the size of the HMAC-SHA256 tag in bytes.
	MACSize = sha256.Size

	// IVSize is the size of the CBC initialization vector in bytes.
	IVSize = aes.BlockSize

	// SaltSize is the size of the key derivation salt in bytes.
	SaltSize = 32

	// DefaultIterations is the PBKDF2 iteration count used for new envelopes.
	// It is kept moderate so unlocking stays responsive on slow devices; the
	// count is stored in every envelope and can be raised later.
	DefaultIterations = 120_000

	// MinIterations is the lowest iteration count accepted when reading an envelope.
	MinIterations = 1_000

	// MaxIterations bounds the work a crafted envelope can request.
	MaxIterations = 10_000_000
)

var (
	// ErrWrongPassphrase is returned when the envelope tag does not verify
	// under the supplied passphrase.
	ErrWrongPassphrase = errors.New("wrong passphrase")

	// ErrCorruptEnvelope is returned when an envelope is structurally invalid.
	ErrCorruptEnvelope = errors.New("corrupt envelope")

	// ErrEmptyPassphrase is returned when an empty passphrase is supplied.
	ErrEmptyPassphrase = errors.New("passphrase cannot be empty")

	// ErrInvalidIterations is returned when a codec is configured with an
	// iteration count outside the accepted range.
	ErrInvalidIterations = errors.New("invalid kdf iteration count")
)

// Codec encrypts and decrypts vault payloads into envelopes.
type Codec struct {
	iterations int
}

// NewCodec returns a codec that derives keys for new envelopes with the
// given PBKDF2 iteration count. Zero selects DefaultIterations.
func NewCodec(iterations int) (*Codec, error) {
	if iterations == 0 {
		iterations = DefaultIterations
	}
	if iterations < MinIterations || iterations > MaxIterations {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIterations, iterations)
	}
	return &Codec{iterations: iterations}, nil
}

// Iterations returns the iteration count used for new envelopes.
func (c *Codec) Iterations() int {
	return c.iterations
}

// DeriveKey derives the AES key and the HMAC key from a passphrase and salt.
// The same inputs always produce the same keys.
func DeriveKey(passphrase, salt []byte, iterations int) (encKey, macKey []byte) {
	material := pbkdf2.Key(passphrase, salt, iterations, KeySize+MACKeySize, sha256.New)
	return material[:KeySize], material[KeySize:]
}

// Encrypt seals plaintext under passphrase. A fresh salt and IV are drawn
// for every call, so two envelopes of the same plaintext never match.
func (c *Codec) Encrypt(plaintext, passphrase []byte) (*Envelope, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	encKey, macKey := DeriveKey(passphrase, salt, c.iterations)
	defer ZeroBytes(encKey)
	defer ZeroBytes(macKey)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	ZeroBytes(padded)

	env := &Envelope{
		Version:    EnvelopeVersion,
		KDF:        KDFPBKDF2SHA256,
		Iterations: uint32(c.iterations),
		Salt:       salt,
		IV:         iv,
		Ciphertext: ciphertext,
	}
	env.MAC = computeMAC(macKey, env)
	return env, nil
}

// Decrypt opens an envelope with passphrase. The key is derived with the
// parameters recorded in the envelope, not the codec's own.
func (c *Codec) Decrypt(env *Envelope, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	if err := env.validate(); err != nil {
		return nil, err
	}

	encKey, macKey := DeriveKey(passphrase, env.Salt, int(env.Iterations))
	defer ZeroBytes(encKey)
	defer ZeroBytes(macKey)

	if !hmac.Equal(computeMAC(macKey, env), env.MAC) {
		return nil, ErrWrongPassphrase
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(env.Ciphertext))
	cipher.NewCBCDecrypter(block, env.IV).CryptBlocks(plaintext, env.Ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		// The tag verified, so the payload was produced by a broken writer.
		ZeroBytes(plaintext)
		return nil, ErrCorruptEnvelope
	}
	return unpadded, nil
}

func computeMAC(macKey []byte, env *Envelope) []byte {
	mac := hmac.New(sha256.New, macKey)
	mac.Write(env.header())
	mac.Write(env.Ciphertext)
	return mac.Sum(nil)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}

// GenerateSalt generates a cryptographically secure random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// ZeroBytes securely zeros a byte slice.
// Use this to clear sensitive data from memory when done.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
