package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

var (
	// ErrSealBroken is returned when a sealed value cannot be opened with the configured secret.
	ErrSealBroken = errors.New("session: sealed value cannot be opened")
	// ErrIncompatibleSealVersion is returned for values sealed by an unknown format.
	ErrIncompatibleSealVersion = errors.New("session: incompatible seal version")
)

// KeyParams configures the argon2id derivation of the sealing key.
type KeyParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
}

// DefaultKeyParams matches the interactive argon2id profile.
var DefaultKeyParams = KeyParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
}

const (
	sealVersion = 1
	keyLength   = 32
	nonceLength = 24
)

// Sealer encrypts values at rest with NaCl secretbox under a key derived from a secret.
//
// A sealed value is laid out as version | salt | nonce | box. Keys are cached
// per salt, so opening the same record twice derives once.
type Sealer struct {
	secret []byte
	params KeyParams

	mu   sync.Mutex
	keys map[string]*[keyLength]byte
}

// NewSealer returns a Sealer for secret using DefaultKeyParams.
func NewSealer(secret string) (*Sealer, error) {
	return NewSealerWithParams(secret, DefaultKeyParams)
}

// NewSealerWithParams returns a Sealer with explicit derivation parameters.
func NewSealerWithParams(secret string, params KeyParams) (*Sealer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("session: secret is required")
	}
	if params.SaltLength == 0 || params.Iterations == 0 || params.Memory == 0 || params.Parallelism == 0 {
		return nil, fmt.Errorf("session: invalid key parameters")
	}
	return &Sealer{
		secret: []byte(secret),
		params: params,
		keys:   make(map[string]*[keyLength]byte),
	}, nil
}

func (s *Sealer) key(salt []byte) *[keyLength]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.keys[string(salt)]; ok {
		return key
	}
	derived := argon2.IDKey(s.secret, salt, s.params.Iterations, s.params.Memory, s.params.Parallelism, keyLength)
	var key [keyLength]byte
	copy(key[:], derived)
	s.keys[string(salt)] = &key
	return &key
}

// Seal encrypts plaintext under a fresh salt and nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, s.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	header := make([]byte, 0, 1+len(salt)+nonceLength+len(plaintext)+secretbox.Overhead)
	header = append(header, sealVersion)
	header = append(header, salt...)
	header = append(header, nonce[:]...)
	return secretbox.Seal(header, plaintext, &nonce, s.key(salt)), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	saltLen := int(s.params.SaltLength)
	if len(sealed) < 1+saltLen+nonceLength+secretbox.Overhead {
		return nil, ErrSealBroken
	}
	if sealed[0] != sealVersion {
		return nil, ErrIncompatibleSealVersion
	}
	salt := sealed[1 : 1+saltLen]
	var nonce [nonceLength]byte
	copy(nonce[:], sealed[1+saltLen:1+saltLen+nonceLength])

	plaintext, ok := secretbox.Open(nil, sealed[1+saltLen+nonceLength:], &nonce, s.key(salt))
	if !ok {
		return nil, ErrSealBroken
	}
	return plaintext, nil
}
