// Package keyexchange derives a per-channel AES-256-GCM key from an
// ephemeral ECDH P-256 exchange. Keys and ciphertexts use the same encodings
// as WebCrypto (SPKI public keys, IV-prefixed GCM output) so browser peers
// interoperate.
package keyexchange

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

// IVSize is the GCM nonce length used by WebCrypto.
const IVSize = 12

var (
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrCiphertextShort  = errors.New("ciphertext too short")
	ErrDecrypt          = errors.New("decryption failed")
)

// KeyPair is an ephemeral ECDH P-256 key pair.
type KeyPair struct {
	private *ecdh.PrivateKey
}

// Generate creates a fresh key pair.
func Generate() (*KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	return &KeyPair{private: priv}, nil
}

// PublicKeyBase64 returns the public key as base64 SPKI DER.
func (k *KeyPair) PublicKeyBase64() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(k.private.PublicKey())
	if err != nil {
		return "", fmt.Errorf("export public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ParsePublicKey decodes a base64 SPKI P-256 public key.
func ParsePublicKey(encoded string) (*ecdh.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	switch pub := parsed.(type) {
	case *ecdh.PublicKey:
		if pub.Curve() != ecdh.P256() {
			return nil, fmt.Errorf("%w: not a P-256 key", ErrInvalidPublicKey)
		}
		return pub, nil
	case *ecdsa.PublicKey:
		key, err := pub.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		if key.Curve() != ecdh.P256() {
			return nil, fmt.Errorf("%w: not a P-256 key", ErrInvalidPublicKey)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: unexpected key type %T", ErrInvalidPublicKey, parsed)
	}
}

// Derive computes the shared session key with a peer's base64 public key.
// The raw 32-byte ECDH secret is the AES-256 key, matching
// WebCrypto deriveKey(ECDH -> AES-GCM 256).
func (k *KeyPair) Derive(peerPublicKey string) (*SessionKey, error) {
	pub, err := ParsePublicKey(peerPublicKey)
	if err != nil {
		return nil, err
	}

	secret, err := k.private.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}

	return NewSessionKey(secret)
}

// SessionKey encrypts and decrypts with AES-256-GCM.
type SessionKey struct {
	aead cipher.AEAD
}

// NewSessionKey builds a session key from raw key bytes.
func NewSessionKey(key []byte) (*SessionKey, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &SessionKey{aead: aead}, nil
}

// Encrypt returns base64(IV || ciphertext || tag).
func (s *SessionKey) Encrypt(plaintext []byte) (string, error) {
	sealed, err := s.EncryptBinary(plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (s *SessionKey) Decrypt(encoded string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return s.DecryptBinary(sealed)
}

// EncryptBinary returns IV || ciphertext || tag without text encoding.
func (s *SessionKey) EncryptBinary(plaintext []byte) ([]byte, error) {
	iv := make([]byte, IVSize, IVSize+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("iv: %w", err)
	}
	return s.aead.Seal(iv, iv, plaintext, nil), nil
}

// DecryptBinary reverses EncryptBinary.
func (s *SessionKey) DecryptBinary(sealed []byte) ([]byte, error) {
	if len(sealed) < IVSize+s.aead.Overhead() {
		return nil, ErrCiphertextShort
	}
	plaintext, err := s.aead.Open(nil, sealed[:IVSize], sealed[IVSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}
