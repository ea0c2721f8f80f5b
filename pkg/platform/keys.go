package platform

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// MaxKeySlots is the number of signing key slots a caller can select from.
const MaxKeySlots = 8

// KeyStore holds the provisioned attestation signing keys.
type KeyStore interface {
	SigningKey(slot uint8) (crypto.Signer, error)
}

// Keys is a KeyStore backed by keys held in memory, indexed by slot.
type Keys map[uint8]crypto.Signer

// SigningKey implements KeyStore.
func (k Keys) SigningKey(slot uint8) (crypto.Signer, error) {
	if slot >= MaxKeySlots {
		return nil, fmt.Errorf("%w: slot %d out of range", ErrKeyNotFound, slot)
	}
	key, ok := k[slot]
	if !ok || key == nil {
		return nil, fmt.Errorf("%w: slot %d", ErrKeyNotFound, slot)
	}
	return key, nil
}

// LoadKeys reads one PEM encoded private key per slot.
func LoadKeys(paths map[uint8]string) (Keys, error) {
	keys := make(Keys, len(paths))
	for slot, path := range paths {
		if slot >= MaxKeySlots {
			return nil, fmt.Errorf("%w: slot %d out of range", ErrKeyNotFound, slot)
		}
		key, err := LoadKeyFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load key for slot %d: %w", slot, err)
		}
		keys[slot] = key
	}
	return keys, nil
}

// LoadKeyFile reads a PEM encoded private key from path.
func LoadKeyFile(path string) (crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return ParsePrivateKeyPEM(data)
}

// ParsePrivateKeyPEM parses a PKCS#8 or SEC 1 private key.
func ParsePrivateKeyPEM(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	var key any
	var err error
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("%w: PEM block %q", ErrUnsupportedKey, block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		return k, nil
	case ed25519.PrivateKey:
		return k, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
}

// RawPublicKey exports the unencoded public key: the uncompressed point of an
// ECDSA key or the 32 bytes of an Ed25519 key.
func RawPublicKey(pub crypto.PublicKey) ([]byte, error) {
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		ecdhKey, err := k.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedKey, err)
		}
		return ecdhKey.Bytes(), nil
	case ed25519.PublicKey:
		return []byte(k), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
}
