package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

var (
	ErrKeyNotFound   = errors.New("key not found")
	ErrKeyRequired   = errors.New("signing key path is required in production")
	ErrNotRSAKey     = errors.New("key is not an RSA private key")
	ErrPEMDecodeFail = errors.New("failed to decode PEM block")
)

const ephemeralKeyBits = 2048

// KeyProvider supplies the process-wide signing key pair. It is loaded once
// at startup.
type KeyProvider interface {
	SigningKey() (kid string, key *rsa.PrivateKey)
	VerificationKey(kid string) (*rsa.PublicKey, error)
}

// StaticKeyProvider holds a single RSA key pair under one key id.
type StaticKeyProvider struct {
	kid string
	key *rsa.PrivateKey
}

func NewStaticKeyProvider(kid string, key *rsa.PrivateKey) *StaticKeyProvider {
	return &StaticKeyProvider{kid: kid, key: key}
}

func (p *StaticKeyProvider) SigningKey() (string, *rsa.PrivateKey) {
	return p.kid, p.key
}

func (p *StaticKeyProvider) VerificationKey(kid string) (*rsa.PublicKey, error) {
	if kid != p.kid {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return &p.key.PublicKey, nil
}

// LoadPEMKey reads an RSA private key in PKCS#1 or PKCS#8 form.
func LoadPEMKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file %s: %w", path, err)
	}
	defer common.WipeByteArray(data)
	return ParsePEMKey(data)
}

func ParsePEMKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrPEMDecodeFail
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return rsaKey, nil
}

// NewKeyProvider loads the key at path. With an empty path a throwaway key is
// generated, which is only allowed outside production: tokens signed with it
// do not survive a restart.
func NewKeyProvider(env, path, kid string) (KeyProvider, error) {
	if path != "" {
		key, err := LoadPEMKey(path)
		if err != nil {
			return nil, err
		}
		return NewStaticKeyProvider(kid, key), nil
	}

	if env == "production" {
		return nil, ErrKeyRequired
	}

	key, err := rsa.GenerateKey(rand.Reader, ephemeralKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if kid == "" {
		suffix, err := common.MakeRandHexString(4)
		if err != nil {
			return nil, fmt.Errorf("generate key id: %w", err)
		}
		kid = "ephemeral-" + suffix
	}
	return NewStaticKeyProvider(kid, key), nil
}
