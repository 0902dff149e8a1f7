// Package auth implements the shared-secret API keys that protect the
// mutating endpoints.
//
// Keys are self-describing: "obs_" followed by the URL-safe unpadded
// base64 of {timestamp_be_u64 || 16 random bytes || HMAC-SHA256 of the
// preceding 24 bytes under the server secret}. Validation checks the HMAC
// only; the server keeps no key list.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"
)

// KeyPrefix identifies observation-tools API keys.
const KeyPrefix = "obs_"

const (
	timestampLen = 8
	nonceLen     = 16
	signatureLen = sha256.Size
)

// ErrInvalidKey is returned for keys that are malformed or not signed by
// this server's secret.
var ErrInvalidKey = errors.New("invalid API key")

// GenerateKey mints a new API key under the given secret.
func GenerateKey(secret string) (string, error) {
	payload := make([]byte, timestampLen+nonceLen)
	binary.BigEndian.PutUint64(payload[:timestampLen], uint64(time.Now().Unix()))
	if _, err := rand.Read(payload[timestampLen:]); err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	payload = mac.Sum(payload)

	return KeyPrefix + base64.RawURLEncoding.EncodeToString(payload), nil
}

// ValidateKey checks that key was generated under secret.
func ValidateKey(key, secret string) error {
	if len(key) < len(KeyPrefix) || key[:len(KeyPrefix)] != KeyPrefix {
		return ErrInvalidKey
	}

	payload, err := base64.RawURLEncoding.DecodeString(key[len(KeyPrefix):])
	if err != nil {
		return ErrInvalidKey
	}
	if len(payload) < timestampLen+nonceLen+signatureLen {
		return ErrInvalidKey
	}

	data := payload[:timestampLen+nonceLen]
	signature := payload[timestampLen+nonceLen:]

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	if !hmac.Equal(signature, mac.Sum(nil)) {
		return ErrInvalidKey
	}
	return nil
}

// IssuedAt extracts the embedded creation timestamp of a key. It does not
// validate the signature.
func IssuedAt(key string) (time.Time, error) {
	if len(key) < len(KeyPrefix) || key[:len(KeyPrefix)] != KeyPrefix {
		return time.Time{}, ErrInvalidKey
	}
	payload, err := base64.RawURLEncoding.DecodeString(key[len(KeyPrefix):])
	if err != nil || len(payload) < timestampLen {
		return time.Time{}, ErrInvalidKey
	}
	ts := binary.BigEndian.Uint64(payload[:timestampLen])
	return time.Unix(int64(ts), 0).UTC(), nil
}
