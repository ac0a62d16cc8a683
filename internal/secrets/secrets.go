package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
)

const (
	KeyEnv     = "EZ_SECRETS_KEY"
	PrevKeyEnv = "EZ_SECRETS_PREV_KEY"

	encAESGCMv1 = "aes-gcm-v1"
)

var (
	ErrNoKey     = errors.New("secrets: no encryption key configured")
	ErrUndecoded = errors.New("secrets: value could not be opened with any configured key")
)

type sealedValue struct {
	Enc   string `json:"enc"`
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

// Box seals broker credentials. The first key seals; every key is tried when opening
// so the previous key keeps working during rotation.
type Box struct {
	gcms []cipher.AEAD
}

// FromEnv builds a Box from EZ_SECRETS_KEY and EZ_SECRETS_PREV_KEY.
func FromEnv() *Box {
	return New(os.Getenv(KeyEnv), os.Getenv(PrevKeyEnv))
}

func New(keys ...string) *Box {
	b := &Box{}
	seen := map[string]struct{}{}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keyBytes := parseKey(key)
		if len(keyBytes) == 0 {
			continue
		}
		if gcm := newGCM(keyBytes); gcm != nil {
			b.gcms = append(b.gcms, gcm)
		}
	}
	return b
}

func (b *Box) Enabled() bool {
	return b != nil && len(b.gcms) > 0
}

// Seal encrypts plain with the primary key. The scope (for example the broker account ref)
// is bound as additional data so a sealed value cannot be moved to another row.
func (b *Box) Seal(scope, plain string) (string, error) {
	if !b.Enabled() {
		return "", ErrNoKey
	}
	gcm := b.gcms[0]
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := gcm.Seal(nil, nonce, []byte(plain), additionalData(scope))
	out, err := json.Marshal(sealedValue{
		Enc:   encAESGCMv1,
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Data:  base64.StdEncoding.EncodeToString(ct),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Open reverses Seal. Values that are not sealed envelopes are returned as-is, which lets
// plaintext rows written before a key was configured keep working.
func (b *Box) Open(scope, stored string) (string, error) {
	if strings.TrimSpace(stored) == "" {
		return "", nil
	}
	var payload sealedValue
	if err := json.Unmarshal([]byte(stored), &payload); err != nil {
		return stored, nil
	}
	if payload.Enc != encAESGCMv1 || payload.Nonce == "" || payload.Data == "" {
		return stored, nil
	}
	if !b.Enabled() {
		return "", ErrNoKey
	}
	nonce, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return "", ErrUndecoded
	}
	ct, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return "", ErrUndecoded
	}
	for _, gcm := range b.gcms {
		pt, err := gcm.Open(nil, nonce, ct, additionalData(scope))
		if err == nil {
			return string(pt), nil
		}
	}
	return "", ErrUndecoded
}

// Reseal re-encrypts a stored value with the primary key. The bool reports whether it changed.
func (b *Box) Reseal(scope, stored string) (string, bool, error) {
	plain, err := b.Open(scope, stored)
	if err != nil {
		return stored, false, err
	}
	if plain == "" {
		return stored, false, nil
	}
	sealed, err := b.Seal(scope, plain)
	if err != nil {
		return stored, false, err
	}
	return sealed, sealed != stored, nil
}

func additionalData(scope string) []byte {
	return []byte(strings.TrimSpace(strings.ToLower(scope)))
}

func parseKey(k string) []byte {
	if strings.TrimSpace(k) == "" {
		return nil
	}
	// base64 first, raw bytes otherwise.
	keyBytes, err := base64.StdEncoding.DecodeString(k)
	if err != nil {
		keyBytes = []byte(k)
	}
	switch len(keyBytes) {
	case 16, 24, 32:
	default:
		if len(keyBytes) < 16 {
			return nil
		}
		if len(keyBytes) < 24 {
			keyBytes = keyBytes[:16]
		} else if len(keyBytes) < 32 {
			keyBytes = keyBytes[:24]
		} else {
			keyBytes = keyBytes[:32]
		}
	}
	return keyBytes
}

func newGCM(keyBytes []byte) cipher.AEAD {
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil
	}
	return gcm
}
