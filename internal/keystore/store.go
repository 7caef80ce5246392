// Package keystore validates API keys against a static set loaded from a
// YAML file. Keys are held only as SHA-256 digests.
package keystore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"apikeyauth/internal/auth"
	"apikeyauth/internal/auth/apikey"

	"gopkg.in/yaml.v3"
)

// ErrInvalidKey is the failure reason for a key that is not in the store.
var ErrInvalidKey = errors.New("invalid api key")

// KeyEntry is one key as written in the key file. Exactly one of Key and
// KeySHA256 must be set.
type KeyEntry struct {
	Key       string              `yaml:"key"`
	KeySHA256 string              `yaml:"key_sha256"`
	Name      string              `yaml:"name"`
	Claims    map[string][]string `yaml:"claims"`
}

type file struct {
	Keys []KeyEntry `yaml:"keys"`
}

type entry struct {
	hash     [sha256.Size]byte
	identity auth.Identity
}

// Store is an apikey.Validator over a fixed set of keys.
type Store struct {
	entries []entry
}

var _ apikey.Validator = (*Store)(nil)

// Load reads a key file from path.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	defer f.Close()

	store, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return store, nil
}

// Parse decodes a key file. Unknown fields are rejected.
func Parse(r io.Reader) (*Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode key file: %w", err)
	}

	return New(doc.Keys)
}

// New builds a store from entries. Plaintext keys are hashed immediately.
func New(keys []KeyEntry) (*Store, error) {
	s := &Store{entries: make([]entry, 0, len(keys))}
	seen := make(map[[sha256.Size]byte]string, len(keys))

	for i, k := range keys {
		if k.Name == "" {
			return nil, fmt.Errorf("key %d: name is required", i)
		}

		hash, err := k.digest()
		if err != nil {
			return nil, fmt.Errorf("key %d (%s): %w", i, k.Name, err)
		}
		if other, dup := seen[hash]; dup {
			return nil, fmt.Errorf("key %d (%s): same key as %s", i, k.Name, other)
		}
		seen[hash] = k.Name

		s.entries = append(s.entries, entry{
			hash: hash,
			identity: auth.Identity{
				Subject: k.Name,
				Claims:  k.Claims,
			},
		})
	}

	return s, nil
}

// Len returns the number of keys in the store.
func (s *Store) Len() int {
	return len(s.entries)
}

// Validate looks the credential up by digest. Every entry is compared so
// the time taken does not depend on which entry matches.
func (s *Store) Validate(_ context.Context, req *apikey.ValidationRequest) (apikey.Verdict, error) {
	hash := sha256.Sum256([]byte(req.Credential))

	match := -1
	for i := range s.entries {
		if subtle.ConstantTimeCompare(hash[:], s.entries[i].hash[:]) == 1 {
			match = i
		}
	}
	if match < 0 {
		return apikey.Fail(ErrInvalidKey), nil
	}

	// copy so callers cannot mutate the stored identity
	id := s.entries[match].identity.Clone()
	id.Provider = req.Scheme
	return apikey.Success(id), nil
}

func (k KeyEntry) digest() ([sha256.Size]byte, error) {
	var hash [sha256.Size]byte

	switch {
	case k.Key != "" && k.KeySHA256 != "":
		return hash, errors.New("key and key_sha256 are mutually exclusive")
	case k.Key != "":
		return sha256.Sum256([]byte(k.Key)), nil
	case k.KeySHA256 != "":
		raw, err := hex.DecodeString(strings.TrimSpace(k.KeySHA256))
		if err != nil {
			return hash, fmt.Errorf("key_sha256 is not hex: %w", err)
		}
		if len(raw) != sha256.Size {
			return hash, fmt.Errorf("key_sha256 must be %d bytes, got %d", sha256.Size, len(raw))
		}
		copy(hash[:], raw)
		return hash, nil
	default:
		return hash, errors.New("one of key or key_sha256 is required")
	}
}
