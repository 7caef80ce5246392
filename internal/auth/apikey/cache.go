package apikey

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// VerdictCache remembers Validator verdicts keyed by the SHA-256 digest of
// the credential, so plaintext keys are never held in memory by the cache.
type VerdictCache struct {
	cache *ristretto.Cache[string, Verdict]
	ttl   time.Duration
}

// NewVerdictCache creates a cache holding up to maxEntries verdicts, each
// for at most ttl. A zero ttl keeps entries until they are evicted.
func NewVerdictCache(maxEntries int64, ttl time.Duration) (*VerdictCache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("verdict cache size must be positive, got %d", maxEntries)
	}
	if ttl < 0 {
		return nil, fmt.Errorf("verdict cache ttl must not be negative, got %s", ttl)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, Verdict]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// cost counts entries, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create verdict cache: %w", err)
	}

	return &VerdictCache{cache: cache, ttl: ttl}, nil
}

// Wait blocks until pending writes are visible to readers.
func (c *VerdictCache) Wait() {
	c.cache.Wait()
}

// Close releases the cache's background goroutines.
func (c *VerdictCache) Close() {
	c.cache.Close()
}

func (c *VerdictCache) get(credential string) (Verdict, bool) {
	return c.cache.Get(digest(credential))
}

func (c *VerdictCache) set(credential string, verdict Verdict) {
	c.cache.SetWithTTL(digest(credential), verdict, 1, c.ttl)
}

// WithCache serves repeated credentials from cache. Only successes and
// failures are stored; deferred verdicts and errors always reach v again.
// Every hit returns its own copy of the cached identity.
func WithCache(v Validator, cache *VerdictCache) Validator {
	if cache == nil {
		return v
	}

	return ValidatorFunc(func(ctx context.Context, req *ValidationRequest) (Verdict, error) {
		if verdict, ok := cache.get(req.Credential); ok {
			if verdict.Succeeded() {
				return Success(verdict.Identity().Clone()), nil
			}
			return verdict, nil
		}

		verdict, err := v.Validate(ctx, req)
		if err != nil || verdict.Deferred() {
			return verdict, err
		}

		if verdict.Succeeded() {
			cache.set(req.Credential, Success(verdict.Identity().Clone()))
		} else {
			cache.set(req.Credential, verdict)
		}
		return verdict, nil
	})
}

func digest(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
