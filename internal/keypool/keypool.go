package keypool

import (
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Usage tracks how often a credential has been handed out and how often
// calls made with it failed.
type Usage struct {
	Calls  int `json:"calls"`
	Errors int `json:"errors"`
}

// Pool hands out API credentials round-robin. Credentials are never
// ejected; a key that hits its quota simply rotates to the back and is
// tried again on a later pass.
type Pool struct {
	mu    sync.Mutex
	keys  []string
	head  int
	stats map[string]*Usage
}

// New builds a pool from the given keys. At least one key is required;
// an empty pool is a configuration error and fails immediately.
func New(keys []string) (*Pool, error) {
	if len(keys) == 0 {
		return nil, eris.New("keypool: no API credentials configured")
	}

	stats := make(map[string]*Usage, len(keys))
	for _, k := range keys {
		stats[k] = &Usage{}
	}

	zap.L().Info("keypool: loaded credentials", zap.Int("count", len(keys)))
	return &Pool{keys: keys, stats: stats}, nil
}

// Next returns the credential at the head of the rotation and advances
// the cursor. Safe for concurrent use by parallel batch workers.
func (p *Pool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := p.keys[p.head]
	p.head = (p.head + 1) % len(p.keys)
	p.stats[key].Calls++
	return key
}

// MarkError increments the error counter for a key. Unknown keys are
// ignored.
func (p *Pool) MarkError(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if u, ok := p.stats[key]; ok {
		u.Errors++
	}
}

// Stats returns a snapshot of per-credential usage counters.
func (p *Pool) Stats() map[string]Usage {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]Usage, len(p.stats))
	for k, u := range p.stats {
		out[k] = *u
	}
	return out
}

// MaskedStats returns usage counters keyed by redacted credentials, for
// surfaces that must not leak key material.
func (p *Pool) MaskedStats() map[string]Usage {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]Usage, len(p.stats))
	for k, u := range p.stats {
		out[Mask(k)] = *u
	}
	return out
}

// Mask redacts a credential down to its first and last four characters.
func Mask(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	return len(p.keys)
}
