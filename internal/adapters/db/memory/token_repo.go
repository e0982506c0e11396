// Package memory keeps the token denylist inside the process. It is used when
// no Redis address is configured, which suits a single instance.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TokenRepo bounds memory with an LRU; every entry also carries its own
// deadline, checked on read, because the LRU TTL is shared by all keys.
type TokenRepo struct {
	refresh *expirable.LRU[string, entry]
	access  *expirable.LRU[string, entry]
	now     func() time.Time
}

type entry struct {
	revoked bool
	expires time.Time
}

func NewTokenRepo(size int, maxTTL time.Duration) *TokenRepo {
	return &TokenRepo{
		refresh: expirable.NewLRU[string, entry](size, nil, maxTTL),
		access:  expirable.NewLRU[string, entry](size, nil, maxTTL),
		now:     time.Now,
	}
}

func (r *TokenRepo) Store(_ context.Context, jti string, exp time.Time) error {
	if cur, ok := r.get(r.refresh, jti); ok && cur.revoked {
		return nil
	}
	r.refresh.Add(jti, entry{expires: exp})
	return nil
}

func (r *TokenRepo) Revoke(_ context.Context, jti string, exp time.Time) error {
	r.refresh.Add(jti, entry{revoked: true, expires: exp})
	return nil
}

func (r *TokenRepo) IsRevoked(_ context.Context, jti string) (bool, error) {
	e, ok := r.get(r.refresh, jti)
	return ok && e.revoked, nil
}

func (r *TokenRepo) RevokeAccess(_ context.Context, jti string, exp time.Time) error {
	r.access.Add(jti, entry{revoked: true, expires: exp})
	return nil
}

func (r *TokenRepo) IsAccessRevoked(_ context.Context, jti string) (bool, error) {
	e, ok := r.get(r.access, jti)
	return ok && e.revoked, nil
}

func (r *TokenRepo) get(c *expirable.LRU[string, entry], jti string) (entry, bool) {
	e, ok := c.Get(jti)
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && r.now().After(e.expires) {
		c.Remove(jti)
		return entry{}, false
	}
	return e, true
}
