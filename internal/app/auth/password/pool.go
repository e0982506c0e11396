package password

import (
	"context"
	"time"

	customErrors "github.com/vidhost/auth-service/internal/domain/auth/errors"
	"github.com/vidhost/auth-service/internal/domain/auth/model"
	"github.com/vidhost/auth-service/internal/infra/metrics"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many hash computations run at once. Requests beyond the
// limit wait for a slot; ctx only cancels the wait, never a running hash.
type Pool struct {
	hasher  *Hasher
	slots   *semaphore.Weighted
	metrics *metrics.Metrics
}

func NewPool(h *Hasher, workers int, m *metrics.Metrics) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		hasher:  h,
		slots:   semaphore.NewWeighted(int64(workers)),
		metrics: m,
	}
}

func (p *Pool) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := p.acquire(ctx); err != nil {
		return "", err
	}
	defer p.release()

	defer p.metrics.ObserveHash("hash", time.Now())
	return p.hasher.Hash(plaintext)
}

func (p *Pool) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	if err := p.acquire(ctx); err != nil {
		return false, err
	}
	defer p.release()

	defer p.metrics.ObserveHash("verify", time.Now())
	return p.hasher.Verify(plaintext, hash), nil
}

func (p *Pool) VerifyUnknown(ctx context.Context, plaintext string) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()

	defer p.metrics.ObserveHash("verify", time.Now())
	p.hasher.VerifyUnknown(plaintext)
	return nil
}

func (p *Pool) Apply(ctx context.Context, u *model.User, plaintext string, changed bool) error {
	if !changed {
		return nil
	}
	hash, err := p.Hash(ctx, plaintext)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (p *Pool) acquire(ctx context.Context) error {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return customErrors.WrapInternal(err, "wait for hashing slot")
	}
	p.metrics.HashStarted()
	return nil
}

func (p *Pool) release() {
	p.metrics.HashFinished()
	p.slots.Release(1)
}
