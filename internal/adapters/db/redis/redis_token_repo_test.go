package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
)

func newRepo(t *testing.T) (*RedisTokenRepo, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redisv9.NewClient(&redisv9.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTokenRepo(client), mr
}

func TestRedisTokenRepo_StoreAndIsRevoked(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	exp := time.Now().Add(10 * time.Minute)
	if err := repo.Store(ctx, "jti1", exp); err != nil {
		t.Fatalf("Store: %v", err)
	}

	revoked, err := repo.IsRevoked(ctx, "jti1")
	if err != nil {
		t.Fatalf("IsRevoked err: %v", err)
	}
	if revoked {
		t.Fatal("token should NOT be revoked right after Store")
	}
}

func TestRedisTokenRepo_RevokeAndIsRevoked(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	exp := time.Now().Add(1 * time.Minute)
	_ = repo.Store(ctx, "jti2", exp)
	if err := repo.Revoke(ctx, "jti2", exp); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	revoked, err := repo.IsRevoked(ctx, "jti2")
	if err != nil {
		t.Fatalf("IsRevoked err: %v", err)
	}
	if !revoked {
		t.Fatal("token should be marked revoked")
	}
}

func TestRedisTokenRepo_RevokeAccessAndIsAccessRevoked(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	exp := time.Now().Add(30 * time.Second)
	if err := repo.RevokeAccess(ctx, "access-jti", exp); err != nil {
		t.Fatalf("RevokeAccess: %v", err)
	}

	revoked, err := repo.IsAccessRevoked(ctx, "access-jti")
	if err != nil {
		t.Fatalf("IsAccessRevoked err: %v", err)
	}
	if !revoked {
		t.Fatal("access-token should be marked revoked")
	}

	// refresh and access entries live in separate namespaces
	if revoked, _ := repo.IsRevoked(ctx, "access-jti"); revoked {
		t.Fatal("access revocation must not leak into refresh lookups")
	}
}

func TestRedisTokenRepo_IsRevoked_KeyAbsent(t *testing.T) {
	repo, _ := newRepo(t)

	revoked, err := repo.IsRevoked(context.Background(), "absent-jti")
	if err != nil {
		t.Fatalf("IsRevoked err: %v", err)
	}
	if revoked {
		t.Fatal("absent key must be considered NOT revoked")
	}
}

func TestRedisTokenRepo_EntriesExpire(t *testing.T) {
	repo, mr := newRepo(t)
	ctx := context.Background()

	if err := repo.RevokeAccess(ctx, "short", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("RevokeAccess: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	revoked, err := repo.IsAccessRevoked(ctx, "short")
	if err != nil {
		t.Fatalf("IsAccessRevoked err: %v", err)
	}
	if revoked {
		t.Fatal("entry should expire with the token")
	}
}

func TestRedisTokenRepo_FailsClosed(t *testing.T) {
	repo, mr := newRepo(t)
	mr.Close()

	revoked, err := repo.IsRevoked(context.Background(), "any")
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if !revoked {
		t.Fatal("lookup errors must report revoked")
	}
}
