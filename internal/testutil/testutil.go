package testutil

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
)

// FixedTimeFunc returns a function that always returns the same time.
func FixedTimeFunc(t time.Time) func() time.Time {
	return func() time.Time {
		return t
	}
}

// TestTime returns a fixed time for testing.
func TestTime() time.Time {
	return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
}

// Principal returns a valid principal with the given role.
func Principal(role domainauth.Role) domainauth.Principal {
	return domainauth.Principal{
		ID:    "user-" + string(role),
		Email: string(role) + "@example.com",
		Name:  "Test " + role.Label(),
		Role:  role,
	}
}

// Credentials returns a token and principal pair with the given role.
func Credentials(role domainauth.Role) domainauth.Credentials {
	return domainauth.Credentials{
		Token:     "token-" + string(role),
		Principal: Principal(role),
	}
}

// AuthenticatedSession returns a verified session for role.
func AuthenticatedSession(role domainauth.Role) domainauth.Session {
	p := Principal(role)
	return domainauth.Session{
		Token:      "token-" + string(role),
		Principal:  &p,
		Phase:      domainauth.PhaseAuthenticated,
		Checked:    true,
		VerifiedAt: TestTime(),
	}
}

// StartRedis returns a Redis address for tests. TEST_REDIS_ADDR points the tests at a real
// server; otherwise an in-process miniredis is started and stopped with the test.
func StartRedis(t testing.TB) string {
	t.Helper()
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	return miniredis.RunT(t).Addr()
}

// RedisClient returns a client on a flushed DB of a fresh test Redis.
func RedisClient(t testing.TB) *redis.Client {
	t.Helper()
	client := RedisClientAt(t, StartRedis(t))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return client
}

// RedisClientAt returns a client for addr that is closed with the test. TEST_REDIS_DB selects
// the DB when a real server is used.
func RedisClientAt(t testing.TB, addr string) *redis.Client {
	t.Helper()
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil || i < 0 {
			t.Fatalf("invalid TEST_REDIS_DB=%q", v)
		}
		db = i
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis not reachable at %s: %v", addr, err)
	}
	return client
}
