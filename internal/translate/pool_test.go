package translate

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testPool(creds ...string) (*CredentialPool, *time.Time) {
	pool := NewCredentialPool(creds, time.Hour, zerolog.Nop())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pool.now = func() time.Time { return now }
	return pool, &now
}

func TestAcquireRoundRobin(t *testing.T) {
	pool, _ := testPool("k1", "k2", "k3")

	got := []string{pool.Acquire(), pool.Acquire(), pool.Acquire(), pool.Acquire()}
	want := []string{"k1", "k2", "k3", "k1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("第 %d 次 Acquire 期望 %s, 实际 %s", i, want[i], got[i])
		}
	}
}

func TestAcquireSkipsLimited(t *testing.T) {
	pool, _ := testPool("k1", "k2", "k3")

	pool.MarkLimited("k1")
	pool.MarkLimited("k2")

	if got := pool.Acquire(); got != "k3" {
		t.Fatalf("前两个受限时应返回第三个, 实际 %s", got)
	}
}

func TestAcquireAllLimitedReturnsFirst(t *testing.T) {
	pool, _ := testPool("k1", "k2", "k3")

	pool.MarkLimited("k1")
	pool.MarkLimited("k2")
	pool.MarkLimited("k3")

	if got := pool.Acquire(); got != "k1" {
		t.Fatalf("全部受限时应直接返回第一个而非阻塞, 实际 %s", got)
	}
}

func TestLimitedCredentialRecoversAfterCooldown(t *testing.T) {
	pool, now := testPool("k1", "k2")

	pool.MarkLimited("k1")
	if got := pool.Acquire(); got != "k2" {
		t.Fatalf("受限凭证应被跳过, 实际 %s", got)
	}

	*now = now.Add(time.Hour)
	if got := pool.Acquire(); got != "k1" {
		t.Fatalf("冷却期满后凭证应恢复, 实际 %s", got)
	}
}

func TestAcquireEmptyPool(t *testing.T) {
	pool := NewCredentialPool(nil, time.Hour, zerolog.Nop())
	if got := pool.Acquire(); got != "" {
		t.Fatalf("空凭证池应返回空字符串, 实际 %q", got)
	}
}
