package sessionstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestMemory_PutGet(t *testing.T) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMemory(clk.Now)
	ctx := context.Background()

	if err := m.Put(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("Get = %q, want %q", got, "v")
	}
}

func TestMemory_ExpiresLazily(t *testing.T) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMemory(clk.Now)
	ctx := context.Background()

	_ = m.Put(ctx, "k", []byte("v"), time.Minute)

	clk.now = clk.now.Add(59 * time.Second)
	if _, err := m.Get(ctx, "k"); err != nil {
		t.Fatalf("still valid, got %v", err)
	}

	clk.now = clk.now.Add(time.Second)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound at expiry, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expired entry should be dropped, Len=%d", m.Len())
	}
}

func TestMemory_PutRefreshesTTL(t *testing.T) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMemory(clk.Now)
	ctx := context.Background()

	_ = m.Put(ctx, "k", []byte("v"), time.Minute)
	clk.now = clk.now.Add(50 * time.Second)
	_ = m.Put(ctx, "k", []byte("v"), time.Minute)
	clk.now = clk.now.Add(50 * time.Second)

	if _, err := m.Get(ctx, "k"); err != nil {
		t.Fatalf("refreshed key should be live, got %v", err)
	}
}

func TestMemory_DeleteIsIdempotent(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	_ = m.Put(ctx, "k", []byte("v"), time.Minute)
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestMemory_ValueIsCopied(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	in := []byte("abc")
	_ = m.Put(ctx, "k", in, time.Minute)
	in[0] = 'x'

	got, _ := m.Get(ctx, "k")
	got[1] = 'y'

	again, _ := m.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value was aliased: %q", again)
	}
}
