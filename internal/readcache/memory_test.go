package readcache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/versions"
)

var ctx = context.Background()

func sampleVersion(masterID uuid.UUID) *versions.ProtocolVersion {
	return &versions.ProtocolVersion{
		ID:               uuid.New(),
		DocumentMasterID: masterID,
		VersionNumber:    "2.0",
		Status:           versions.StatusCurrent,
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	masterID := uuid.New()
	v := sampleVersion(masterID)

	c.SetCurrent(ctx, v)

	got, ok := c.GetCurrent(ctx, masterID)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.ID != v.ID {
		t.Errorf("id: got %s, want %s", got.ID, v.ID)
	}
	if got.VersionNumber != "2.0" {
		t.Errorf("version number: got %q, want %q", got.VersionNumber, "2.0")
	}
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	if _, ok := c.GetCurrent(ctx, uuid.New()); ok {
		t.Error("expected cache miss for unknown master")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(10 * time.Millisecond)
	masterID := uuid.New()
	c.SetCurrent(ctx, sampleVersion(masterID))

	if _, ok := c.GetCurrent(ctx, masterID); !ok {
		t.Fatal("expected cache hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.GetCurrent(ctx, masterID); ok {
		t.Error("expected cache miss after TTL expiry")
	}
}

func TestMemoryCache_Invalidate(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	masterID := uuid.New()
	c.SetCurrent(ctx, sampleVersion(masterID))
	c.InvalidateCurrent(ctx, masterID)

	if _, ok := c.GetCurrent(ctx, masterID); ok {
		t.Error("expected cache miss after invalidation")
	}
}

func TestMemoryCache_Evict(t *testing.T) {
	c := NewMemoryCache(10 * time.Millisecond)
	for i := 0; i < 3; i++ {
		c.SetCurrent(ctx, sampleVersion(uuid.New()))
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", c.Len())
	}

	time.Sleep(20 * time.Millisecond)

	if n := c.Evict(); n != 3 {
		t.Errorf("Evict() removed %d entries, want 3", n)
	}
	if c.Len() != 0 {
		t.Errorf("cache has %d entries after eviction, want 0", c.Len())
	}
}

func TestMemoryCache_CopiesOut(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	masterID := uuid.New()
	c.SetCurrent(ctx, sampleVersion(masterID))

	got, _ := c.GetCurrent(ctx, masterID)
	got.Status = versions.StatusSuperseded

	again, _ := c.GetCurrent(ctx, masterID)
	if again.Status != versions.StatusCurrent {
		t.Error("mutating a returned version must not affect the cached copy")
	}
}
