package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryProvider(t *testing.T) {
	ctx := context.Background()
	p := NewMemory()

	got, err := p.Get(ctx)
	if err != nil || got != "" {
		t.Fatalf("Get() on empty slot = %q, %v; want \"\", nil", got, err)
	}

	if err := p.Set(ctx, "token-1"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, _ = p.Get(ctx)
	if got != "token-1" {
		t.Errorf("Get() = %q, want token-1", got)
	}

	if err := p.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	got, _ = p.Get(ctx)
	if got != "" {
		t.Errorf("Get() after Clear = %q, want empty", got)
	}
}

func TestFileProviderPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "access_token")

	p := NewFile(path)
	if err := p.Set(ctx, "persisted-token"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	// A second provider over the same path sees the value.
	p2 := NewFile(path)
	got, err := p2.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != "persisted-token" {
		t.Errorf("Get() = %q, want persisted-token", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != fs.FileMode(0o600) {
		t.Errorf("token file mode = %o, want 600", perm)
	}
}

func TestFileProviderMissingFile(t *testing.T) {
	ctx := context.Background()
	p := NewFile(filepath.Join(t.TempDir(), "never-written"))

	got, err := p.Get(ctx)
	if err != nil || got != "" {
		t.Errorf("Get() on missing file = %q, %v; want \"\", nil", got, err)
	}

	// Clearing an absent slot is not an error.
	if err := p.Clear(ctx); err != nil {
		t.Errorf("Clear() on missing file: %v", err)
	}
}

func TestFileProviderClear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "refresh_token")

	p := NewFile(path)
	if err := p.Set(ctx, "rt-1"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := p.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Clear() should remove the file")
	}
}

func TestNewKinds(t *testing.T) {
	if _, err := New(KindMemory, "", nil); err != nil {
		t.Errorf("New(memory) error: %v", err)
	}
	if _, err := New("", "", nil); err != nil {
		t.Errorf("New with empty kind should default to memory: %v", err)
	}
	if _, err := New(KindFile, "", nil); err == nil {
		t.Error("New(file) without a path should fail")
	}
	if _, err := New("redis", "", nil); err == nil {
		t.Error("New with unknown kind should fail")
	}
}

func TestNewFileFallsBackToMemory(t *testing.T) {
	ctx := context.Background()

	// A path whose parent is a regular file cannot hold token files.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("writing blocker: %v", err)
	}

	p, err := New(KindFile, filepath.Join(blocker, "access_token"), nil)
	if err != nil {
		t.Fatalf("New() should fall back, got error: %v", err)
	}

	// The fallback provider still round-trips values.
	if err := p.Set(ctx, "in-memory"); err != nil {
		t.Fatalf("Set() on fallback: %v", err)
	}
	got, _ := p.Get(ctx)
	if got != "in-memory" {
		t.Errorf("Get() = %q, want in-memory", got)
	}
	if _, ok := p.(*memoryProvider); !ok {
		t.Errorf("fallback provider = %T, want *memoryProvider", p)
	}
}
