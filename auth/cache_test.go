package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestUserHashOf_Deterministic20HexChars(t *testing.T) {
	h1 := userHashOf("gamertag@example.com")
	h2 := userHashOf("gamertag@example.com")
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %q != %q", h1, h2)
	}
	if len(h1) != 20 {
		t.Fatalf("hash is %d chars, want 20", len(h1))
	}
	for _, r := range h1 {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			t.Fatalf("hash %q contains non-lowercase-hex character %q", h1, r)
		}
	}
}

func TestNewCache_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	if _, err := NewCache(dir, "user"); err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected %s to exist as a directory", dir)
	}
}

func TestCache_MSARoundTrip(t *testing.T) {
	c, err := NewCache(t.TempDir(), "user")
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	want := NewExpiringWithDuration(MSAToken{AccessToken: "tok"}, 3600)
	if err := c.UpdateMSA(want); err != nil {
		t.Fatalf("UpdateMSA: %v", err)
	}

	got, err := c.GetMSA()
	if err != nil {
		t.Fatalf("GetMSA: %v", err)
	}
	if got.Take().AccessToken != "tok" {
		t.Fatalf("got access token %q, want %q", got.Take().AccessToken, "tok")
	}
}

func TestCache_GetMSA_MissingFileIsCacheMiss(t *testing.T) {
	c, err := NewCache(t.TempDir(), "user")
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if _, err := c.GetMSA(); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("got %v, want ErrCacheMiss", err)
	}
}

func TestCache_GetXSTS_CorruptFileIsCacheCorrupt(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir, "user")
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	path := filepath.Join(dir, userHashOf("user")+"_xbl-cache.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("seeding corrupt cache file: %v", err)
	}
	if _, err := c.GetXSTS(); !errors.Is(err, ErrCacheCorrupt) {
		t.Fatalf("got %v, want ErrCacheCorrupt", err)
	}
}
