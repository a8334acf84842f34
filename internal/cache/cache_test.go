package cache

import (
	"os"
	"path/filepath"
	"testing"

	"shazamtool/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func writeChunk(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunk_000.mp3")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStore_LookupMiss(t *testing.T) {
	store := openTestStore(t)
	chunk := writeChunk(t, "never seen")

	track, ok, err := store.Lookup(chunk)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if ok || track != nil {
		t.Errorf("Lookup() = (%v, %v), want cache miss", track, ok)
	}
}

func TestStore_StoreAndLookup(t *testing.T) {
	store := openTestStore(t)
	chunk := writeChunk(t, "some audio")

	original := &core.Track{Artist: "Daft Punk", Title: "One More Time"}
	if err := store.Store(chunk, original); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	track, ok, err := store.Lookup(chunk)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !ok {
		t.Fatal("Lookup() missed a stored outcome")
	}
	if track == nil || *track != *original {
		t.Errorf("Lookup() = %v, want %v", track, original)
	}
}

func TestStore_CachedNoMatch(t *testing.T) {
	store := openTestStore(t)
	chunk := writeChunk(t, "silence")

	if err := store.Store(chunk, nil); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	track, ok, err := store.Lookup(chunk)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !ok {
		t.Fatal("A cached no-match should count as a cache hit")
	}
	if track != nil {
		t.Errorf("Cached no-match returned track %v", track)
	}
}

func TestStore_KeyIsContentBased(t *testing.T) {
	store := openTestStore(t)

	chunk := writeChunk(t, "identical audio")
	if err := store.Store(chunk, &core.Track{Artist: "A", Title: "T"}); err != nil {
		t.Fatal(err)
	}

	// The same bytes at a different path hit the same cache entry.
	other := filepath.Join(t.TempDir(), "renamed.mp3")
	if err := os.WriteFile(other, []byte("identical audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	track, ok, err := store.Lookup(other)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !ok || track == nil || track.Artist != "A" {
		t.Error("Identical content at a different path should hit the cache")
	}
}

func TestStore_Overwrite(t *testing.T) {
	store := openTestStore(t)
	chunk := writeChunk(t, "audio")

	if err := store.Store(chunk, nil); err != nil {
		t.Fatal(err)
	}
	updated := &core.Track{Artist: "Justice", Title: "Genesis"}
	if err := store.Store(chunk, updated); err != nil {
		t.Fatal(err)
	}

	track, ok, err := store.Lookup(chunk)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !ok || track == nil || *track != *updated {
		t.Errorf("Lookup() after overwrite = %v, want %v", track, updated)
	}
}

func TestFileKey(t *testing.T) {
	a := writeChunk(t, "same content")
	b := writeChunk(t, "same content")
	c := writeChunk(t, "different content")

	keyA, err := FileKey(a)
	if err != nil {
		t.Fatal(err)
	}
	keyB, _ := FileKey(b)
	keyC, _ := FileKey(c)

	if keyA != keyB {
		t.Error("Identical content should produce identical keys")
	}
	if keyA == keyC {
		t.Error("Different content should produce different keys")
	}

	if _, err := FileKey(filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Error("FileKey() should fail for a missing file")
	}
}
