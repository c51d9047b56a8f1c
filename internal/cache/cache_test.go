package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMemoryCacheLRU(t *testing.T) {
	c := NewMemoryCache(10)

	_ = c.Put("a", []byte("aaaa"))
	_ = c.Put("b", []byte("bbbb"))
	c.Get("a") // a is now most recent
	_ = c.Put("c", []byte("cccc"))

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry was not evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry was evicted")
	}
	s := c.Stats()
	if s.Size != 8 || s.Items != 2 || s.Evictions != 1 {
		t.Errorf("stats = %+v", s)
	}

	if err := c.Put("big", make([]byte, 11)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Put() oversized error = %v, want ErrItemTooLarge", err)
	}
}

func TestMemoryCacheReplace(t *testing.T) {
	c := NewMemoryCache(100)
	_ = c.Put("k", []byte("first"))
	_ = c.Put("k", []byte("second!"))

	got, _ := c.Get("k")
	if string(got) != "second!" {
		t.Errorf("Get() = %q", got)
	}
	if s := c.Stats(); s.Size != 7 || s.Items != 1 {
		t.Errorf("stats after replace = %+v", s)
	}
	_ = c.Delete("k")
	_ = c.Delete("missing")
	if s := c.Stats(); s.Size != 0 {
		t.Errorf("size after delete = %d", s.Size)
	}
}

func TestDiskCachePersists(t *testing.T) {
	dir := t.TempDir()
	clip := bytes.Repeat([]byte("pcm-"), 2048)

	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache() error = %v", err)
	}
	if err := dc.Put("clip", clip); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if s := dc.Stats(); s.Size >= int64(len(clip)) {
		t.Errorf("stored %d bytes, expected compression below %d", s.Size, len(clip))
	}
	if err := dc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	got, ok := reopened.Get("clip")
	if !ok || !bytes.Equal(got, clip) {
		t.Error("entry did not survive reopen")
	}
}

func TestDiskCacheMissingFile(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	_ = dc.Put("k", []byte("value"))
	if err := os.Remove(filepath.Join(dir, "k.zst")); err != nil {
		t.Fatal(err)
	}
	if _, ok := dc.Get("k"); ok {
		t.Error("Get() succeeded with missing file")
	}
	if s := dc.Stats(); s.Items != 0 || s.Size != 0 {
		t.Errorf("stale entry kept: %+v", s)
	}
}

func TestDiskCachePrune(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1<<20, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	_ = dc.Put("old", []byte("x"))
	if n := dc.Prune(time.Now().Add(time.Minute)); n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if n := dc.Prune(time.Now().Add(-time.Minute)); n != 0 {
		t.Errorf("Prune() of empty cache = %d", n)
	}
}

func TestAudioCachePromotes(t *testing.T) {
	config := DefaultConfig()
	config.Dir = t.TempDir()

	c, err := Open(config, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()

	key := Key{Text: "你好", Language: "zh-CN", Voice: "zh_CN-huayan-medium", Rate: 1}
	if _, ok := c.Get(key); ok {
		t.Fatal("empty cache hit")
	}
	if err := c.Put(key, []byte("audio")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	_ = c.memory.Clear()
	if got, ok := c.Get(key); !ok || string(got) != "audio" {
		t.Fatal("disk level missed")
	}
	if _, ok := c.memory.Get(key.String()); !ok {
		t.Error("disk hit was not promoted to memory")
	}
}

func TestKeyDistinguishesFields(t *testing.T) {
	base := Key{Text: "hello", Language: "en-US", Voice: "a", Rate: 1}
	variants := []Key{
		{Text: "hello!", Language: "en-US", Voice: "a", Rate: 1},
		{Text: "hello", Language: "en-GB", Voice: "a", Rate: 1},
		{Text: "hello", Language: "en-US", Voice: "b", Rate: 1},
		{Text: "hello", Language: "en-US", Voice: "a", Rate: 1.25},
	}
	for _, v := range variants {
		if v.String() == base.String() {
			t.Errorf("key %+v collides with %+v", v, base)
		}
	}
	if base.String() != (Key{Text: "hello", Language: "en-US", Voice: "a", Rate: 1.0}).String() {
		t.Error("equal keys hash differently")
	}
}

func TestStatsString(t *testing.T) {
	s := Stats{Capacity: 2048, Size: 1024, Items: 3, Hits: 1, Misses: 1}
	if got, want := s.String(), "3 items, 1.0 KiB of 2.0 KiB, 50% hits"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
