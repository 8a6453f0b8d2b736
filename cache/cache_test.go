package cache

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/lox/compiler"
	"github.com/chazu/lox/pkg/bytecode"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "sub", "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestErrorsNameDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if c.Path() != path {
		t.Errorf("Path() = %q, want %q", c.Path(), path)
	}
	c.Close()

	if _, err := c.Get("1"); err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("Get on closed cache = %v, want error naming %s", err, path)
	}
	if err := c.Put("1", bytecode.NewChunk()); err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("Put on closed cache = %v, want error naming %s", err, path)
	}
	if _, err := c.Len(); err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("Len on closed cache = %v, want error naming %s", err, path)
	}
}

func TestGetMissing(t *testing.T) {
	c := openTemp(t)
	if _, err := c.Get("1 + 2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestPutGet(t *testing.T) {
	c := openTemp(t)

	src := "(1.2 + 3.4) * 5.6"
	chunk := bytecode.NewChunk()
	if err := compiler.Compile(src, chunk); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := c.Put(src, chunk); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := c.Get(src)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got.Code, chunk.Code) {
		t.Errorf("Code = %v, want %v", got.Code, chunk.Code)
	}
	if got.Constants.Count() != 3 {
		t.Errorf("constant count = %d, want 3", got.Constants.Count())
	}

	// Replacing an entry keeps one row.
	if err := c.Put(src, chunk); err != nil {
		t.Fatalf("Put again: %v", err)
	}
	if n, err := c.Len(); err != nil || n != 1 {
		t.Errorf("Len = %d, %v; want 1", n, err)
	}
}

func TestCompileCached(t *testing.T) {
	c := openTemp(t)

	first, err := CompileCached(c, "1 + 2")
	if err != nil {
		t.Fatalf("CompileCached: %v", err)
	}
	if n, _ := c.Len(); n != 1 {
		t.Fatalf("Len after miss = %d, want 1", n)
	}

	second, err := CompileCached(c, "1 + 2")
	if err != nil {
		t.Fatalf("CompileCached: %v", err)
	}
	if !bytes.Equal(first.Code, second.Code) {
		t.Errorf("cached code %v differs from compiled %v", second.Code, first.Code)
	}
	if n, _ := c.Len(); n != 1 {
		t.Errorf("Len after hit = %d, want 1", n)
	}
}

func TestCompileCachedDoesNotStoreErrors(t *testing.T) {
	c := openTemp(t)

	_, err := CompileCached(c, "1 +")
	var list compiler.ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("err = %v, want compiler.ErrorList", err)
	}
	if n, _ := c.Len(); n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
}

func TestCompileCachedNilCache(t *testing.T) {
	chunk, err := CompileCached(nil, "true")
	if err != nil {
		t.Fatalf("CompileCached: %v", err)
	}
	if chunk.Count() != 2 {
		t.Errorf("Count = %d, want 2", chunk.Count())
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := CompileCached(c, "-1"); err != nil {
		t.Fatalf("CompileCached: %v", err)
	}
	c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c.Close()
	if _, err := c.Get("-1"); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}

func TestKeyDistinguishesSources(t *testing.T) {
	if Key("1") == Key("1 ") {
		t.Error("different sources share a key")
	}
	if len(Key("")) != 64 {
		t.Errorf("key length = %d, want 64", len(Key("")))
	}
}
