package storage

import (
	"errors"
	"testing"
)

func TestMemDBGetPut(t *testing.T) {
	db := NewMemDB()
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "v" {
		t.Fatalf("unexpected value: %q", value)
	}
	ok, err := db.Has([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("expected key present, got ok=%v err=%v", ok, err)
	}
}

func TestMemDBReturnsCopies(t *testing.T) {
	db := NewMemDB()
	original := []byte("value")
	if err := db.Put([]byte("k"), original); err != nil {
		t.Fatalf("put: %v", err)
	}
	original[0] = 'X'

	stored, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(stored) != "value" {
		t.Fatalf("stored value aliased caller's slice: %q", stored)
	}
	stored[0] = 'Y'
	again, _ := db.Get([]byte("k"))
	if string(again) != "value" {
		t.Fatalf("returned value aliased internal state: %q", again)
	}
}

func TestMemDBIteratePrefix(t *testing.T) {
	db := NewMemDB()
	entries := map[string]string{
		"pos/a": "1",
		"pos/b": "2",
		"aux/c": "3",
	}
	for k, v := range entries {
		if err := db.Put([]byte(k), []byte(v)); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	seen := make(map[string]string)
	err := db.Iterate([]byte("pos/"), func(key, value []byte) bool {
		seen[string(key)] = string(value)
		return true
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(seen) != 2 || seen["pos/a"] != "1" || seen["pos/b"] != "2" {
		t.Fatalf("unexpected iteration result: %v", seen)
	}
}

func TestMemDBIterateEarlyStop(t *testing.T) {
	db := NewMemDB()
	for _, k := range []string{"p/1", "p/2", "p/3"} {
		if err := db.Put([]byte(k), []byte("v")); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	count := 0
	err := db.Iterate([]byte("p/"), func(key, value []byte) bool {
		count++
		return false
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected early stop after one entry, got %d", count)
	}
}

func TestLevelDBRoundTrip(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("pos/a"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.Put([]byte("pos/b"), []byte("2")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.Put([]byte("zzz"), []byte("3")); err != nil {
		t.Fatalf("put: %v", err)
	}

	value, err := db.Get([]byte("pos/a"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "1" {
		t.Fatalf("unexpected value: %q", value)
	}

	seen := 0
	err = db.Iterate([]byte("pos/"), func(key, value []byte) bool {
		seen++
		return true
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if seen != 2 {
		t.Fatalf("expected 2 prefixed keys, got %d", seen)
	}
}
