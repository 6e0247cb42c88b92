package emulator

import "testing"

func TestTable_Basic(t *testing.T) {
	tbl := newTable()

	h := tbl.put("first")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	v, ok := tbl.get(h)
	if !ok {
		t.Fatal("get failed")
	}
	if v != "first" {
		t.Fatalf("Expected 'first', got %v", v)
	}

	if !tbl.drop(h) {
		t.Fatal("drop failed")
	}
	if _, ok := tbl.get(h); ok {
		t.Fatal("Expected get to fail after drop")
	}
	if tbl.drop(h) {
		t.Fatal("Expected second drop to fail")
	}
}

func TestTable_RecyclesSlots(t *testing.T) {
	tbl := newTable()

	h1 := tbl.put("a")
	h2 := tbl.put("b")
	h3 := tbl.put("c")
	if h1 == h2 || h2 == h3 || h1 == h3 {
		t.Fatal("Expected distinct handles")
	}

	if !tbl.drop(h2) {
		t.Fatal("drop failed")
	}
	h4 := tbl.put("d")
	if h4 != h2 {
		t.Fatalf("Expected recycled handle %d, got %d", h2, h4)
	}

	// the recycled slot holds the new value
	v, ok := tbl.get(h4)
	if !ok || v != "d" {
		t.Fatalf("Expected 'd', got %v", v)
	}
	if tbl.size() != 3 {
		t.Fatalf("Expected size 3, got %d", tbl.size())
	}
}

func TestTable_Reset(t *testing.T) {
	tbl := newTable()

	h1 := tbl.put("a")
	tbl.put("b")
	tbl.reset()

	if tbl.size() != 0 {
		t.Fatalf("Expected size 0, got %d", tbl.size())
	}
	if _, ok := tbl.get(h1); ok {
		t.Fatal("Expected get to fail after reset")
	}

	// handles start over after a reset
	if h := tbl.put("c"); h != h1 {
		t.Fatalf("Expected handle %d, got %d", h1, h)
	}
}

func TestTable_ZeroHandleInvalid(t *testing.T) {
	tbl := newTable()
	tbl.put("a")

	if _, ok := tbl.get(0); ok {
		t.Fatal("Expected zero handle to be invalid")
	}
	if tbl.drop(0) {
		t.Fatal("Expected drop of zero handle to fail")
	}
	if _, ok := tbl.get(99); ok {
		t.Fatal("Expected out-of-range handle to be invalid")
	}
}
