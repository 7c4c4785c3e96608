package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
	if parts := strings.Split(id, "-"); len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	// Version nibble is the first char of the third group.
	if id[14] != '7' {
		t.Fatalf("UUIDv7: version nibble = %q, want '7'", id[14])
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	// WHAT: Successive UUIDv7 values sort lexically in generation order.
	// WHY: Batch ids are shown newest-last in ingest history without a
	// separate sort key.
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 50; i++ {
		id := gen()
		if id <= prev {
			t.Fatalf("iteration %d: %q <= %q", i, id, prev)
		}
		prev = id
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("batch_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "batch_") {
		t.Fatalf("Prefixed: %q lacks prefix", id)
	}
	if len(id) != len("batch_")+36 {
		t.Fatalf("Prefixed: unexpected length %d", len(id))
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence()
	for _, want := range []string{"1", "2", "3"} {
		if got := gen(); got != want {
			t.Fatalf("Sequence: got %q, want %q", got, want)
		}
	}
}

func TestSequence_Concurrent(t *testing.T) {
	gen := Sequence()
	var mu sync.Mutex
	seen := make(map[string]struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 800 {
		t.Fatalf("Sequence: %d unique ids, want 800", len(seen))
	}
}

func TestParse(t *testing.T) {
	id := New()
	got, err := Parse(strings.ToUpper(id))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != id {
		t.Fatalf("Parse: got %q, want %q", got, id)
	}
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("Parse: expected error for invalid input")
	}
}
