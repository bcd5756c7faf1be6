package goarchiveerr

import (
	"errors"
	"testing"
)

func TestIsComparesByKindOnly(t *testing.T) {
	a := New(InvalidParameter, "first").WithEntity(1)
	b := New(InvalidParameter, "second").WithEntity(2)
	if !errors.Is(a, b) {
		t.Fatal("expected two errors of the same Kind to satisfy errors.Is")
	}

	c := New(InvalidComponent, "first")
	if errors.Is(a, c) {
		t.Fatal("expected errors of different Kind to not satisfy errors.Is")
	}
}

func TestWithEntityAndComponentDoNotMutateOriginal(t *testing.T) {
	base := New(InvalidOperation, "bad")
	withEntity := base.WithEntity(7)
	if base.Entity != 0 {
		t.Fatal("expected WithEntity to return a copy, not mutate the receiver")
	}
	if withEntity.Entity != 7 {
		t.Fatalf("Entity = %d, want 7", withEntity.Entity)
	}
}

func TestErrorMessageFormatting(t *testing.T) {
	plain := New(OutOfMemory, "alloc failed")
	if got := plain.Error(); got != "OutOfMemory: alloc failed" {
		t.Fatalf("Error() = %q", got)
	}

	tagged := New(InvalidComponent, "no column").WithEntity(3).WithComponent(9)
	if got := tagged.Error(); got != "InvalidComponent: no column (entity=3 component=9)" {
		t.Fatalf("Error() = %q", got)
	}
}
