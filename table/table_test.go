package table

import (
	"testing"
	"unsafe"

	"github.com/TheBitDrifter/goarchive/registry"
)

type position struct{ X, Y float32 }

func newTestTable(t *testing.T, reg *registry.Registry, ids ...ID) *Table {
	t.Helper()
	return New(1, ids, reg)
}

func TestAppendAndGetRoundTrip(t *testing.T) {
	reg := registry.New()
	reg.Register(10, unsafe.Sizeof(position{}), unsafe.Alignof(position{}))
	tbl := newTestTable(t, reg, 10)

	rec := &Record{}
	row := tbl.Append(1, rec)
	ptr := tbl.Get(row, 10)
	if ptr == nil {
		t.Fatal("expected a non-nil pointer for a registered data component")
	}
	(*position)(ptr).X = 3
	if got := (*position)(tbl.Get(row, 10)).X; got != 3 {
		t.Fatalf("X = %v, want 3", got)
	}
}

func TestGetReturnsNilForTagOrAbsent(t *testing.T) {
	reg := registry.New()
	reg.Register(10, unsafe.Sizeof(position{}), unsafe.Alignof(position{}))
	reg.Register(20, 0, 0) // tag
	tbl := newTestTable(t, reg, 10, 20)

	row := tbl.Append(1, &Record{})
	if tbl.Get(row, 20) != nil {
		t.Fatal("expected nil for a tag component")
	}
	if tbl.Get(row, 99) != nil {
		t.Fatal("expected nil for an id absent from the type")
	}
}

func TestDeleteRowSwapsWithLastAndUpdatesRecord(t *testing.T) {
	reg := registry.New()
	reg.Register(10, unsafe.Sizeof(position{}), unsafe.Alignof(position{}))
	tbl := newTestTable(t, reg, 10)

	recA := &Record{}
	recB := &Record{}
	recC := &Record{}
	rowA := tbl.Append(1, recA)
	recA.Row = EncodeRow(rowA, false)
	rowB := tbl.Append(2, recB)
	recB.Row = EncodeRow(rowB, false)
	rowC := tbl.Append(3, recC)
	recC.Row = EncodeRow(rowC, false)

	tbl.DeleteRow(rowA, true)

	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}
	// C (the last row) should have been swapped into row 0 and recC
	// updated to reflect it.
	if tbl.Entities()[0] != 3 {
		t.Fatalf("expected entity 3 swapped into row 0, got %d", tbl.Entities()[0])
	}
	if recC.RowIndex() != 0 {
		t.Fatalf("expected recC.RowIndex() == 0, got %d", recC.RowIndex())
	}
	if recB.RowIndex() != 1 {
		t.Fatalf("expected recB to be untouched at row 1, got %d", recB.RowIndex())
	}
}

func TestMoveEntityRunsCtorAndDtorHooksOnNonSharedComponents(t *testing.T) {
	reg := registry.New()
	var ctorCount, dtorCount int
	reg.Register(10, unsafe.Sizeof(position{}), unsafe.Alignof(position{}))
	reg.SetHooks(10, registry.Hooks{Ctor: func(unsafe.Pointer, int) { ctorCount++ }})
	reg.Register(20, 4, 4)
	reg.SetHooks(20, registry.Hooks{Dtor: func(unsafe.Pointer, int) { dtorCount++ }})

	src := newTestTable(t, reg, 20)
	dst := newTestTable(t, reg, 10)

	rec := &Record{}
	srcRow := src.Append(1, rec)
	rec.Row = EncodeRow(srcRow, false)
	ctorCount = 0 // ignore the Append above's own ctor call (different component)

	MoveEntity(1, rec, dst, src, srcRow)

	if ctorCount != 1 {
		t.Fatalf("expected destination ctor to run once, got %d", ctorCount)
	}
	if dtorCount != 1 {
		t.Fatalf("expected source dtor to run once, got %d", dtorCount)
	}
	if src.Len() != 0 {
		t.Fatalf("expected source table emptied, got %d rows", src.Len())
	}
	if dst.Len() != 1 {
		t.Fatalf("expected destination table to hold the moved row, got %d rows", dst.Len())
	}
	if rec.Table != dst {
		t.Fatalf("expected rec.Table to still be updated by the caller")
	}
}

func TestFlagsReflectBuiltinDisabledAndComponentData(t *testing.T) {
	reg := registry.New()
	reg.Register(3, 0, 0) // falls below HiComponentID: builtin range
	reg.MarkDisabled(3)
	reg.Register(500, unsafe.Sizeof(position{}), unsafe.Alignof(position{}))

	tagOnly := newTestTable(t, reg, 3)
	if tagOnly.Flags()&FlagHasBuiltinID == 0 {
		t.Fatal("expected FlagHasBuiltinID for a low-range id")
	}
	if tagOnly.Flags()&FlagHasDisabled == 0 {
		t.Fatal("expected FlagHasDisabled for the marked Disabled id")
	}
	if tagOnly.Flags()&FlagHasComponentData != 0 {
		t.Fatal("expected no FlagHasComponentData for an all-tag table")
	}

	withData := newTestTable(t, reg, 500)
	if withData.Flags()&FlagHasComponentData == 0 {
		t.Fatal("expected FlagHasComponentData for a table with a data column")
	}
	if withData.Flags()&FlagHasBuiltinID != 0 {
		t.Fatal("expected no FlagHasBuiltinID for a high, non-builtin id")
	}
}

func TestSetSizeReservesCapacityWithoutChangingLen(t *testing.T) {
	reg := registry.New()
	reg.Register(10, unsafe.Sizeof(position{}), unsafe.Alignof(position{}))
	tbl := newTestTable(t, reg, 10)

	tbl.SetSize(1000)
	if tbl.Len() != 0 {
		t.Fatalf("expected SetSize not to create rows, Len() = %d", tbl.Len())
	}

	before := tbl.AllocCount()
	for i := 0; i < 500; i++ {
		tbl.Append(ID(i+1), &Record{})
	}
	if tbl.AllocCount() != before {
		t.Fatalf("expected appends within the reserved capacity not to reallocate, AllocCount went from %d to %d", before, tbl.AllocCount())
	}
}

func TestAppendNCreatesRowsAndRunsCtor(t *testing.T) {
	reg := registry.New()
	var ctorCount int
	reg.Register(10, unsafe.Sizeof(position{}), unsafe.Alignof(position{}))
	reg.SetHooks(10, registry.Hooks{Ctor: func(unsafe.Pointer, int) { ctorCount++ }})
	tbl := newTestTable(t, reg, 10)

	rows := tbl.AppendN(3, []ID{1, 2})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if tbl.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tbl.Len())
	}
	if ctorCount != 3 {
		t.Fatalf("expected ctor to run once per row, got %d", ctorCount)
	}
	if tbl.Entities()[0] != 1 || tbl.Entities()[1] != 2 {
		t.Fatalf("expected the supplied ids to populate the first rows, got %v", tbl.Entities())
	}
	if tbl.Entities()[2] != 0 {
		t.Fatalf("expected a row beyond len(ids) to default to entity 0, got %d", tbl.Entities()[2])
	}
}

func TestMoveEntityPreservesSharedComponentValue(t *testing.T) {
	reg := registry.New()
	reg.Register(10, unsafe.Sizeof(position{}), unsafe.Alignof(position{}))
	reg.Register(20, 4, 4)

	src := New(1, []ID{10, 20}, reg)
	dst := New(2, []ID{10}, reg)

	rec := &Record{}
	srcRow := src.Append(1, rec)
	rec.Row = EncodeRow(srcRow, false)
	(*position)(src.Get(srcRow, 10)).X = 7

	dstRow := MoveEntity(1, rec, dst, src, srcRow)

	if got := (*position)(dst.Get(dstRow, 10)).X; got != 7 {
		t.Fatalf("X = %v, want 7 to survive the move", got)
	}
}
