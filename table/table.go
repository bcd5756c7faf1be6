// Package table implements the columnar archetype storage spec.md §4.B
// describes: one Table per exact component composition, columns grown
// lazily, swap-remove deletion, and cross-table row moves that dispatch
// per-component ctor/dtor/copy/move hooks.
//
// Grounded on the teacher's world.go (Archetype, CopyOp,
// moveEntityBetweenArchetypes, removeEntityFromArchetype), generalized
// from a fixed [4]uint64 bitmask of at most 256 compile-time component
// types to an arbitrary sorted []ID type backed by the registry package,
// and extended with the lifecycle-hook dispatch the teacher never needed
// (it only ever memcopies raw bytes).
package table

import (
	"sort"
	"unsafe"

	"github.com/TheBitDrifter/goarchive/registry"
)

// ID is a component or entity id, matching the root package's Entity
// representation.
type ID = uint64

// Record is the entity index's per-entity payload: which table an entity
// currently lives in and at what row. Tables hold non-owning *Record
// pointers into the entity index's arena (see entityindex's chunk
// stability guarantee) and must keep them in sync across row moves.
//
// Row is sign-encoded: a negative value marks the entity as watched by an
// external observer; abs(Row)-1 is the actual row index. Row == 0 means
// "no row assigned yet" and should not be dereferenced.
type Record struct {
	Table *Table
	Row   int32
}

// EncodeRow packs a zero-based row index and a watched flag into the
// sign-encoded Row representation.
func EncodeRow(row int, watched bool) int32 {
	v := int32(row) + 1
	if watched {
		v = -v
	}
	return v
}

// RowIndex returns the zero-based row this record refers to.
func (r *Record) RowIndex() int {
	row := r.Row
	if row < 0 {
		row = -row
	}
	return int(row) - 1
}

// IsWatched reports whether the record's row is marked watched.
func (r *Record) IsWatched() bool { return r.Row < 0 }

// SetWatched updates the watched flag in place, preserving the row index.
func (r *Record) SetWatched(watched bool) {
	r.Row = EncodeRow(r.RowIndex(), watched)
}

// Table holds every entity whose component composition exactly equals
// Type(). Columns hold only data-bearing components; tag ids occupy a
// position in Type() but contribute no column.
type Table struct {
	id       uint64
	typ      []ID
	colSlots []int // parallel to typ; -1 for tag positions
	columns  []column
	entities []ID
	records  []*Record

	reg *registry.Registry

	hasCtor bool
	hasDtor bool
	hasCopy bool
	hasMove bool

	// dirty[0] counts row appends; dirty[i+1] counts mutations recorded
	// against columns[i] via MarkDirty. Kept per spec.md §4.B's "dirty
	// counter" for an eventual query/monitor runtime; the core itself
	// never reads these beyond exposing them.
	dirty      []uint32
	allocCount uint64

	flags Flags
}

// Flags is the per-table bitset spec.md §4.C names ("initialize
// per-component flags (built-in id ranges, the Disabled marker, the
// ComponentData bit)"), computed once at table construction from its
// type. Like the dirty counters, this is scaffolding for a downstream
// query runtime (spec.md §9's "switch-column / monitor scaffolding"
// note) — the core itself never branches on these bits.
type Flags uint32

const (
	// FlagHasBuiltinID is set if any id in the table's type falls below
	// the owning registry's configured threshold (registry.HiComponentID
	// by default), the reserved low range spec.md §6 assigns to
	// core/built-in components.
	FlagHasBuiltinID Flags = 1 << iota
	// FlagHasDisabled is set if the table's type includes the world's
	// designated Disabled marker (registry.Registry.IsDisabledMarker).
	FlagHasDisabled
	// FlagHasComponentData is set if the table has at least one
	// data-bearing column (ColumnCount() > 0); equivalent to "this table
	// is not all-tags".
	FlagHasComponentData
)

// New builds a Table for the given canonical (sorted, de-duplicated) type.
func New(id uint64, typ []ID, reg *registry.Registry) *Table {
	t := &Table{
		id:       id,
		typ:      append([]ID(nil), typ...),
		colSlots: make([]int, len(typ)),
		reg:      reg,
	}
	for i, cid := range typ {
		desc, ok := reg.Get(cid)
		if !ok || desc.Size == 0 {
			t.colSlots[i] = -1
			continue
		}
		t.colSlots[i] = len(t.columns)
		t.columns = append(t.columns, column{
			id:    cid,
			size:  desc.Size,
			align: desc.Align,
			hooks: desc.Hooks,
		})
	}
	t.dirty = make([]uint32, len(t.columns)+1)
	t.refreshHookFlags()
	for _, cid := range typ {
		if cid < reg.Threshold() {
			t.flags |= FlagHasBuiltinID
		}
		if reg.IsDisabledMarker(cid) {
			t.flags |= FlagHasDisabled
		}
	}
	if len(t.columns) > 0 {
		t.flags |= FlagHasComponentData
	}
	return t
}

// Flags returns the table's cached per-component flags bitset.
func (t *Table) Flags() Flags { return t.flags }

// ID returns the table's identity, stable for its lifetime.
func (t *Table) ID() uint64 { return t.id }

// Type returns the table's canonical sorted component-id list. Callers
// must not mutate the returned slice.
func (t *Table) Type() []ID { return t.typ }

// ColumnCount returns the number of data-bearing columns (tags excluded).
func (t *Table) ColumnCount() int { return len(t.columns) }

// Len returns the number of entities currently stored in the table.
func (t *Table) Len() int { return len(t.entities) }

// Entities returns the table's entities in dense row order. Callers must
// not mutate the returned slice.
func (t *Table) Entities() []ID { return t.entities }

// HasLifecycle reports whether any column in the table carries any
// lifecycle hook; true disables the fast (raw-memcpy) path everywhere in
// Append/DeleteRow/Move.
func (t *Table) HasLifecycle() bool {
	return t.hasCtor || t.hasDtor || t.hasCopy || t.hasMove
}

// refreshHookFlags recomputes the table's cached "has any X hook" bits
// from its columns' current descriptors. Called at construction and by
// Notify.
func (t *Table) refreshHookFlags() {
	t.hasCtor, t.hasDtor, t.hasCopy, t.hasMove = false, false, false, false
	for i := range t.columns {
		h := t.columns[i].hooks
		t.hasCtor = t.hasCtor || h.Ctor != nil
		t.hasDtor = t.hasDtor || h.Dtor != nil
		t.hasCopy = t.hasCopy || h.Copy != nil
		t.hasMove = t.hasMove || h.Move != nil
	}
}

// Notify refreshes this table's cached lifecycle hooks from the registry
// after a component's hooks change (spec.md §4.B's
// notify(ComponentInfoChanged)).
func (t *Table) Notify(changed ID) {
	for i := range t.columns {
		if t.columns[i].id != changed {
			continue
		}
		if desc, ok := t.reg.Get(changed); ok {
			t.columns[i].hooks = desc.Hooks
		}
	}
	t.refreshHookFlags()
}

// slotForID returns the position in typ and the column slot (-1 if a tag
// or absent) for id, via binary search since typ is sorted.
func (t *Table) slotForID(id ID) (typPos int, colSlot int, ok bool) {
	i := sort.Search(len(t.typ), func(i int) bool { return t.typ[i] >= id })
	if i >= len(t.typ) || t.typ[i] != id {
		return -1, -1, false
	}
	return i, t.colSlots[i], true
}

// Has reports whether id is part of this table's type (tag or data).
func (t *Table) Has(id ID) bool {
	_, _, ok := t.slotForID(id)
	return ok
}

// ColumnBytes returns the raw backing bytes for component id's column,
// row-major and packed with no padding between rows, or nil if id is a
// tag or absent from the table's type. Lets a caller outside this
// package reinterpret a whole column at once (e.g. as a typed slice via
// unsafe.Slice) without per-row pointer lookups.
func (t *Table) ColumnBytes(id ID) []byte {
	_, slot, ok := t.slotForID(id)
	if !ok || slot < 0 {
		return nil
	}
	return t.columns[slot].data
}

// Get returns a pointer to component id's data for row, or nil if id is
// absent from the type or is a tag (size-0 components never have a
// column to point into).
func (t *Table) Get(row int, id ID) unsafe.Pointer {
	_, slot, ok := t.slotForID(id)
	if !ok || slot < 0 {
		return nil
	}
	return t.columns[slot].ptrAt(row)
}

// Append adds entity as a brand-new row, running each column's Ctor hook
// (or zero-filling, on the fast path). Returns the new row index.
func (t *Table) Append(entity ID, rec *Record) int {
	return t.doAppend(entity, rec, true)
}

// appendRaw adds entity as a brand-new row without running any Ctor; used
// immediately before MoveRow fills the row in from a source table, so the
// merge logic in MoveRow is solely responsible for construction.
func (t *Table) appendRaw(entity ID, rec *Record) int {
	return t.doAppend(entity, rec, false)
}

func (t *Table) doAppend(entity ID, rec *Record, construct bool) int {
	row := len(t.entities)
	t.entities = append(t.entities, entity)
	t.records = append(t.records, rec)
	for i := range t.columns {
		beforeCap := cap(t.columns[i].data)
		t.columns[i].appendRow(construct)
		if cap(t.columns[i].data) != beforeCap {
			t.allocCount++
		}
	}
	t.dirty[0]++
	if rec != nil {
		rec.Table = t
		rec.Row = EncodeRow(row, false)
	}
	return row
}

// SetSize reserves underlying capacity for at least n rows across the
// table's entity/record slices and every data column, without changing the
// table's current Len() — a pure capacity reservation, not a row-creating
// operation (spec.md §4.B's set_size(n); contrast AppendN, which actually
// grows the row count).
func (t *Table) SetSize(n int) {
	if n <= 0 {
		return
	}
	if n > cap(t.entities) {
		grown := make([]ID, len(t.entities), n)
		copy(grown, t.entities)
		t.entities = grown

		grownRecs := make([]*Record, len(t.records), n)
		copy(grownRecs, t.records)
		t.records = grownRecs
	}
	for i := range t.columns {
		t.columns[i].reserve(n)
	}
}

// AppendN bulk-appends n new rows, running each column's Ctor hook per row
// (or zero-filling, on the fast path). ids supplies the entity id for each
// new row in order; rows beyond len(ids) get a zero entity id, for callers
// that only want pre-sized, not-yet-claimed storage (spec.md §4.B's
// appendn(n, ids?)). Returns the new rows' indices. Unlike SetSize, this
// changes Len(); the caller is responsible for pairing each returned row
// with its *Record in the entity index.
func (t *Table) AppendN(n int, ids []ID) []int {
	rows := make([]int, n)
	for i := 0; i < n; i++ {
		var id ID
		if i < len(ids) {
			id = ids[i]
		}
		rows[i] = t.doAppend(id, nil, true)
	}
	return rows
}

// DeleteRow removes row via swap-with-last. If destruct is true, the
// row's still-live component values are destructed via Dtor (or simply
// dropped on the fast path), except in a column with a Move hook when row
// is not the last row: there the last row's value is move-assigned over
// it and Dtor is not called. If destruct is false, the caller has already transferred
// ownership of the row's values elsewhere (e.g. via MoveRow) and the row
// must not be double-destructed — but the destination slot vacated by the
// swap must still be Ctor'd first if a Move hook is present, since the
// "last" row's value is about to be moved into it.
func (t *Table) DeleteRow(row int, destruct bool) {
	last := len(t.entities) - 1
	if last < 0 || row > last {
		return
	}
	t.entities[row] = t.entities[last]
	t.records[row] = t.records[last]
	if last != row {
		t.records[row].Row = EncodeRow(row, t.records[row].IsWatched())
	}

	for i := range t.columns {
		c := &t.columns[i]
		if last != row && c.hooks.Move != nil {
			if !destruct && c.hooks.Ctor != nil {
				c.hooks.Ctor(c.ptrAt(row), 1)
			}
			c.hooks.Move(c.ptrAt(row), c.ptrAt(last), 1)
		} else {
			if destruct && c.hooks.Dtor != nil {
				c.hooks.Dtor(c.ptrAt(row), 1)
			}
			if last != row {
				copyBytes(c.ptrAt(row), c.ptrAt(last), c.size)
			}
		}
		c.truncateTo(last)
	}
	t.entities = t.entities[:last]
	t.records = t.records[:last]
}

// MoveRow fills dst's dstRow (already allocated via appendRaw) from src's
// srcRow, merging the two sorted type lists per spec.md §4.B: shared
// components prefer Move when dstEntity == srcEntity (the row is the same
// logical entity transferring tables) and Copy otherwise; destination-only
// components are constructed; source-only components are destructed. It
// does not touch src's row count — the caller still owns deleting it
// (with destruct=false, since source values were just consumed here).
func MoveRow(dstEntity, srcEntity ID, dst *Table, dstRow int, src *Table, srcRow int) {
	i, j := 0, 0
	for i < len(dst.typ) && j < len(src.typ) {
		switch {
		case dst.typ[i] == src.typ[j]:
			moveShared(dstEntity, srcEntity, dst, dstRow, i, src, srcRow, j)
			i++
			j++
		case dst.typ[i] < src.typ[j]:
			constructDestOnly(dst, dstRow, i)
			i++
		default:
			destructSrcOnly(src, srcRow, j)
			j++
		}
	}
	for ; i < len(dst.typ); i++ {
		constructDestOnly(dst, dstRow, i)
	}
	for ; j < len(src.typ); j++ {
		destructSrcOnly(src, srcRow, j)
	}
}

func moveShared(dstEntity, srcEntity ID, dst *Table, dstRow, dstPos int, src *Table, srcRow, srcPos int) {
	dSlot, sSlot := dst.colSlots[dstPos], src.colSlots[srcPos]
	if dSlot < 0 || sSlot < 0 {
		return
	}
	dc, sc := &dst.columns[dSlot], &src.columns[sSlot]
	dstPtr, srcPtr := dc.ptrAt(dstRow), sc.ptrAt(srcRow)
	if dc.hooks.Ctor != nil {
		dc.hooks.Ctor(dstPtr, 1)
	}
	if dstEntity == srcEntity {
		if dc.hooks.Move != nil {
			dc.hooks.Move(dstPtr, srcPtr, 1)
			return
		}
	} else if dc.hooks.Copy != nil {
		dc.hooks.Copy(dstPtr, srcPtr, 1)
		return
	}
	copyBytes(dstPtr, srcPtr, dc.size)
}

func constructDestOnly(dst *Table, row, typPos int) {
	slot := dst.colSlots[typPos]
	if slot < 0 {
		return
	}
	c := &dst.columns[slot]
	if c.hooks.Ctor != nil {
		c.hooks.Ctor(c.ptrAt(row), 1)
	}
}

func destructSrcOnly(src *Table, row, typPos int) {
	slot := src.colSlots[typPos]
	if slot < 0 {
		return
	}
	c := &src.columns[slot]
	if c.hooks.Dtor != nil {
		c.hooks.Dtor(c.ptrAt(row), 1)
	}
}

// MoveEntity transfers entity from its row in src to a freshly appended
// row in dst, running lifecycle hooks via MoveRow, then removes the
// vacated row from src without re-destructing it. Returns the new row
// index in dst. This is the single entry point World uses for every
// add/remove archetype transition.
func MoveEntity(entity ID, rec *Record, dst *Table, src *Table, srcRow int) int {
	watched := rec.IsWatched()
	dstRow := dst.appendRaw(entity, rec)
	rec.SetWatched(watched)
	MoveRow(entity, entity, dst, dstRow, src, srcRow)
	src.DeleteRow(srcRow, false)
	return dstRow
}

// MarkDirty increments the dirty counter for component id's column, if
// present. A no-op for tags or absent ids.
func (t *Table) MarkDirty(id ID) {
	_, slot, ok := t.slotForID(id)
	if !ok || slot < 0 {
		return
	}
	t.dirty[slot+1]++
}

// AllocCount returns how many times any column has reallocated its
// backing buffer, letting downstream caches detect pointer staleness
// (spec.md §5's ordering guarantee).
func (t *Table) AllocCount() uint64 { return t.allocCount }
