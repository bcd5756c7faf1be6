// Package goarchive is a storage-only entity/component engine: an entity
// index, columnar archetype tables, and a table graph connecting them,
// with no query or scheduler runtime layered on top (spec.md §1's scope
// cut). World wires the storage packages together and exposes the
// external operation surface spec.md §6 lists.
package goarchive

import (
	"unsafe"

	"github.com/TheBitDrifter/goarchive/entityindex"
	"github.com/TheBitDrifter/goarchive/goarchiveerr"
	"github.com/TheBitDrifter/goarchive/graph"
	"github.com/TheBitDrifter/goarchive/host"
	"github.com/TheBitDrifter/goarchive/registry"
	"github.com/TheBitDrifter/goarchive/stage"
	"github.com/TheBitDrifter/goarchive/table"
)

// World owns every entity, table, and component descriptor in one
// storage universe. It is not safe for concurrent use without an
// external lock (spec.md §5: the core itself is single-threaded by
// design).
type World struct {
	host *host.Services

	ids   *entityindex.Index[table.Record]
	reg   *registry.Registry
	graph *graph.Graph
	stage stage.Queue

	// iterStage is the temporary stage spec.md §4.F describes: while
	// inProgress is true (an external iteration context is active, via
	// BeginIteration/EndIteration), structural ops route here instead of
	// into stage, so a caller mutating entities mid-iteration is deferred
	// the same way an explicit DeferBegin/DeferEnd caller is, without the
	// two mechanisms fighting over the same queue.
	iterStage  *stage.Queue
	inProgress bool

	scope Entity

	// Bootstrap ids, created once at construction in the fixed order
	// spec.md §6 requires so their numeric values are stable across
	// worlds built with the same Config.
	ComponentID Entity
	NameID      Entity
	DisabledID  Entity
	WildcardID  Entity
	ScopeID     Entity
}

// New constructs a World, bootstrapping its built-in ids.
func New(cfg Config) *World {
	cfg = cfg.withDefaults()
	w := &World{
		host: cfg.Host,
		ids:  entityindex.NewWithChunkSize[table.Record](cfg.EntityIndexChunkSize),
		reg:  registry.NewWithThreshold(cfg.ComponentIDThreshold),
	}
	w.graph = graph.New(w.reg)
	if cfg.InitialEntityCapacity > 0 {
		w.ids.Reserve(cfg.InitialEntityCapacity)
	}
	w.bootstrap()
	return w
}

// nameComponent backs the built-in Name component. Go strings need no
// manual memory management, but Name still carries every lifecycle hook
// (ctor zeroes, dtor clears, copy duplicates, move clears the source) as
// the first real exercise of the registry's hook-enforcement rules,
// matching the role flecs's own Name/EcsIdentifier component plays in
// its bootstrap sequence.
type nameComponent struct{ Value string }

// bootstrap creates the handful of built-in ids every world needs before
// user code runs, in the fixed order original_source/src/bootstrap.c
// establishes: a marker tag identifying "this entity describes a
// component" (the Go port's stand-in for flecs's EcsComponent; sizes and
// alignments live in registry descriptors, not as Component data), a Name
// component, a Disabled tag (designated via MarkDisabled), and Wildcard
// and Scope tags. The core registers Wildcard and Scope but never adds
// them to an entity or matches on them; NewEntity's scope token is
// Role(RoleScope, parent), not ScopeID.
func (w *World) bootstrap() {
	w.ComponentID = w.newIDInRoot()
	w.NameID = w.newIDInRoot()
	w.DisabledID = w.newIDInRoot()
	w.WildcardID = w.newIDInRoot()
	w.ScopeID = w.newIDInRoot()

	w.reg.Register(w.ComponentID, 0, 0)
	w.reg.Register(w.NameID, unsafe.Sizeof(nameComponent{}), unsafe.Alignof(nameComponent{}))
	w.reg.SetHooks(w.NameID, registry.Hooks{
		Ctor: func(ptr unsafe.Pointer, count int) {
			clear(unsafe.Slice((*nameComponent)(ptr), count))
		},
		Dtor: func(ptr unsafe.Pointer, count int) {
			clear(unsafe.Slice((*nameComponent)(ptr), count))
		},
		Copy: func(dst, src unsafe.Pointer, count int) {
			copy(unsafe.Slice((*nameComponent)(dst), count), unsafe.Slice((*nameComponent)(src), count))
		},
		Move: func(dst, src unsafe.Pointer, count int) {
			s := unsafe.Slice((*nameComponent)(src), count)
			copy(unsafe.Slice((*nameComponent)(dst), count), s)
			clear(s)
		},
	})
	w.reg.Register(w.DisabledID, 0, 0)
	w.reg.MarkDisabled(w.DisabledID)
	w.reg.Register(w.WildcardID, 0, 0)
	w.reg.Register(w.ScopeID, 0, 0)
}

// SetName attaches the built-in Name component to e, adding it first if
// absent.
func (w *World) SetName(e Entity, name string) error {
	val := nameComponent{Value: name}
	_, err := w.SetPtr(e, w.NameID, unsafe.Pointer(&val), unsafe.Sizeof(val))
	return err
}

// GetName returns e's Name component value, if any.
func (w *World) GetName(e Entity) (string, bool) {
	ptr, ok := w.Get(e, w.NameID)
	if !ok {
		return "", false
	}
	return (*nameComponent)(ptr).Value, true
}

func (w *World) newIDInRoot() Entity {
	id := w.ids.NewID()
	rec := w.ids.GetOrCreate(id)
	w.graph.Root().Append(id, rec)
	return id
}

// NewEntity allocates a fresh entity with no components (spec.md §6's
// new_id), placing it in the empty root table. If a scope is currently
// set (spec.md §4.F's set_scope), the new entity is immediately tagged
// with a Scope role token pointing at the scope entity, matching the
// "installs a Scope(p) role token onto every entity subsequently
// created" contract.
func (w *World) NewEntity() Entity {
	e := w.newIDInRoot()
	if w.scope != 0 {
		w.doAdd(e, Role(RoleScope, w.scope))
	}
	return e
}

// NewComponentID allocates a fresh id and registers its storage layout,
// for callers that manage component descriptors by hand rather than
// through the generic RegisterComponent helper (spec.md §6's
// new_component_id).
func (w *World) NewComponentID(size, align uintptr) Entity {
	id := w.newIDInRoot()
	w.reg.Register(id, size, align)
	return id
}

// SetLifecycle installs lifecycle hooks on a component id (spec.md §6's
// set_lifecycle). Returns InconsistentComponentAction if hooks were
// already installed and differ from the supplied set.
func (w *World) SetLifecycle(id Entity, hooks registry.Hooks) error {
	_, err := w.reg.SetHooks(id, hooks)
	return err
}

// IsAlive reports whether id currently refers to a live entity with a
// matching generation (spec.md §6's is_alive).
func (w *World) IsAlive(id Entity) bool { return w.ids.IsAlive(id) }

// Exists reports whether id's index has ever been paired, regardless of
// generation (spec.md §6's exists).
func (w *World) Exists(id Entity) bool { return w.ids.Exists(id) }

func (w *World) checkAlive(e Entity) error {
	if !w.ids.IsAlive(e) {
		w.host.Warn(map[string]any{"entity": e}, "operation attempted on a dead or unknown entity")
		return goarchiveerr.New(goarchiveerr.InvalidParameter, "entity is not alive").WithEntity(e)
	}
	return nil
}

// checkSetSize validates set_ptr's size argument against the component's
// registered descriptor (spec.md §7's InvalidParameter triggers: "size
// mismatch with registered component" and "operation on a non-component
// id"). An id that was never registered, or whose registered size
// disagrees with the caller's size argument, is rejected rather than
// silently writing the wrong number of bytes into (or past) a column.
func (w *World) checkSetSize(e Entity, id Entity, size uintptr) error {
	desc, ok := w.reg.Get(id)
	if !ok {
		w.host.Warn(map[string]any{"entity": e, "component": id}, "set_ptr called with an unregistered component id")
		return goarchiveerr.New(goarchiveerr.InvalidParameter, "component id is not registered").WithEntity(e).WithComponent(id)
	}
	if desc.Size != size {
		w.host.Warn(map[string]any{"entity": e, "component": id}, "set_ptr size does not match the component's registered size")
		return goarchiveerr.New(goarchiveerr.InvalidParameter, "size does not match the component's registered size").WithEntity(e).WithComponent(id)
	}
	return nil
}

// GetType returns entity e's current component type, sorted ascending.
// The returned slice must not be mutated (spec.md §6's get_type).
func (w *World) GetType(e Entity) ([]Entity, error) {
	rec := w.ids.Get(e)
	if rec == nil {
		return nil, goarchiveerr.New(goarchiveerr.InvalidParameter, "entity is not alive").WithEntity(e)
	}
	return rec.Table.Type(), nil
}

// Has reports whether entity e currently carries component id.
func (w *World) Has(e Entity, id Entity) bool {
	rec := w.ids.Get(e)
	if rec == nil {
		return false
	}
	return rec.Table.Has(id)
}

// getPtr returns a pointer to e's storage for component id, or nil if e
// is dead, id is absent, or id is a tag with no backing column.
func (w *World) getPtr(e Entity, id Entity) unsafe.Pointer {
	rec := w.ids.Get(e)
	if rec == nil {
		return nil
	}
	return rec.Table.Get(rec.RowIndex(), id)
}

// Get returns a pointer to entity e's component id data. The second
// return value is false if e is dead, doesn't carry id, or id is a tag
// with no backing column.
func (w *World) Get(e Entity, id Entity) (unsafe.Pointer, bool) {
	ptr := w.getPtr(e, id)
	return ptr, ptr != nil
}

// activeStage returns the stage queue structural ops should route through:
// the temporary iteration stage if an external iteration context is active
// (spec.md §4.F's in_progress / get_stage), otherwise the world's own
// explicit defer stage. Both mechanisms share this one lookup so Add,
// Remove, SetPtr, Clear, Delete, GetMut, and Modified never need to know
// which kind of deferral, if any, is in effect.
func (w *World) activeStage() *stage.Queue {
	if w.inProgress && w.iterStage != nil {
		return w.iterStage
	}
	return &w.stage
}

// GetMut returns a pointer to entity e's component id data, adding id
// first (running its Ctor, if any) if e doesn't already carry it.
// wasAdded reports whether this call performed that add (spec.md §6's
// get_mut). While deferred (explicit DeferBegin or an active iteration
// scope), adding an absent component is queued as OpMut instead of
// performed immediately — the returned pointer addresses a scratch buffer
// that replays into the real column via a move-assign once the stage
// flushes (spec.md §4.E: "Set and Mut re-execute as assign_ptr with
// move=true"), since moving e into a new table right now would be the
// uncontrolled structural change deferral exists to prevent.
func (w *World) GetMut(e Entity, id Entity) (ptr unsafe.Pointer, wasAdded bool) {
	rec := w.ids.Get(e)
	if rec == nil {
		return nil, false
	}
	if rec.Table.Has(id) {
		if w.Deferred() {
			w.activeStage().Append(stage.Op{Kind: stage.OpModified, Entity: e, Component: id})
		}
		return rec.Table.Get(rec.RowIndex(), id), false
	}
	if !w.Deferred() {
		w.doAdd(e, id)
		return rec.Table.Get(rec.RowIndex(), id), true
	}
	desc, ok := w.reg.Get(id)
	if !ok || desc.Size == 0 {
		w.activeStage().Append(stage.Op{Kind: stage.OpAdd, Entity: e, Component: id})
		return nil, true
	}
	buf := make([]byte, desc.Size)
	if desc.Hooks.Ctor != nil {
		desc.Hooks.Ctor(unsafe.Pointer(&buf[0]), 1)
	}
	w.activeStage().Append(stage.Op{
		Kind: stage.OpMut, Entity: e, Component: id,
		Data: setPayload{ptr: unsafe.Pointer(&buf[0]), size: desc.Size},
	})
	return unsafe.Pointer(&buf[0]), true
}

// Modified marks component id's column dirty for entity e's table,
// without changing the stored bytes itself (spec.md §6's modified, used
// after writing through a GetMut pointer directly). Queued the same way
// as Add while deferred, replaying in the same FIFO order as every other
// structural op against the entity.
func (w *World) Modified(e Entity, id Entity) {
	if w.Deferred() {
		w.activeStage().Append(stage.Op{Kind: stage.OpModified, Entity: e, Component: id})
		return
	}
	w.doModified(e, id)
}

func (w *World) doModified(e Entity, id Entity) {
	rec := w.ids.Get(e)
	if rec == nil {
		return
	}
	rec.Table.MarkDirty(id)
}

// Add attaches component id to entity e, transitioning it to the table
// reached by the graph's add edge. A no-op if e already carries id. When
// the world is deferred the operation is queued instead of applied
// immediately (spec.md §4.E).
func (w *World) Add(e Entity, id Entity) error {
	if err := w.checkAlive(e); err != nil {
		return err
	}
	if w.Deferred() {
		w.activeStage().Append(stage.Op{Kind: stage.OpAdd, Entity: e, Component: id})
		return nil
	}
	w.doAdd(e, id)
	return nil
}

func (w *World) doAdd(e Entity, id Entity) {
	rec := w.ids.Get(e)
	if rec == nil || rec.Table.Has(id) {
		return
	}
	src := rec.Table
	srcRow := rec.RowIndex()
	dst := w.graph.AddComponent(src, id)
	if dst == src {
		return
	}
	table.MoveEntity(e, rec, dst, src, srcRow)
}

// Remove detaches component id from entity e. A no-op if e doesn't carry
// id. Deferred the same way as Add.
func (w *World) Remove(e Entity, id Entity) error {
	if err := w.checkAlive(e); err != nil {
		return err
	}
	if w.Deferred() {
		w.activeStage().Append(stage.Op{Kind: stage.OpRemove, Entity: e, Component: id})
		return nil
	}
	w.doRemove(e, id)
	return nil
}

func (w *World) doRemove(e Entity, id Entity) {
	rec := w.ids.Get(e)
	if rec == nil || !rec.Table.Has(id) {
		return
	}
	src := rec.Table
	srcRow := rec.RowIndex()
	dst := w.graph.RemoveComponent(src, id)
	if dst == src {
		return
	}
	table.MoveEntity(e, rec, dst, src, srcRow)
}

type setPayload struct {
	ptr  unsafe.Pointer
	size uintptr
}

// SetPtr copies size bytes from src into entity e's storage for
// component id, adding id first if e doesn't already carry it. If e is 0,
// a fresh entity is allocated (immediately, even while deferred, since
// the queued op must reference a real id) and returned (spec.md §6's
// set_ptr). Deferred the same way as Add otherwise.
func (w *World) SetPtr(e Entity, id Entity, src unsafe.Pointer, size uintptr) (Entity, error) {
	if e == 0 {
		e = w.NewEntity()
	}
	if err := w.checkAlive(e); err != nil {
		return 0, err
	}
	if err := w.checkSetSize(e, id, size); err != nil {
		return 0, err
	}
	if w.Deferred() {
		var buf []byte
		if size > 0 {
			buf = make([]byte, size)
			copy(buf, unsafe.Slice((*byte)(src), size))
		}
		data := setPayload{size: size}
		if len(buf) > 0 {
			data.ptr = unsafe.Pointer(&buf[0])
		}
		w.activeStage().Append(stage.Op{Kind: stage.OpSet, Entity: e, Component: id, Data: data})
		return e, nil
	}
	w.doSetBytes(e, id, src, size)
	return e, nil
}

// doSetBytes copies size bytes from src into e's storage for id, adding id
// first if absent. Dispatches through the component's Copy hook when one is
// installed (spec.md §8 invariant 5: the stored value is "the result of
// copy(bytes)" when a copy hook exists, not always the raw bytes), falling
// back to a byte copy otherwise — the only path in the codebase where a
// Copy hook fires with a real destination/source pair, since MoveRow's
// Copy branch is only reached by a same-entity move, which always prefers
// Move instead.
func (w *World) doSetBytes(e Entity, id Entity, src unsafe.Pointer, size uintptr) {
	rec := w.ids.Get(e)
	if rec == nil {
		return
	}
	if !rec.Table.Has(id) {
		w.doAdd(e, id)
	}
	dst := rec.Table.Get(rec.RowIndex(), id)
	if dst == nil || src == nil || size == 0 {
		return
	}
	if desc, ok := w.reg.Get(id); ok && desc.Hooks.Copy != nil {
		desc.Hooks.Copy(dst, src, 1)
	} else {
		copy(unsafe.Slice((*byte)(dst), size), unsafe.Slice((*byte)(src), size))
	}
	rec.Table.MarkDirty(id)
}

// Clear removes every component from entity e, moving it back to the
// empty root table, without destroying the entity itself.
func (w *World) Clear(e Entity) error {
	if err := w.checkAlive(e); err != nil {
		return err
	}
	if w.Deferred() {
		w.activeStage().Append(stage.Op{Kind: stage.OpClear, Entity: e})
		return nil
	}
	w.doClear(e)
	return nil
}

func (w *World) doClear(e Entity) {
	rec := w.ids.Get(e)
	if rec == nil {
		return
	}
	root := w.graph.Root()
	if rec.Table == root {
		return
	}
	src := rec.Table
	srcRow := rec.RowIndex()
	table.MoveEntity(e, rec, root, src, srcRow)
}

// Delete destructs entity e's current row and releases its id for
// recycling (bumping its generation). Deferred the same way as Add; if a
// deferred batch contains other ops against e queued before its Delete,
// those earlier ops are discarded at flush time rather than applied to
// an entity that is about to stop existing (spec.md §4.E).
func (w *World) Delete(e Entity) error {
	if err := w.checkAlive(e); err != nil {
		return err
	}
	if w.Deferred() {
		w.activeStage().Append(stage.Op{Kind: stage.OpDelete, Entity: e})
		return nil
	}
	w.doDelete(e)
	return nil
}

func (w *World) doDelete(e Entity) {
	rec := w.ids.Get(e)
	if rec == nil {
		return
	}
	rec.Table.DeleteRow(rec.RowIndex(), true)
	w.ids.Remove(e)
}

// Dim pre-allocates the entity index's backing storage, and the root
// table's eventual columns, so the first n entities can be created
// without further chunk or column allocation (spec.md §6's dim).
func (w *World) Dim(n int) {
	w.ids.Reserve(n)
	w.graph.Root().SetSize(n)
}

// DeferBegin increases the world's explicit defer depth; while deferred,
// Add, Remove, SetPtr, Clear, Delete, GetMut, and Modified queue their
// operations instead of applying them immediately (spec.md §6's
// defer_begin / §4.E). Nests with an active iteration scope's implicit
// deferral (spec.md §4.F) — whichever started first is what DeferEnd and
// EndIteration each unwind in turn.
func (w *World) DeferBegin() {
	w.stage.Begin()
}

// DeferEnd decreases the explicit defer depth and, once it reaches zero,
// replays every op queued on the explicit stage in order (spec.md §6's
// defer_end).
func (w *World) DeferEnd() {
	w.stage.End(w.flush)
}

// BeginIteration marks the world as running under an external iteration
// context (spec.md §4.F's in_progress flag): structural ops against the
// world route to a temporary stage instead of applying immediately, the
// same protection DeferBegin gives an explicit caller, so code driving a
// query over the world's tables can safely Add/Remove/Delete without
// invalidating the iteration it's in the middle of. Returns
// InvalidOperation if an iteration scope is already active — iteration
// scopes do not nest.
func (w *World) BeginIteration() error {
	if w.inProgress {
		return goarchiveerr.New(goarchiveerr.InvalidOperation, "an iteration scope is already in progress")
	}
	w.iterStage = &stage.Queue{}
	w.iterStage.Begin()
	w.inProgress = true
	return nil
}

// EndIteration ends the iteration scope started by BeginIteration,
// replaying every op queued on the temporary stage in order, then
// discards it (spec.md §4.F's get_stage reverting to the main stage).
// Returns InvalidOperation if no iteration scope is active.
func (w *World) EndIteration() error {
	if !w.inProgress {
		return goarchiveerr.New(goarchiveerr.InvalidOperation, "no iteration scope is in progress")
	}
	w.iterStage.End(w.flush)
	w.inProgress = false
	w.iterStage = nil
	return nil
}

// Deferred reports whether the world is currently buffering structural
// operations, whether because of an explicit DeferBegin or because an
// iteration scope is active.
func (w *World) Deferred() bool { return w.stage.Deferred() || (w.inProgress && w.iterStage.Deferred()) }

func (w *World) flush(ops []stage.Op) {
	deleted := make(map[Entity]bool)
	for _, op := range ops {
		if op.Kind == stage.OpDelete {
			deleted[op.Entity] = true
		}
	}
	for _, op := range ops {
		if op.Kind != stage.OpDelete && deleted[op.Entity] {
			continue
		}
		switch op.Kind {
		case stage.OpAdd:
			w.doAdd(op.Entity, op.Component)
		case stage.OpRemove:
			w.doRemove(op.Entity, op.Component)
		case stage.OpSet:
			p := op.Data.(setPayload)
			w.doSetBytes(op.Entity, op.Component, p.ptr, p.size)
		case stage.OpClear:
			w.doClear(op.Entity)
		case stage.OpDelete:
			w.doDelete(op.Entity)
		case stage.OpMut:
			p, _ := op.Data.(setPayload)
			w.doAdd(op.Entity, op.Component)
			if p.ptr != nil {
				w.doAssignMove(op.Entity, op.Component, p.ptr, p.size)
			}
		case stage.OpModified:
			w.doModified(op.Entity, op.Component)
		}
	}
}

// doAssignMove replays a queued GetMut write: the component is already
// present on e (added by the OpMut case just before this runs), and src
// holds the scratch buffer GetMut handed the caller to write through.
// Move-assigns src into the real column via the component's Move hook if
// one is installed, falling back to a raw byte copy, matching "Set and
// Mut re-execute as assign_ptr with move=true" (spec.md §4.E).
func (w *World) doAssignMove(e Entity, id Entity, src unsafe.Pointer, size uintptr) {
	rec := w.ids.Get(e)
	if rec == nil {
		return
	}
	dst := rec.Table.Get(rec.RowIndex(), id)
	if dst == nil {
		return
	}
	if desc, ok := w.reg.Get(id); ok && desc.Hooks.Move != nil {
		desc.Hooks.Move(dst, src, 1)
	} else {
		copy(unsafe.Slice((*byte)(dst), size), unsafe.Slice((*byte)(src), size))
	}
	rec.Table.MarkDirty(id)
}

// SetScope sets the world's current default scope entity and returns the
// previous one (spec.md §6's set_scope). Pass 0 to clear the scope.
func (w *World) SetScope(e Entity) Entity {
	prev := w.scope
	w.scope = e
	return prev
}

// GetScope returns the world's current default scope entity, or 0 if
// none is set (spec.md §6's get_scope).
func (w *World) GetScope() Entity {
	return w.scope
}

// IsWatched reports whether entity e's current row is marked watched —
// observed by an external query — per spec.md §3's Record ("watched"
// sign bit) and §9's note that the core must keep this hook available
// for a downstream query runtime even though it never sets it itself.
func (w *World) IsWatched(e Entity) bool {
	rec := w.ids.Get(e)
	if rec == nil {
		return false
	}
	return rec.IsWatched()
}

// SetWatched marks or clears entity e's watched flag, preserving its
// current row index.
func (w *World) SetWatched(e Entity, watched bool) {
	rec := w.ids.Get(e)
	if rec == nil {
		return
	}
	rec.SetWatched(watched)
}

// Tables returns every table currently known to the world's graph.
func (w *World) Tables() []*table.Table {
	return w.graph.Tables()
}

// Fini tears down the world (spec.md §6's fini). Go's garbage collector
// reclaims every table, column, and index chunk once w is no longer
// referenced, so there's no explicit free to perform; Fini exists for
// parity with the operation surface and always returns 0.
func (w *World) Fini() int {
	return 0
}
