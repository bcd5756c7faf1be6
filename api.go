package goarchive

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/TheBitDrifter/goarchive/registry"
	"github.com/TheBitDrifter/goarchive/table"
)

// typeRegistry caches the component id assigned to each Go type the
// first time RegisterComponent[T] sees it, grounded on the teacher's
// component.go typeToID map — generalized from a package-global map
// keyed by a single process-wide registry to a per-World map, since a
// process may host more than one World.
type typeRegistry struct {
	mu  sync.Mutex
	ids map[reflect.Type]Entity
}

func (tr *typeRegistry) lookup(t reflect.Type) (Entity, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	id, ok := tr.ids[t]
	return id, ok
}

func (tr *typeRegistry) store(t reflect.Type, id Entity) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.ids == nil {
		tr.ids = make(map[reflect.Type]Entity)
	}
	tr.ids[t] = id
}

var worldTypeRegistries sync.Map // *World -> *typeRegistry

func typesFor(w *World) *typeRegistry {
	if v, ok := worldTypeRegistries.Load(w); ok {
		return v.(*typeRegistry)
	}
	tr := &typeRegistry{}
	actual, _ := worldTypeRegistries.LoadOrStore(w, tr)
	return actual.(*typeRegistry)
}

// RegisterComponent returns the component id associated with T in w,
// registering T's size and alignment the first time it's seen. Calling
// it again for the same T is a cheap cached lookup, matching the
// teacher's RegisterComponent[T] idiom.
func RegisterComponent[T any](w *World) Entity {
	var zero T
	rt := reflect.TypeOf(zero)
	tr := typesFor(w)
	if id, ok := tr.lookup(rt); ok {
		return id
	}
	var size, align uintptr
	if rt != nil {
		size = unsafe.Sizeof(zero)
		align = unsafe.Alignof(zero)
	}
	id := w.NewComponentID(size, align)
	tr.store(rt, id)
	return id
}

// SetLifecycleFor installs lifecycle hooks for component T, wrapping the
// raw unsafe.Pointer hooks World.SetLifecycle takes with typed Go
// functions operating over a slice of T. Any hook may be nil.
func SetLifecycleFor[T any](w *World, ctor, dtor, copyFn, moveFn func(dst []T, src []T)) error {
	id := RegisterComponent[T](w)
	var hooks registry.Hooks
	if ctor != nil {
		hooks.Ctor = func(ptr unsafe.Pointer, count int) {
			ctor(unsafe.Slice((*T)(ptr), count), nil)
		}
	}
	if dtor != nil {
		hooks.Dtor = func(ptr unsafe.Pointer, count int) {
			dtor(unsafe.Slice((*T)(ptr), count), nil)
		}
	}
	if copyFn != nil {
		hooks.Copy = func(dst, src unsafe.Pointer, count int) {
			copyFn(unsafe.Slice((*T)(dst), count), unsafe.Slice((*T)(src), count))
		}
	}
	if moveFn != nil {
		hooks.Move = func(dst, src unsafe.Pointer, count int) {
			moveFn(unsafe.Slice((*T)(dst), count), unsafe.Slice((*T)(src), count))
		}
	}
	return w.SetLifecycle(id, hooks)
}

// Get returns a pointer to entity e's T component, and false if e is
// dead, doesn't carry T, or T is zero-sized (a tag has no storage).
func Get[T any](w *World, e Entity) (*T, bool) {
	id := RegisterComponent[T](w)
	ptr, ok := w.Get(e, id)
	if !ok {
		return nil, false
	}
	return (*T)(ptr), true
}

// GetMut returns a pointer to entity e's T component, adding T first
// (running its Ctor, if any) if e doesn't already carry it. wasAdded
// reports whether this call performed that add.
func GetMut[T any](w *World, e Entity) (ptr *T, wasAdded bool) {
	id := RegisterComponent[T](w)
	raw, added := w.GetMut(e, id)
	return (*T)(raw), added
}

// Set attaches T to entity e if absent and copies value into its
// storage, registering T as a component on first use. If e is 0 a fresh
// entity is allocated and returned.
func Set[T any](w *World, e Entity, value T) (Entity, error) {
	id := RegisterComponent[T](w)
	return w.SetPtr(e, id, unsafe.Pointer(&value), unsafe.Sizeof(value))
}

// Add attaches T to entity e without writing a value, useful for tags
// (zero-sized T) or to rely on T's Ctor hook to initialize storage.
func Add[T any](w *World, e Entity) error {
	id := RegisterComponent[T](w)
	return w.Add(e, id)
}

// Remove detaches T from entity e.
func Remove[T any](w *World, e Entity) error {
	id := RegisterComponent[T](w)
	return w.Remove(e, id)
}

// Has reports whether entity e currently carries T.
func Has[T any](w *World, e Entity) bool {
	id := RegisterComponent[T](w)
	return w.Has(e, id)
}

// Column reinterprets table t's backing storage for component T as a
// []T, row-aligned with t.Entities(). Returns nil if t doesn't carry T.
// This is the dense columnar access a query/system runtime would build
// iteration on top of; this module exposes only the primitive.
func Column[T any](w *World, t *table.Table) []T {
	id := RegisterComponent[T](w)
	raw := t.ColumnBytes(id)
	if len(raw) == 0 {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), len(raw)/size)
}

// TablesWithComponent returns every table in w currently carrying
// component T.
func TablesWithComponent[T any](w *World) []*table.Table {
	id := RegisterComponent[T](w)
	return w.graph.TablesWithComponent(id)
}
