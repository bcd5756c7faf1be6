// Package registry implements the component registry spec.md §4.D
// describes: a two-tiered id → {size, alignment, lifecycle hooks} map,
// with a flat array for small ids and a hash map for the rest, and the
// InconsistentComponentAction enforcement rule for installing hooks.
//
// Grounded on the teacher's component.go (RegisterComponent[T],
// typeToID/idToType/componentSizes), generalized from a single flat array
// keyed by a compile-time generic id to the runtime, arbitrary-64-bit-id
// two-tier scheme the spec requires, and extended with lifecycle hooks
// the teacher's registry never carried.
package registry

import (
	"reflect"
	"unsafe"

	"github.com/kamstrup/intmap"

	"github.com/TheBitDrifter/goarchive/goarchiveerr"
)

// ID is a component id — always a full entity id in the owning world.
type ID = uint64

// HiComponentID is the threshold below which descriptors live in the flat
// array; at or above it they live in the hash map.
const HiComponentID = 256

// Hooks are the per-component lifecycle callbacks, operating on erased
// bytes exactly as spec.md §9 describes ("function pointers over erased
// bytes (ptr, size, count)"). Any of the four may be nil.
type Hooks struct {
	Ctor func(ptr unsafe.Pointer, count int)
	Dtor func(ptr unsafe.Pointer, count int)
	Copy func(dst, src unsafe.Pointer, count int)
	Move func(dst, src unsafe.Pointer, count int)
}

func (h Hooks) empty() bool {
	return h.Ctor == nil && h.Dtor == nil && h.Copy == nil && h.Move == nil
}

func sameHooks(a, b Hooks) bool {
	return funcEq(a.Ctor, b.Ctor) && funcEq(a.Dtor, b.Dtor) &&
		funcEq(a.Copy, b.Copy) && funcEq(a.Move, b.Move)
}

func funcEq[T any](a, b T) bool {
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if !av.IsValid() || !bv.IsValid() {
		return !av.IsValid() && !bv.IsValid()
	}
	if av.IsNil() != bv.IsNil() {
		return false
	}
	if av.IsNil() {
		return true
	}
	return av.Pointer() == bv.Pointer()
}

// Descriptor is what the registry knows about one component id.
type Descriptor struct {
	ID       ID
	Size     uintptr
	Align    uintptr
	Hooks    Hooks
	hasHooks bool
}

// HasHooks reports whether any lifecycle hook has been installed.
func (d *Descriptor) HasHooks() bool { return d.hasHooks }

// Registry is the two-tier component descriptor store.
type Registry struct {
	small     []*Descriptor // len == threshold
	threshold ID
	large     *intmap.Map[uint64, *Descriptor]
	// onChange is invoked with a component id whenever its descriptor's
	// hooks are (re)installed, so tables can refresh cached lifecycle
	// flags (spec.md §4.B's notify(ComponentInfoChanged)).
	onChange []func(id ID)
	// disabledMarker is the world's well-known Disabled tag id, if one
	// has been designated via MarkDisabled. Tables consult this at
	// construction to compute their per-table flags bitset (spec.md
	// §4.C: "initialize per-component flags ... the Disabled marker").
	disabledMarker ID
}

// New creates an empty Registry using the default HiComponentID threshold.
func New() *Registry {
	return NewWithThreshold(HiComponentID)
}

// NewWithThreshold creates an empty Registry whose flat-array tier covers
// ids below threshold instead of the package default HiComponentID. A
// threshold of 0 falls back to HiComponentID. Configurable per spec.md
// §4.D's "ids < HI_COMPONENT_ID (small constant, e.g. 256)" being an
// example value, not a fixed one — a world registering far more or
// fewer low-numbered built-in/user components can size the flat tier to
// match.
func NewWithThreshold(threshold ID) *Registry {
	if threshold == 0 {
		threshold = HiComponentID
	}
	return &Registry{
		small:     make([]*Descriptor, threshold),
		threshold: threshold,
		large:     intmap.New[uint64, *Descriptor](64),
	}
}

// Threshold returns the id boundary below which descriptors live in the
// flat array, for callers (e.g. table construction) that need to
// classify an id against this registry's configured split rather than
// the package default.
func (r *Registry) Threshold() ID { return r.threshold }

func (r *Registry) lookup(id ID) *Descriptor {
	if id < r.threshold {
		return r.small[id]
	}
	d, _ := r.large.Get(id)
	return d
}

func (r *Registry) store(id ID, d *Descriptor) {
	if id < r.threshold {
		r.small[id] = d
	} else {
		r.large.Put(id, d)
	}
}

// Get returns the descriptor for id, if registered.
func (r *Registry) Get(id ID) (*Descriptor, bool) {
	d := r.lookup(id)
	return d, d != nil
}

// MarkDisabled designates id as the world's well-known Disabled tag.
// Called once by World during bootstrap.
func (r *Registry) MarkDisabled(id ID) { r.disabledMarker = id }

// IsDisabledMarker reports whether id is the world's designated
// Disabled tag.
func (r *Registry) IsDisabledMarker(id ID) bool {
	return r.disabledMarker != 0 && id == r.disabledMarker
}

// OnChange registers a callback invoked after a component's descriptor
// changes (size/alignment registered, or hooks installed). Tables use
// this to keep their cached lifecycle-hook flags current.
func (r *Registry) OnChange(fn func(id ID)) {
	r.onChange = append(r.onChange, fn)
}

func (r *Registry) notify(id ID) {
	for _, fn := range r.onChange {
		fn(id)
	}
}

// Register stores (or updates) the size/alignment of a component id, and
// returns its descriptor. Calling Register again for an already-known id
// only updates size/alignment — it never clears previously installed
// hooks.
func (r *Registry) Register(id ID, size, align uintptr) *Descriptor {
	d := r.lookup(id)
	if d == nil {
		d = &Descriptor{ID: id}
		r.store(id, d)
	}
	d.Size = size
	d.Align = align
	r.notify(id)
	return d
}

// SetHooks installs lifecycle hooks for id. If id already has hooks
// installed, the new set must be identical (by function pointer) or this
// returns InconsistentComponentAction. If dtor/copy/move is supplied
// without a ctor, a zero-initializing ctor is substituted so later hooks
// never observe uninitialized memory (spec.md §4.D).
func (r *Registry) SetHooks(id ID, hooks Hooks) (*Descriptor, error) {
	if hooks.empty() {
		return nil, goarchiveerr.New(goarchiveerr.InvalidParameter, "set_lifecycle called with no hooks").WithComponent(id)
	}
	d := r.lookup(id)
	if d == nil {
		d = &Descriptor{ID: id}
		r.store(id, d)
	}
	if d.hasHooks {
		if !sameHooks(d.Hooks, hooks) {
			return nil, goarchiveerr.New(goarchiveerr.InconsistentComponentAction,
				"lifecycle hooks already installed and differ from the supplied set").WithComponent(id)
		}
		return d, nil
	}
	if hooks.Ctor == nil && (hooks.Dtor != nil || hooks.Copy != nil || hooks.Move != nil) {
		hooks.Ctor = func(ptr unsafe.Pointer, count int) {
			b := unsafe.Slice((*byte)(ptr), int(d.Size)*count)
			clear(b)
		}
	}
	d.Hooks = hooks
	d.hasHooks = true
	r.notify(id)
	return d, nil
}
