// Package graph implements the table graph spec.md §4.C describes: a
// content-addressed lattice of tables keyed by canonical sorted
// component-id sequences, reached either by walking cached add/remove
// edges from a known table or by a direct type → table lookup.
//
// Grounded on the teacher's world.go (the archetypes map plus
// addTransitions/removeTransitions), generalized from the teacher's
// fixed [4]uint64-bitmask archetype key to an arbitrary sorted []ID type,
// and given the secondary type→table hash index the spec calls for via
// xxhash/v2 type hashing into a kamstrup/intmap bucket map — grounded on
// other_examples/0cb9cb29_plus3-ooftn__ecs-archetype.go.go, which hashes
// a component-id set the same way to key its archetype lookup table.
package graph

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/kamstrup/intmap"

	"github.com/TheBitDrifter/goarchive/registry"
	"github.com/TheBitDrifter/goarchive/table"
)

// ID is a component id.
type ID = uint64

// node wraps a table with its cached graph edges. Edge maps are allocated
// lazily since most tables only ever gain a handful of neighbors.
type node struct {
	t           *table.Table
	addEdges    map[ID]*node
	removeEdges map[ID]*node
}

// Graph owns every table reachable from the empty root type, plus the
// secondary hash index used for direct type lookups that don't walk the
// edge cache (e.g. recreating a table for a type assembled in bulk).
type Graph struct {
	reg    *registry.Registry
	root   *node
	byHash *intmap.Map[uint64, []*node]
	byID   *intmap.Map[uint64, *node]
	nodes  []*node
	nextID uint64
}

// New builds a Graph rooted at the empty-type table.
func New(reg *registry.Registry) *Graph {
	g := &Graph{
		reg:    reg,
		byHash: intmap.New[uint64, []*node](256),
		byID:   intmap.New[uint64, *node](256),
	}
	g.root = g.newNode(nil)
	reg.OnChange(g.onComponentChanged)
	return g
}

// Root returns the empty-type table every entity starts in.
func (g *Graph) Root() *table.Table { return g.root.t }

func (g *Graph) onComponentChanged(id ID) {
	for _, n := range g.nodes {
		n.t.Notify(id)
	}
}

func hashType(typ []ID) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, id := range typ {
		binary.LittleEndian.PutUint64(buf[:], id)
		h.Write(buf[:])
	}
	return h.Sum64()
}

func typeEqual(a, b []ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (g *Graph) findByType(typ []ID) *node {
	bucket, _ := g.byHash.Get(hashType(typ))
	for _, n := range bucket {
		if typeEqual(n.t.Type(), typ) {
			return n
		}
	}
	return nil
}

func (g *Graph) newNode(typ []ID) *node {
	id := g.nextID
	g.nextID++
	n := &node{t: table.New(id, typ, g.reg)}
	h := hashType(typ)
	bucket, _ := g.byHash.Get(h)
	g.byHash.Put(h, append(bucket, n))
	g.byID.Put(id, n)
	g.nodes = append(g.nodes, n)
	return n
}

// insertSorted returns a new slice with id inserted into the sorted
// type, or the original slice (pos, false) if id is already present.
func insertSorted(typ []ID, id ID) (result []ID, pos int, inserted bool) {
	pos = 0
	for pos < len(typ) && typ[pos] < id {
		pos++
	}
	if pos < len(typ) && typ[pos] == id {
		return typ, pos, false
	}
	result = make([]ID, 0, len(typ)+1)
	result = append(result, typ[:pos]...)
	result = append(result, id)
	result = append(result, typ[pos:]...)
	return result, pos, true
}

func removeSorted(typ []ID, id ID) (result []ID, removed bool) {
	pos := -1
	for i, c := range typ {
		if c == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return typ, false
	}
	result = make([]ID, 0, len(typ)-1)
	result = append(result, typ[:pos]...)
	result = append(result, typ[pos+1:]...)
	return result, true
}

func (g *Graph) nodeFor(t *table.Table) *node {
	n, _ := g.byID.Get(t.ID())
	return n
}

// AddComponent returns the table reachable from t by adding id, walking
// (or populating) t's add-edge cache. If id is already part of t's type,
// t is returned unchanged.
func (g *Graph) AddComponent(t *table.Table, id ID) *table.Table {
	n := g.nodeFor(t)
	if n == nil {
		n = g.newNode(t.Type())
	}
	if cached, ok := n.addEdges[id]; ok {
		return cached.t
	}
	newTyp, _, inserted := insertSorted(t.Type(), id)
	if !inserted {
		return t
	}
	dst := g.findByType(newTyp)
	if dst == nil {
		dst = g.newNode(newTyp)
	}
	if n.addEdges == nil {
		n.addEdges = make(map[ID]*node)
	}
	n.addEdges[id] = dst
	if dst.removeEdges == nil {
		dst.removeEdges = make(map[ID]*node)
	}
	dst.removeEdges[id] = n
	return dst.t
}

// RemoveComponent returns the table reachable from t by removing id,
// walking (or populating) t's remove-edge cache. If id is absent from
// t's type, t is returned unchanged.
func (g *Graph) RemoveComponent(t *table.Table, id ID) *table.Table {
	n := g.nodeFor(t)
	if n == nil {
		n = g.newNode(t.Type())
	}
	if cached, ok := n.removeEdges[id]; ok {
		return cached.t
	}
	newTyp, removed := removeSorted(t.Type(), id)
	if !removed {
		return t
	}
	dst := g.findByType(newTyp)
	if dst == nil {
		dst = g.newNode(newTyp)
	}
	if n.removeEdges == nil {
		n.removeEdges = make(map[ID]*node)
	}
	n.removeEdges[id] = dst
	if dst.addEdges == nil {
		dst.addEdges = make(map[ID]*node)
	}
	dst.addEdges[id] = n
	return dst.t
}

// Lookup returns the table for the given canonical (sorted,
// de-duplicated) type, creating it if no table with that exact type
// exists yet. Used when the destination type is assembled wholesale
// (e.g. restoring a serialized entity) rather than reached one component
// at a time.
func (g *Graph) Lookup(typ []ID) *table.Table {
	if n := g.findByType(typ); n != nil {
		return n.t
	}
	return g.newNode(append([]ID(nil), typ...)).t
}

// Tables returns every table currently known to the graph, for
// diagnostics and iteration over the whole world.
func (g *Graph) Tables() []*table.Table {
	out := make([]*table.Table, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.t
	}
	return out
}

// TablesWithComponent returns every table whose type includes id. This
// is the raw enumeration primitive a query/system runtime would be built
// on top of; this module stops at the primitive (spec.md §1's scope cut
// excludes the matching engine itself).
func (g *Graph) TablesWithComponent(id ID) []*table.Table {
	var out []*table.Table
	for _, n := range g.nodes {
		if n.t.Has(id) {
			out = append(out, n.t)
		}
	}
	return out
}
