// Package entityindex implements the versioned, chunked sparse set that
// backs the ECS entity index: a map from a packed (index, generation) id
// to a fixed-size payload, with O(1) amortized allocation, lookup, and
// recycling.
//
// The set is generic over the payload type so a single implementation
// serves both the world's entity-to-record map and any other caller that
// needs the same id-to-slot shape (the teacher's free-list recycling in
// world.go only ever handled one payload shape; this generalizes it).
package entityindex

// ChunkSize is the number of slots per sparse/payload chunk. Chunks are
// allocated once and never reallocated, so a pointer returned into a
// chunk's payload slot stays valid for the life of the Index — callers
// may hold it across further Index mutations (see the package doc on
// arenas in the root module's design notes).
const ChunkSize = 4096

const (
	indexMask    = 0xFFFFFFFF
	genShift     = 32
	genMask      = 0xFFFFFF
	maxGenValue  = genMask
)

// IndexOf extracts the low 32-bit index field from a packed id.
func IndexOf(id uint64) uint32 { return uint32(id & indexMask) }

// GenerationOf extracts the 24-bit generation field from a packed id.
func GenerationOf(id uint64) uint32 { return uint32((id >> genShift) & genMask) }

// Build packs an index and a generation into an id.
func Build(index uint32, generation uint32) uint64 {
	return uint64(index) | (uint64(generation&genMask) << genShift)
}

// Index is a versioned sparse set mapping packed ids to payload slots.
//
// dense[0] is a reserved sentinel; live ids occupy dense[1:count+1] and
// dead (recycled but currently unused) ids occupy dense[count+1:]. sparse
// and payload are chunked in parallel: sparse[chunk][offset] holds the
// dense position for the id at that index, or 0 if the index has never
// been paired.
type Index[P any] struct {
	dense     []uint64
	sparse    [][]uint32
	payload   [][]P
	count     int
	maxID     uint32
	chunkSize int
}

// New creates an empty Index using the default ChunkSize.
func New[P any]() *Index[P] {
	return NewWithChunkSize[P](ChunkSize)
}

// NewWithChunkSize creates an empty Index whose sparse/payload chunks hold
// chunkSize slots each, instead of the package default. A chunkSize <= 0
// falls back to ChunkSize. Configurable per spec.md §4.A's "chunks of
// 4096 slots each" being a tunable, not a hardwired constant — a world
// expecting many more or far fewer live entities than the default can
// size its chunking to match.
func NewWithChunkSize[P any](chunkSize int) *Index[P] {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}
	return &Index[P]{dense: []uint64{0}, chunkSize: chunkSize}
}

func (ix *Index[P]) chunkOffset(index uint32) (chunk int, offset int) {
	return int(index) / ix.chunkSize, int(index) % ix.chunkSize
}

// Reserve grows the index's backing chunks so that indices up to n-1 are
// addressable without further chunk allocation.
func (ix *Index[P]) Reserve(n int) {
	if n <= 0 {
		return
	}
	chunk, _ := ix.chunkOffset(uint32(n - 1))
	ix.ensureChunk(chunk)
}

func (ix *Index[P]) ensureChunk(chunk int) {
	for len(ix.sparse) <= chunk {
		ix.sparse = append(ix.sparse, make([]uint32, ix.chunkSize))
		ix.payload = append(ix.payload, make([]P, ix.chunkSize))
	}
}

func (ix *Index[P]) swap(i, j uint32) {
	if i == j {
		return
	}
	ix.dense[i], ix.dense[j] = ix.dense[j], ix.dense[i]
	ic, io := ix.chunkOffset(IndexOf(ix.dense[i]))
	jc, jo := ix.chunkOffset(IndexOf(ix.dense[j]))
	ix.sparse[ic][io] = i
	ix.sparse[jc][jo] = j
}

// NewID allocates a fresh id, recycling a previously deleted one (with a
// bumped generation already baked into its dense slot) when available.
func (ix *Index[P]) NewID() uint64 {
	if ix.count < len(ix.dense)-1 {
		ix.count++
		return ix.dense[ix.count]
	}
	ix.maxID++
	index := ix.maxID
	id := Build(index, 0)
	chunk, offset := ix.chunkOffset(index)
	ix.ensureChunk(chunk)
	pos := uint32(len(ix.dense))
	ix.dense = append(ix.dense, id)
	ix.sparse[chunk][offset] = pos
	ix.count++
	return id
}

// GetOrCreate pairs id with a payload slot if it isn't already paired,
// swapping it into the live range if it was paired but dead, and returns
// a stable pointer to its payload. The generation bits of the supplied id
// overwrite the slot's stored generation.
func (ix *Index[P]) GetOrCreate(id uint64) *P {
	index := IndexOf(id)
	chunk, offset := ix.chunkOffset(index)
	ix.ensureChunk(chunk)
	pos := ix.sparse[chunk][offset]
	if pos == 0 {
		pos = uint32(len(ix.dense))
		ix.dense = append(ix.dense, id)
		ix.sparse[chunk][offset] = pos
		if index > ix.maxID {
			ix.maxID = index
		}
	}
	live := uint32(ix.count) + 1
	if pos > uint32(ix.count) {
		ix.swap(pos, live)
		pos = live
		ix.count++
	}
	ix.dense[pos] = id
	return &ix.payload[chunk][offset]
}

// Get returns a pointer to id's payload only if id is paired and its
// generation matches the live slot; otherwise nil.
func (ix *Index[P]) Get(id uint64) *P {
	index := IndexOf(id)
	chunk, offset := ix.chunkOffset(index)
	if chunk >= len(ix.sparse) {
		return nil
	}
	pos := ix.sparse[chunk][offset]
	if pos == 0 || pos > uint32(ix.count) || ix.dense[pos] != id {
		return nil
	}
	return &ix.payload[chunk][offset]
}

// GetAny returns a pointer to id's payload ignoring generation and
// liveness, as long as the index has ever been paired. Used by teardown
// paths that must still reach a zombie's payload.
func (ix *Index[P]) GetAny(id uint64) *P {
	index := IndexOf(id)
	chunk, offset := ix.chunkOffset(index)
	if chunk >= len(ix.sparse) {
		return nil
	}
	if ix.sparse[chunk][offset] == 0 {
		return nil
	}
	return &ix.payload[chunk][offset]
}

// Remove bumps id's generation and moves it into the dead suffix. A
// subsequent Get with the old generation returns nil. No-op if id is not
// currently live with a matching generation.
func (ix *Index[P]) Remove(id uint64) {
	index := IndexOf(id)
	chunk, offset := ix.chunkOffset(index)
	if chunk >= len(ix.sparse) {
		return
	}
	pos := ix.sparse[chunk][offset]
	if pos == 0 || pos > uint32(ix.count) || ix.dense[pos] != id {
		return
	}
	nextGen := GenerationOf(id) + 1
	if nextGen > maxGenValue {
		nextGen = 0
	}
	ix.dense[pos] = Build(index, nextGen)
	ix.swap(pos, uint32(ix.count))
	ix.count--
	var zero P
	ix.payload[chunk][offset] = zero
}

// IsAlive reports whether id is paired, live, and generation-matched.
func (ix *Index[P]) IsAlive(id uint64) bool {
	index := IndexOf(id)
	chunk, offset := ix.chunkOffset(index)
	if chunk >= len(ix.sparse) {
		return false
	}
	pos := ix.sparse[chunk][offset]
	return pos != 0 && pos <= uint32(ix.count) && ix.dense[pos] == id
}

// Exists reports whether id's index has ever been paired, regardless of
// generation or liveness.
func (ix *Index[P]) Exists(id uint64) bool {
	index := IndexOf(id)
	chunk, offset := ix.chunkOffset(index)
	if chunk >= len(ix.sparse) {
		return false
	}
	return ix.sparse[chunk][offset] != 0
}

// Count returns the number of currently live ids.
func (ix *Index[P]) Count() int {
	return ix.count
}
