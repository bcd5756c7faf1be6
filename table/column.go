package table

import (
	"unsafe"

	"github.com/TheBitDrifter/goarchive/registry"
)

// column is one data-bearing component's backing storage: a growable byte
// buffer laid out as a packed array of fixed-size elements, one per row.
type column struct {
	id    ID
	size  uintptr
	align uintptr
	hooks registry.Hooks
	data  []byte
}

func (c *column) rowCount() int {
	if c.size == 0 {
		return 0
	}
	return len(c.data) / int(c.size)
}

func (c *column) ptrAt(row int) unsafe.Pointer {
	return unsafe.Pointer(&c.data[row*int(c.size)])
}

func copyBytes(dst, src unsafe.Pointer, size uintptr) {
	if size == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), size), unsafe.Slice((*byte)(src), size))
}

func growCap(oldCap, needed int) int {
	doubled := oldCap * 2
	if doubled > needed {
		return doubled
	}
	return needed
}

// appendRow grows the column by one row. When construct is true and the
// column has a Ctor hook, the new row is constructed; if growth requires
// reallocation and a Move hook is present, every existing row is moved
// into the fresh buffer via that hook rather than a raw copy (spec.md
// §4.B's append contract).
func (c *column) appendRow(construct bool) {
	count := c.rowCount() + 1
	needed := count * int(c.size)
	if needed <= cap(c.data) {
		c.data = c.data[:needed]
		clear(c.data[needed-int(c.size):])
		if construct && c.hooks.Ctor != nil {
			c.hooks.Ctor(c.ptrAt(count-1), 1)
		}
		return
	}

	newCap := growCap(cap(c.data), needed)
	newData := make([]byte, needed, newCap)
	oldLen := len(c.data)

	if oldLen > 0 {
		if c.hooks.Move != nil {
			if c.hooks.Ctor != nil {
				c.hooks.Ctor(unsafe.Pointer(&newData[0]), count-1)
			}
			c.hooks.Move(unsafe.Pointer(&newData[0]), unsafe.Pointer(&c.data[0]), count-1)
		} else {
			copy(newData[:oldLen], c.data)
		}
	}
	c.data = newData
	if construct && c.hooks.Ctor != nil {
		c.hooks.Ctor(c.ptrAt(count-1), 1)
	}
}

// truncateTo shrinks the column to n rows without running any hook; used
// after a row's bytes have already been moved or destructed elsewhere.
func (c *column) truncateTo(n int) {
	c.data = c.data[:n*int(c.size)]
}

// reserve grows the column's backing buffer capacity to fit at least rows
// rows without changing its current length or running any hook (table
// set_size's pure capacity reservation, spec.md §4.B).
func (c *column) reserve(rows int) {
	if c.size == 0 {
		return
	}
	needed := rows * int(c.size)
	if needed <= cap(c.data) {
		return
	}
	newData := make([]byte, len(c.data), needed)
	copy(newData, c.data)
	c.data = newData
}
