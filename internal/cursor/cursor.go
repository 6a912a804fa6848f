// Package cursor implements the ephemeral (page, slot, parent-stack)
// value used to navigate and mutate a B+tree for a single operation
// (spec §4.4). A cursor is consumed by the operation that created it
// and must not be shared across concurrent operations.
package cursor

// Cursor identifies a position within one tree: the page currently
// being examined, the cell-pointer index within that page, and the
// stack of interior page numbers visited on the way down from the
// root (innermost ancestor last).
type Cursor struct {
	PageNum    uint32
	SlotIndex  int
	ExistedKey bool // true if SlotIndex addresses a cell whose key equals the search key
	parents    []uint32
}

// New returns a cursor positioned at rootPageNum with an empty parent
// stack, as required at the start of every descent (spec §4.3).
func New(rootPageNum uint32) *Cursor {
	return &Cursor{PageNum: rootPageNum}
}

// PushParent records the interior page just descended through.
func (c *Cursor) PushParent(pageNum uint32) {
	c.parents = append(c.parents, pageNum)
}

// PopParent removes and returns the most recently visited interior
// page number. ok is false if the stack is empty.
func (c *Cursor) PopParent() (pageNum uint32, ok bool) {
	if len(c.parents) == 0 {
		return 0, false
	}
	pageNum = c.parents[len(c.parents)-1]
	c.parents = c.parents[:len(c.parents)-1]
	return pageNum, true
}

// Depth reports how many ancestors are currently recorded.
func (c *Cursor) Depth() int { return len(c.parents) }

// Parents returns a copy of the ancestor stack, root-to-leaf order
// (innermost/nearest ancestor last).
func (c *Cursor) Parents() []uint32 {
	return append([]uint32(nil), c.parents...)
}

// SetParents replaces the ancestor stack wholesale with a copy of
// parents. Used when building a cursor for a page reached partway up
// an existing descent (spec §4.3's split propagation), whose ancestor
// stack is a prefix of the cursor that led to it.
func (c *Cursor) SetParents(parents []uint32) {
	c.parents = append([]uint32(nil), parents...)
}
