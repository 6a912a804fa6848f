// Package pager owns the database file handle and the bounded array
// of in-memory page slots, and drives B+tree descent and split
// propagation on behalf of a table (spec §4.3).
package pager

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/markkurossi/tabulate"
	"github.com/pkg/errors"

	"vqlite/internal/cursor"
	"vqlite/internal/page"
)

// TableMaxPages bounds how many 4096-byte pages a single file-backed
// pager will address. It doubles as page.InvalidPageNum (spec §9).
const TableMaxPages = page.InvalidPageNum

// Errors surfaced by Pager operations.
var (
	ErrNonExistent     = errors.New("pager: page does not exist")
	ErrTableFull       = errors.New("pager: table full")
	ErrParentStackEmpty = errors.New("pager: parent stack empty during non-root split")
	ErrDuplicateKey    = errors.New("pager: duplicate key")
)

// Pager is the sole owner of the file handle and the page cache.
// It is shared file-wide by every table of one database (spec §9's
// resolution of the "num_pages is per-pager, should be per-file"
// inconsistency): page numbering and allocation are file-global, and
// each table only remembers which page number is its root.
type Pager struct {
	file     *os.File
	slots    [TableMaxPages]*page.Page
	dirty    [TableMaxPages]bool
	numPages uint32
	log      *slog.Logger
}

// Open opens (creating if necessary) the file at path and returns a
// Pager whose page count reflects the file's current size.
func Open(path string, log *slog.Logger) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "pager: open %q", path)
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "pager: stat %q", path)
	}
	if fi.Size()%page.Size != 0 {
		return nil, errors.Errorf("pager: %q size %d is not a multiple of page size %d", path, fi.Size(), page.Size)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pager{
		file:     f,
		numPages: uint32(fi.Size() / page.Size),
		log:      log,
	}, nil
}

// NumPages reports how many pages have been allocated so far.
func (p *Pager) NumPages() uint32 { return p.numPages }

// AllocatePage reserves the next page number. The caller is
// responsible for installing a page there (via Put) before the next
// flush.
func (p *Pager) AllocatePage() (uint32, error) {
	if p.numPages >= TableMaxPages {
		return 0, ErrTableFull
	}
	n := p.numPages
	p.numPages++
	return n, nil
}

// Get returns the page at pageNum, reading it from disk on a cache
// miss.
func (p *Pager) Get(pageNum uint32) (*page.Page, error) {
	if pageNum >= p.numPages {
		return nil, errors.Wrapf(ErrNonExistent, "page %d (num_pages=%d)", pageNum, p.numPages)
	}
	if p.slots[pageNum] != nil {
		return p.slots[pageNum], nil
	}

	buf := make([]byte, page.Size)
	off := int64(pageNum) * page.Size
	if _, err := p.file.Seek(off, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "pager: seek page %d", pageNum)
	}
	if _, err := io.ReadFull(p.file, buf); err != nil {
		return nil, errors.Wrapf(err, "pager: read page %d", pageNum)
	}
	pg, err := page.Load(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "pager: load page %d", pageNum)
	}
	p.log.Debug("page fault", "page", pageNum)
	p.slots[pageNum] = pg
	return pg, nil
}

// Put installs pg into its slot and marks it dirty for the next
// flush.
func (p *Pager) Put(pageNum uint32, pg *page.Page) {
	p.slots[pageNum] = pg
	p.dirty[pageNum] = true
}

// Flush writes the page at pageNum back to disk, if it is dirty.
func (p *Pager) Flush(pageNum uint32) error {
	pg := p.slots[pageNum]
	if pg == nil || !p.dirty[pageNum] {
		return nil
	}
	off := int64(pageNum) * page.Size
	if _, err := p.file.Seek(off, io.SeekStart); err != nil {
		return errors.Wrapf(err, "pager: seek page %d", pageNum)
	}
	image := pg.Dump()
	if _, err := p.file.Write(image[:]); err != nil {
		return errors.Wrapf(err, "pager: write page %d", pageNum)
	}
	p.dirty[pageNum] = false
	p.log.Debug("flush page", "page", pageNum)
	return nil
}

// FlushAll flushes every dirty populated slot.
func (p *Pager) FlushAll() error {
	for i := uint32(0); i < p.numPages; i++ {
		if err := p.Flush(i); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes all dirty pages and closes the file.
func (p *Pager) Close() error {
	if err := p.FlushAll(); err != nil {
		return err
	}
	return p.file.Close()
}

// LocateLeaf descends from c.PageNum to the leaf that should contain
// key, recording the interior pages visited on c's parent stack and
// c.SlotIndex to the position within the leaf returned by
// page.FindPartition. Returns ErrDuplicateKey if key is already
// present.
func LocateLeaf(p *Pager, c *cursor.Cursor, key uint64) error {
	for {
		pg, err := p.Get(c.PageNum)
		if err != nil {
			return err
		}
		if pg.Kind() == page.Leaf {
			idx, existing, found := pg.FindPartition(key)
			c.SlotIndex = idx
			c.ExistedKey = found && existing == key
			if c.ExistedKey {
				return errors.Wrapf(ErrDuplicateKey, "key %d", key)
			}
			return nil
		}
		c.PushParent(c.PageNum)
		next, err := pg.Route(key)
		if err != nil {
			return err
		}
		c.PageNum = next
	}
}

// Insert inserts (key, payload) at the page c.PageNum currently
// identifies, splitting and propagating up through ancestors as
// needed (spec §4.3). leftChild is page.InvalidPageNum for leaf-level
// record cells, or the left child of a routing cell being propagated
// into an interior parent by split.
//
// c must already be positioned at the page the insert belongs on
// (via LocateLeaf for a fresh leaf-level insert, or as built by split
// for a routing-cell propagation) with an accurate ancestor stack.
func Insert(p *Pager, c *cursor.Cursor, rootPageNum *uint32, key uint64, payload []byte, leftChild uint32) error {
	pg, err := p.Get(c.PageNum)
	if err != nil {
		return err
	}

	err = pg.Insert(key, payload, leftChild)
	if err == nil {
		p.Put(c.PageNum, pg)
		return p.Flush(c.PageNum)
	}
	if !errors.Is(err, page.ErrPageFull) {
		return err
	}

	leftNum, rightNum, leftLastKey, err := split(p, c, rootPageNum, pg, key)
	if err != nil {
		return err
	}

	// split leaves c's ancestor stack accurate for both halves (it
	// only ever adds one ancestor, the new root, on a root split);
	// retarget directly to whichever half key now belongs in and
	// retry, rather than redescending from the root. Spec §4.3 notes
	// this retry may itself split again; a payload that fits an empty
	// page guarantees the recursion terminates.
	if key <= leftLastKey {
		c.PageNum = leftNum
	} else {
		c.PageNum = rightNum
	}
	return Insert(p, c, rootPageNum, key, payload, leftChild)
}

// split handles one PageFull event on pg (reached by cursor c): it
// splits pg in two, propagates a routing entry into the parent (or
// creates a new root if pg was the root), and leaves the tree
// structurally consistent. It returns the left and right page
// numbers and the left half's last key so Insert can retarget c
// directly. c's own ancestor stack is left untouched, except that a
// root split pushes the new root onto it (the caller still owns
// c.PageNum and must update it to leftPageNum/rightPageNum itself).
func split(p *Pager, c *cursor.Cursor, rootPageNum *uint32, pg *page.Page, key uint64) (leftPageNum, rightPageNum uint32, leftLastKey uint64, err error) {
	if p.numPages >= TableMaxPages {
		return 0, 0, 0, ErrTableFull
	}

	left, right, err := pg.Split()
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "pager: split")
	}
	leftLastKey, err = left.MaxKey()
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "pager: split: left page unexpectedly empty")
	}

	isRootSplit := c.PageNum == *rootPageNum

	if isRootSplit {
		// The new root replaces the old root in place; the left half
		// of the split data needs a fresh page of its own.
		n, err := p.AllocatePage()
		if err != nil {
			return 0, 0, 0, err
		}
		leftPageNum = n
	} else {
		// The left half stays where the full page already lived.
		leftPageNum = c.PageNum
	}
	rightPageNum, err = p.AllocatePage()
	if err != nil {
		return 0, 0, 0, err
	}
	if isRootSplit && left.Kind() == page.Interior {
		// As on the non-root path below: the left half's last routing
		// cell becomes its right_pointer, keyed by leftLastKey in the
		// new root.
		if err := left.MoveLastLeftChildToRightPointer(); err != nil {
			return 0, 0, 0, errors.Wrap(err, "pager: split: collapsing left interior page")
		}
	}
	p.Put(leftPageNum, left)
	p.Put(rightPageNum, right)
	// Every page touched by a split is flushed before this operation
	// returns (spec §4.3), regardless of which half the retried
	// insert eventually lands on.
	if err := p.Flush(leftPageNum); err != nil {
		return 0, 0, 0, err
	}
	if err := p.Flush(rightPageNum); err != nil {
		return 0, 0, 0, err
	}

	if isRootSplit {
		newRoot := page.New(page.Interior)
		if err := newRoot.Insert(leftLastKey, nil, leftPageNum); err != nil {
			return 0, 0, 0, errors.Wrap(err, "pager: split: seeding new root")
		}
		newRoot.SetRightPointer(rightPageNum)
		p.Put(*rootPageNum, newRoot)
		if err := p.Flush(*rootPageNum); err != nil {
			return 0, 0, 0, err
		}
		c.PushParent(*rootPageNum)
		return leftPageNum, rightPageNum, leftLastKey, nil
	}

	ancestors := c.Parents()
	if len(ancestors) == 0 {
		return 0, 0, 0, ErrParentStackEmpty
	}
	parentNum := ancestors[len(ancestors)-1]
	parent, err := p.Get(parentNum)
	if err != nil {
		return 0, 0, 0, err
	}

	rightLastKey, err := right.MaxKey()
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "pager: split: right page unexpectedly empty")
	}
	idx, existing, found := parent.FindPartition(rightLastKey)
	if !found {
		parent.SetRightPointer(rightPageNum)
	} else {
		_ = existing
		existingCells, err := parent.Cells()
		if err != nil {
			return 0, 0, 0, err
		}
		if err := parent.UpdateSameSize(idx, existingCells[idx].Key, existingCells[idx].Payload, rightPageNum); err != nil {
			return 0, 0, 0, errors.Wrap(err, "pager: split: retargeting parent routing cell")
		}
	}
	p.Put(parentNum, parent)
	if err := p.Flush(parentNum); err != nil {
		return 0, 0, 0, err
	}

	// The routing cell (leftLastKey -> leftPageNum) belongs on
	// parentNum specifically, an interior page one level above pg -
	// not wherever a fresh leaf-targeted descent would land. Give it
	// a cursor already positioned there, with the ancestors above
	// parentNum (everything but its own entry), so a further cascade
	// pops the correct grandparent instead of guessing a level.
	parentCursor := &cursor.Cursor{PageNum: parentNum}
	parentCursor.SetParents(ancestors[:len(ancestors)-1])
	if err := Insert(p, parentCursor, rootPageNum, leftLastKey, nil, leftPageNum); err != nil {
		return 0, 0, 0, err
	}

	if left.Kind() == page.Interior {
		if err := left.MoveLastLeftChildToRightPointer(); err != nil {
			return 0, 0, 0, errors.Wrap(err, "pager: split: collapsing left interior page")
		}
		p.Put(leftPageNum, left)
		if err := p.Flush(leftPageNum); err != nil {
			return 0, 0, 0, err
		}
	}

	return leftPageNum, rightPageNum, leftLastKey, nil
}

// ScanTree walks the tree rooted at rootPageNum depth-first and
// returns every leaf row payload in ascending key order. Used for
// full-table scans (spec §4.5) once a file-wide page allocator is
// shared by more than one table (spec §9) rules out scanning the
// pager's whole slot array.
func (p *Pager) ScanTree(rootPageNum uint32) ([][]byte, error) {
	var rows [][]byte
	var walk func(pageNum uint32) error
	walk = func(pageNum uint32) error {
		pg, err := p.Get(pageNum)
		if err != nil {
			return err
		}
		if pg.Kind() == page.Leaf {
			leafRows, err := pg.Rows()
			if err != nil {
				return err
			}
			rows = append(rows, leafRows...)
			return nil
		}
		children, err := pg.Children()
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rootPageNum); err != nil {
		return nil, err
	}
	return rows, nil
}

// DebugTree renders a depth-first diagnostic view of the tree rooted
// at rootPageNum through a tabulate table: one row per page visited,
// in pre-order.
func (p *Pager) DebugTree(rootPageNum uint32) (string, error) {
	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("depth").SetAlign(tabulate.MR)
	tab.Header("page")
	tab.Header("kind")
	tab.Header("cells")
	tab.Header("keys")

	var walk func(pageNum uint32, depth int) error
	walk = func(pageNum uint32, depth int) error {
		pg, err := p.Get(pageNum)
		if err != nil {
			return err
		}
		cells, err := pg.Cells()
		if err != nil {
			return err
		}
		keys := make([]string, len(cells))
		for i, c := range cells {
			keys[i] = formatKey(c.Key)
		}
		row := tab.Row()
		row.Column(formatKey(uint64(depth)))
		row.Column(formatKey(uint64(pageNum)))
		row.Column(pg.Kind().String())
		row.Column(formatKey(uint64(len(cells))))
		row.Column(strings.Join(keys, ","))

		if pg.Kind() == page.Interior {
			children, err := pg.Children()
			if err != nil {
				return err
			}
			for _, child := range children {
				if err := walk(child, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(rootPageNum, 0); err != nil {
		return "", err
	}

	return tab.String(), nil
}

func formatKey(k uint64) string {
	return strconv.FormatUint(k, 10)
}
