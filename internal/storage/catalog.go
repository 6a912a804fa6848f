package storage

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"

	"vqlite/internal/column"
	"vqlite/internal/page"
	"vqlite/internal/pager"
)

// catalogPageNum is reserved for the table-name -> root-page catalog.
// Spec §6 allows "no file header beyond page 0 itself"; this engine
// spends that one page on the catalog, exactly as the teacher's
// btree.go reserves page 0 for its own tree metadata.
const catalogPageNum = 0

// catalogKey is the single cell key the catalog page ever holds.
const catalogKey = 0

type catalogEntry struct {
	Name   string
	Root   uint32
	Schema column.Schema
}

func initCatalog(p *pager.Pager) error {
	n, err := p.AllocatePage()
	if err != nil {
		return err
	}
	if n != catalogPageNum {
		return errors.Errorf("storage: catalog page must be page %d, allocator gave %d", catalogPageNum, n)
	}
	p.Put(catalogPageNum, page.New(page.Leaf))
	return saveCatalog(p, nil)
}

func loadCatalog(p *pager.Pager) ([]catalogEntry, error) {
	pg, err := p.Get(catalogPageNum)
	if err != nil {
		return nil, errors.Wrap(err, "storage: load catalog page")
	}
	if pg.NumCells() == 0 {
		return nil, nil
	}
	cells, err := pg.Cells()
	if err != nil {
		return nil, errors.Wrap(err, "storage: read catalog cell")
	}
	var entries []catalogEntry
	dec := gob.NewDecoder(bytes.NewReader(cells[0].Payload))
	if err := dec.Decode(&entries); err != nil {
		return nil, errors.Wrap(err, "storage: decode catalog")
	}
	return entries, nil
}

func saveCatalog(p *pager.Pager, entries []catalogEntry) error {
	pg, err := p.Get(catalogPageNum)
	if err != nil {
		return errors.Wrap(err, "storage: load catalog page")
	}
	if pg.NumCells() > 0 {
		if err := pg.Delete(0); err != nil {
			return errors.Wrap(err, "storage: clear catalog cell")
		}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entries); err != nil {
		return errors.Wrap(err, "storage: encode catalog")
	}
	if err := pg.Insert(catalogKey, buf.Bytes(), page.InvalidPageNum); err != nil {
		return errors.Wrap(err, "storage: write catalog cell")
	}
	p.Put(catalogPageNum, pg)
	return p.Flush(catalogPageNum)
}
