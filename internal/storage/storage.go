// Package storage is the table/database façade over the pager and
// B+tree packages: a catalog page naming every table's schema and
// root page, plus row encode/decode through internal/column (spec §4.5).
package storage

import (
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"vqlite/internal/column"
	"vqlite/internal/cursor"
	"vqlite/internal/page"
	"vqlite/internal/pager"
)

// Options configures Open, mirroring the teacher's single-argument
// pager.OpenPager(path) but extended for the choices spec §6 leaves
// to the caller ("truncation is optional").
type Options struct {
	// Truncate discards any existing file at path before opening,
	// starting from an empty catalog.
	Truncate bool
	// Log receives pager page-fault/flush diagnostics. Defaults to a
	// discarding logger when nil.
	Log *slog.Logger
}

// Database is one open file: the shared pager every table's Insert
// and Scan descend through, and the catalog mapping table names to
// their root page and schema.
type Database struct {
	pager  *pager.Pager
	tables map[string]*Table
}

// Open opens (or creates) the database file at path and loads its
// catalog.
func Open(path string, opts Options) (*Database, error) {
	if opts.Truncate {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "storage: truncate %q", path)
		}
	}

	p, err := pager.Open(path, opts.Log)
	if err != nil {
		return nil, err
	}

	db := &Database{pager: p, tables: map[string]*Table{}}

	if p.NumPages() == 0 {
		if err := initCatalog(p); err != nil {
			return nil, err
		}
		return db, nil
	}

	entries, err := loadCatalog(p)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		layout, err := column.Resolve(e.Schema)
		if err != nil {
			return nil, errors.Wrapf(err, "storage: table %q has an invalid stored schema", e.Name)
		}
		db.tables[e.Name] = &Table{db: db, name: e.Name, root: e.Root, layout: layout}
	}
	return db, nil
}

// CreateTable allocates a fresh root page for a new table, persists
// it in the catalog, and returns a handle to it.
func (db *Database) CreateTable(name string, schema column.Schema) (*Table, error) {
	if _, exists := db.tables[name]; exists {
		return nil, errors.Errorf("storage: table %q already exists", name)
	}
	layout, err := column.Resolve(schema)
	if err != nil {
		return nil, err
	}

	root, err := db.pager.AllocatePage()
	if err != nil {
		return nil, err
	}
	db.pager.Put(root, page.New(page.Leaf))
	if err := db.pager.Flush(root); err != nil {
		return nil, err
	}

	entries, err := loadCatalog(db.pager)
	if err != nil {
		return nil, err
	}
	entries = append(entries, catalogEntry{Name: name, Root: root, Schema: schema})
	if err := saveCatalog(db.pager, entries); err != nil {
		return nil, err
	}

	t := &Table{db: db, name: name, root: root, layout: layout}
	db.tables[name] = t
	return t, nil
}

// Table looks up an already-created table by name.
func (db *Database) Table(name string) (*Table, bool) {
	t, ok := db.tables[name]
	return t, ok
}

// TableNames lists every table currently in the catalog.
func (db *Database) TableNames() []string {
	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	return names
}

// DebugTree renders a diagnostic view of one table's tree (spec §4.3
// "Tree printing").
func (db *Database) DebugTree(name string) (string, error) {
	t, ok := db.tables[name]
	if !ok {
		return "", errors.Errorf("storage: table %q does not exist", name)
	}
	return db.pager.DebugTree(t.root)
}

// Close flushes every dirty page and closes the underlying file.
func (db *Database) Close() error {
	return db.pager.Close()
}

// Table is one named table: a row layout and the root page of its
// B+tree within the shared database file.
type Table struct {
	db     *Database
	name   string
	root   uint32
	layout *column.Layout
}

// Name returns the table's name.
func (t *Table) Name() string { return t.name }

// Layout returns the table's resolved row layout.
func (t *Table) Layout() *column.Layout { return t.layout }

// Insert serializes row and inserts it keyed by rowid, splitting and
// propagating up the tree as needed (spec §4.3, §4.5).
func (t *Table) Insert(rowid uint64, row column.Row) error {
	payload, err := column.Encode(t.layout, row)
	if err != nil {
		return err
	}

	c := cursor.New(t.root)
	if err := pager.LocateLeaf(t.db.pager, c, rowid); err != nil {
		return errors.Wrapf(err, "storage: table %q insert rowid %d", t.name, rowid)
	}
	return pager.Insert(t.db.pager, c, &t.root, rowid, payload, page.InvalidPageNum)
}

// Scan returns every row in the table in ascending rowid order (spec
// §4.5's full-table scan, resolved via pager.ScanTree per SPEC_FULL §7).
func (t *Table) Scan() ([]column.Row, error) {
	raw, err := t.db.pager.ScanTree(t.root)
	if err != nil {
		return nil, errors.Wrapf(err, "storage: table %q scan", t.name)
	}
	rows := make([]column.Row, len(raw))
	for i, buf := range raw {
		row, err := column.Decode(t.layout, buf)
		if err != nil {
			return nil, errors.Wrapf(err, "storage: table %q decode row %d", t.name, i)
		}
		rows[i] = row
	}
	return rows, nil
}
