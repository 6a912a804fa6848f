package storage

import (
	"path/filepath"
	"testing"

	"vqlite/internal/column"
)

func newTempDB(t *testing.T) (*Database, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return db, path
}

func usersSchema() column.Schema {
	return column.Schema{
		{Name: "id", Type: column.Uint64},
		{Name: "age", Type: column.Int32},
		{Name: "name", Type: column.Varchar, MaxLen: 32},
	}
}

func TestCreateTableAndInsertSingleRow(t *testing.T) {
	db, _ := newTempDB(t)
	tbl, err := db.CreateTable("users", usersSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	if err := tbl.Insert(1, column.Row{uint64(1), int32(30), "ada"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rows, err := tbl.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0][2] != "ada" {
		t.Fatalf("rows[0][2] = %v, want ada", rows[0][2])
	}
}

func TestInsertReverseOrderScansAscendingByRowid(t *testing.T) {
	db, _ := newTempDB(t)
	tbl, err := db.CreateTable("users", usersSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	if err := tbl.Insert(2, column.Row{uint64(2), int32(40), "bob"}); err != nil {
		t.Fatalf("Insert(2): %v", err)
	}
	if err := tbl.Insert(1, column.Row{uint64(1), int32(30), "ada"}); err != nil {
		t.Fatalf("Insert(1): %v", err)
	}

	rows, err := tbl.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != 2 || rows[0][2] != "ada" || rows[1][2] != "bob" {
		t.Fatalf("scan out of order: %v", rows)
	}
}

func TestDuplicateRowidRejected(t *testing.T) {
	db, _ := newTempDB(t)
	tbl, err := db.CreateTable("users", usersSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := tbl.Insert(1, column.Row{uint64(1), int32(30), "ada"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tbl.Insert(1, column.Row{uint64(1), int32(99), "eve"}); err == nil {
		t.Fatal("expected an error inserting a duplicate rowid")
	}

	rows, err := tbl.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
}

func TestCreateTableRejectsDuplicateName(t *testing.T) {
	db, _ := newTempDB(t)
	if _, err := db.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := db.CreateTable("users", usersSchema()); err == nil {
		t.Fatal("expected an error creating a table that already exists")
	}
}

// TestManyInsertsSplitTreeAndScanStaysComplete drives enough inserts to
// split the leaf level repeatedly; it does not reach a second interior
// level (TableMaxPages=100 caps the tree before an interior page fills).
func TestManyInsertsSplitTreeAndScanStaysComplete(t *testing.T) {
	db, _ := newTempDB(t)
	tbl, err := db.CreateTable("users", usersSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	const n = 200
	for i := uint64(0); i < n; i++ {
		key := (i*37 + 11) % n
		row := column.Row{key, int32(key), "name"}
		if err := tbl.Insert(key, row); err != nil {
			t.Fatalf("Insert(%d): %v", key, err)
		}
	}

	rows, err := tbl.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != n {
		t.Fatalf("len(rows) = %d, want %d", len(rows), n)
	}
	var prev uint64
	for i, row := range rows {
		id := row[0].(uint64)
		if i > 0 && id <= prev {
			t.Fatalf("rows not in ascending order at %d: %d <= %d", i, id, prev)
		}
		prev = id
	}
}

func TestCatalogAndDataSurviveReopen(t *testing.T) {
	db, path := newTempDB(t)
	tbl, err := db.CreateTable("users", usersSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := tbl.Insert(1, column.Row{uint64(1), int32(30), "ada"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, ok := reopened.Table("users")
	if !ok {
		t.Fatal("users table missing after reopen")
	}
	rows, err := got.Scan()
	if err != nil {
		t.Fatalf("Scan after reopen: %v", err)
	}
	if len(rows) != 1 || rows[0][2] != "ada" {
		t.Fatalf("rows after reopen = %v", rows)
	}
}

func TestMultipleTablesShareFileWithoutCrossContamination(t *testing.T) {
	db, _ := newTempDB(t)
	users, err := db.CreateTable("users", usersSchema())
	if err != nil {
		t.Fatalf("CreateTable users: %v", err)
	}
	orders, err := db.CreateTable("orders", column.Schema{
		{Name: "id", Type: column.Uint64},
		{Name: "total", Type: column.Int32},
	})
	if err != nil {
		t.Fatalf("CreateTable orders: %v", err)
	}

	if err := users.Insert(1, column.Row{uint64(1), int32(30), "ada"}); err != nil {
		t.Fatalf("users.Insert: %v", err)
	}
	if err := orders.Insert(1, column.Row{uint64(1), int32(500)}); err != nil {
		t.Fatalf("orders.Insert: %v", err)
	}

	userRows, err := users.Scan()
	if err != nil {
		t.Fatalf("users.Scan: %v", err)
	}
	orderRows, err := orders.Scan()
	if err != nil {
		t.Fatalf("orders.Scan: %v", err)
	}
	if len(userRows) != 1 || len(orderRows) != 1 {
		t.Fatalf("got %d user rows, %d order rows, want 1 each", len(userRows), len(orderRows))
	}
	if userRows[0][2] != "ada" {
		t.Fatalf("users row corrupted: %v", userRows[0])
	}
	if orderRows[0][1] != int32(500) {
		t.Fatalf("orders row corrupted: %v", orderRows[0])
	}
}
