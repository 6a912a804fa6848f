package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/markkurossi/tabulate"

	"vqlite/internal/column"
	"vqlite/internal/storage"
)

// prepareStatement recognizes "insert <table> <rowid> <v1> <v2> ..."
// and "select <table>". The full tokenizer/parser/VM this would
// normally go through is out of scope (SPEC_FULL.md §9); this is the
// thin stand-in sufficient to drive internal/storage from a prompt.
func prepareStatement(input string, stmt *Statement) PrepareResult {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return PrepareUnrecognizedStatement
	}
	switch fields[0] {
	case "insert":
		if len(fields) < 3 {
			return PrepareSyntaxError
		}
		rowid, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return PrepareSyntaxError
		}
		stmt.Type = StatementInsert
		stmt.Table = fields[1]
		stmt.Rowid = rowid
		stmt.RawValues = fields[3:]
		return PrepareSuccess
	case "select":
		if len(fields) < 2 {
			return PrepareSyntaxError
		}
		stmt.Type = StatementSelect
		stmt.Table = fields[1]
		return PrepareSuccess
	default:
		return PrepareUnrecognizedStatement
	}
}

// convertValues parses stmt.RawValues against a table's layout into a
// typed column.Row.
func convertValues(layout *column.Layout, raw []string) (column.Row, error) {
	if len(raw) != len(layout.Fields) {
		return nil, fmt.Errorf("expected %d values for this table, got %d", len(layout.Fields), len(raw))
	}
	row := make(column.Row, len(raw))
	for i, f := range layout.Fields {
		switch f.Type {
		case column.Int32:
			v, err := strconv.ParseInt(raw[i], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", f.Name, err)
			}
			row[i] = int32(v)
		case column.Uint64:
			v, err := strconv.ParseUint(raw[i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", f.Name, err)
			}
			row[i] = v
		case column.Varchar:
			row[i] = raw[i]
		}
	}
	return row, nil
}

func executeStatement(stmt *Statement, db *storage.Database) error {
	tbl, ok := db.Table(stmt.Table)
	if !ok {
		return fmt.Errorf("no such table: %s", stmt.Table)
	}

	switch stmt.Type {
	case StatementInsert:
		row, err := convertValues(tbl.Layout(), stmt.RawValues)
		if err != nil {
			return err
		}
		return tbl.Insert(stmt.Rowid, row)

	case StatementSelect:
		rows, err := tbl.Scan()
		if err != nil {
			return err
		}
		printRows(tbl, rows)
	}
	return nil
}

func printRows(tbl *storage.Table, rows []column.Row) {
	tab := tabulate.New(tabulate.UnicodeLight)
	for _, f := range tbl.Layout().Fields {
		tab.Header(f.Name)
	}
	for _, r := range rows {
		row := tab.Row()
		for _, v := range r {
			row.Column(fmt.Sprintf("%v", v))
		}
	}
	tab.Print(os.Stdout)
}

// demoSchema seeds a "users" table the first time a fresh database
// file is opened, mirroring the teacher's hard-coded schema so the
// REPL has something to insert into and select from immediately.
func demoSchema() column.Schema {
	return column.Schema{
		{Name: "id", Type: column.Uint64},
		{Name: "age", Type: column.Int32},
		{Name: "name", Type: column.Varchar, MaxLen: 32},
	}
}

func main() {
	path := "vqlite.db"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	db, err := storage.Open(path, storage.Options{})
	if err != nil {
		fmt.Println("open database:", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, ok := db.Table("users"); !ok {
		if _, err := db.CreateTable("users", demoSchema()); err != nil {
			fmt.Println("create table users:", err)
			os.Exit(1)
		}
	}

	reader := bufio.NewReader(os.Stdin)
	var stmt Statement
	for {
		printPrompt()
		input, err := readInput(reader)
		if err != nil {
			return
		}
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, ".") {
			switch result, name, arg := handleMetaCommand(input); result {
			case MetaCommandSuccess:
				switch name {
				case ".exit":
					return
				case ".tables":
					for _, t := range db.TableNames() {
						fmt.Println(t)
					}
				case ".schema":
					t, ok := db.Table(arg)
					if !ok {
						fmt.Printf("no such table: %s\n", arg)
						continue
					}
					for _, f := range t.Layout().Fields {
						fmt.Printf("%s %s\n", f.Name, f.Type)
					}
				case ".scan":
					tree, err := db.DebugTree(arg)
					if err != nil {
						fmt.Println("error:", err)
						continue
					}
					fmt.Print(tree)
				}
			default:
				fmt.Printf("Unrecognized command %q.\n", input)
			}
			continue
		}

		switch prepareStatement(input, &stmt) {
		case PrepareSuccess:
			if err := executeStatement(&stmt, db); err != nil {
				fmt.Println("error:", err)
			}
		case PrepareSyntaxError:
			fmt.Println("syntax error.")
		case PrepareUnrecognizedStatement:
			fmt.Printf("Unrecognized keyword at start of %q.\n", input)
		}
	}
}
