package main

type StatementType int

const (
	StatementInsert StatementType = iota
	StatementSelect
)

// Statement is the parsed shape of one non-meta input line. The
// tokenizer/parser/VM this would normally go through are out of scope
// (SPEC_FULL.md §9); this struct is the thin stand-in that lets the
// REPL drive internal/storage end-to-end. RawValues are converted to
// typed column.Row values against the target table's layout at
// execution time, since prepareStatement has no schema to consult.
type Statement struct {
	Type      StatementType
	Table     string
	Rowid     uint64
	RawValues []string
}
