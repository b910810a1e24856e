package database

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"coredb/pkg/repl"
)

// DatabaseRepl returns the plain (non-transactional) REPL for a
// database: every command runs and commits immediately.
func DatabaseRepl(db *Database) *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("create", func(payload string, _ *repl.REPLConfig) (string, error) {
		return HandleCreateTable(db, payload)
	}, "Create a table. usage: create <btree|hash> table <table>")

	r.AddCommand("find", func(payload string, _ *repl.REPLConfig) (string, error) {
		return HandleFind(db, payload)
	}, "Find an element. usage: find <key> from <table>")

	r.AddCommand("insert", func(payload string, _ *repl.REPLConfig) (string, error) {
		return "", HandleInsert(db, payload)
	}, "Insert an element. usage: insert <key> <value> into <table>")

	r.AddCommand("update", func(payload string, _ *repl.REPLConfig) (string, error) {
		return "", HandleUpdate(db, payload)
	}, "Update an element. usage: update <table> <key> <value>")

	r.AddCommand("delete", func(payload string, _ *repl.REPLConfig) (string, error) {
		return "", HandleDelete(db, payload)
	}, "Delete an element. usage: delete <key> from <table>")

	r.AddCommand("select", func(payload string, _ *repl.REPLConfig) (string, error) {
		return HandleSelect(db, payload)
	}, "Select elements from a table. usage: select from <table>")

	r.AddCommand("pretty", func(payload string, _ *repl.REPLConfig) (string, error) {
		return HandlePretty(db, payload)
	}, "Print out the internal data representation. usage: pretty <optional pagenumber> from <table>")

	return r
}

func HandleCreateTable(d *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	if len(fields) != 4 || fields[2] != "table" || (fields[1] != "btree" && fields[1] != "hash") {
		return "", errors.New("usage: create <btree|hash> table <table>")
	}
	var tableType IndexType
	switch fields[1] {
	case "btree":
		tableType = BTreeIndexType
	case "hash":
		tableType = HashIndexType
	}
	if _, err := d.CreateTable(fields[3], tableType); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s table %s created.\n", fields[1], fields[3]), nil
}

func HandleFind(d *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	if len(fields) != 4 || fields[2] != "from" {
		return "", errors.New("usage: find <key> from <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	table, err := d.GetTable(fields[3])
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	row, err := table.Find(key)
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	return fmt.Sprintf("found entry: (%d, %d)\n", row.Key, row.Value), nil
}

func HandleInsert(d *Database, payload string) error {
	fields := strings.Fields(payload)
	if len(fields) != 5 || fields[3] != "into" {
		return errors.New("usage: insert <key> <value> into <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	value, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	table, err := d.GetTable(fields[4])
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	if err := table.Insert(key, value); err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	return nil
}

func HandleUpdate(d *Database, payload string) error {
	fields := strings.Fields(payload)
	if len(fields) != 4 {
		return errors.New("usage: update <table> <key> <value>")
	}
	key, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	value, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	table, err := d.GetTable(fields[1])
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	if err := table.Update(key, value); err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	return nil
}

func HandleDelete(d *Database, payload string) error {
	fields := strings.Fields(payload)
	if len(fields) != 4 || fields[2] != "from" {
		return errors.New("usage: delete <key> from <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	table, err := d.GetTable(fields[3])
	if err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	if err := table.Delete(key); err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	return nil
}

func HandleSelect(d *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	if len(fields) != 3 || fields[1] != "from" {
		return "", errors.New("usage: select from <table>")
	}
	table, err := d.GetTable(fields[2])
	if err != nil {
		return "", fmt.Errorf("select error: %v", err)
	}
	rows, err := table.Select()
	if err != nil {
		return "", err
	}
	w := new(strings.Builder)
	printRows(rows, w)
	return w.String(), nil
}

func HandlePretty(d *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	w := new(strings.Builder)
	switch {
	case len(fields) == 3 && fields[1] == "from":
		table, err := d.GetTable(fields[2])
		if err != nil {
			return "", fmt.Errorf("pretty error: %v", err)
		}
		table.Print(w)
	case len(fields) == 4 && fields[2] == "from":
		pn, err := strconv.Atoi(fields[1])
		if err != nil {
			return "", fmt.Errorf("pretty error: %v", err)
		}
		table, err := d.GetTable(fields[3])
		if err != nil {
			return "", fmt.Errorf("pretty error: %v", err)
		}
		table.PrintPN(pn, w)
	default:
		return "", errors.New("usage: pretty <optional pagenumber> from <table>")
	}
	return w.String(), nil
}

func printRows(rows []Row, w io.Writer) {
	for _, r := range rows {
		fmt.Fprintf(w, "(%d, %d)\n", r.Key, r.Value)
	}
}
