package concurrency

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"coredb/pkg/database"
	"coredb/pkg/repl"

	"github.com/google/uuid"
)

// TransactionREPL wraps the database REPL's commands with locking:
// every find/insert/update/delete acquires the resource lock needed
// under the client's running transaction before touching the table.
func TransactionREPL(db *database.Database, tm *TransactionManager) *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("create", func(payload string, c *repl.REPLConfig) (string, error) {
		return database.HandleCreateTable(db, payload)
	}, "Create a table. usage: create <btree|hash> table <table>")

	r.AddCommand("find", func(payload string, c *repl.REPLConfig) (string, error) {
		return HandleFind(db, tm, payload, c.GetAddr())
	}, "Find an element. usage: find <key> from <table>")

	r.AddCommand("insert", func(payload string, c *repl.REPLConfig) (string, error) {
		return "", HandleInsert(db, tm, payload, c.GetAddr())
	}, "Insert an element. usage: insert <key> <value> into <table>")

	r.AddCommand("update", func(payload string, c *repl.REPLConfig) (string, error) {
		return "", HandleUpdate(db, tm, payload, c.GetAddr())
	}, "Update an element. usage: update <table> <key> <value>")

	r.AddCommand("delete", func(payload string, c *repl.REPLConfig) (string, error) {
		return "", HandleDelete(db, tm, payload, c.GetAddr())
	}, "Delete an element. usage: delete <key> from <table>")

	r.AddCommand("select", func(payload string, c *repl.REPLConfig) (string, error) {
		return HandleSelect(db, payload)
	}, "Select elements from a table. usage: select from <table>")

	r.AddCommand("transaction", func(payload string, c *repl.REPLConfig) (string, error) {
		return "", HandleTransaction(tm, payload, c.GetAddr())
	}, "Handle transactions. usage: transaction <begin|commit>")

	r.AddCommand("lock", func(payload string, c *repl.REPLConfig) (string, error) {
		return "", HandleLock(db, tm, payload, c.GetAddr())
	}, "Grabs a write lock on a resource. usage: lock <table> <key>")

	r.AddCommand("pretty", func(payload string, c *repl.REPLConfig) (string, error) {
		return database.HandlePretty(db, payload)
	}, "Print out the internal data representation. usage: pretty <optional pagenumber> from <table>")

	return r
}

func HandleTransaction(tm *TransactionManager, payload string, clientID uuid.UUID) error {
	fields := strings.Fields(payload)
	if len(fields) != 2 || (fields[1] != "begin" && fields[1] != "commit") {
		return errors.New("usage: transaction <begin|commit>")
	}
	switch fields[1] {
	case "begin":
		return tm.Begin(clientID)
	case "commit":
		return tm.Commit(clientID)
	}
	return nil
}

func HandleFind(db *database.Database, tm *TransactionManager, payload string, clientID uuid.UUID) (string, error) {
	fields := strings.Fields(payload)
	if len(fields) != 4 || fields[2] != "from" {
		return "", errors.New("usage: find <key> from <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	table, err := db.GetTable(fields[3])
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	if err := tm.Lock(clientID, table, key, RLock); err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	return database.HandleFind(db, payload)
}

func HandleInsert(db *database.Database, tm *TransactionManager, payload string, clientID uuid.UUID) error {
	fields := strings.Fields(payload)
	if len(fields) != 5 || fields[3] != "into" {
		return errors.New("usage: insert <key> <value> into <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	table, err := db.GetTable(fields[4])
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	if err := tm.Lock(clientID, table, key, WLock); err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	return database.HandleInsert(db, payload)
}

func HandleUpdate(db *database.Database, tm *TransactionManager, payload string, clientID uuid.UUID) error {
	fields := strings.Fields(payload)
	if len(fields) != 4 {
		return errors.New("usage: update <table> <key> <value>")
	}
	key, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	table, err := db.GetTable(fields[1])
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	if err := tm.Lock(clientID, table, key, WLock); err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	return database.HandleUpdate(db, payload)
}

func HandleDelete(db *database.Database, tm *TransactionManager, payload string, clientID uuid.UUID) error {
	fields := strings.Fields(payload)
	if len(fields) != 4 || fields[2] != "from" {
		return errors.New("usage: delete <key> from <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	table, err := db.GetTable(fields[3])
	if err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	if err := tm.Lock(clientID, table, key, WLock); err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	return database.HandleDelete(db, payload)
}

// HandleSelect is unlocked: it may observe an inconsistent view under
// concurrent writers, same as the plain database REPL's select.
func HandleSelect(db *database.Database, payload string) (string, error) {
	return database.HandleSelect(db, payload)
}

func HandleLock(db *database.Database, tm *TransactionManager, payload string, clientID uuid.UUID) error {
	fields := strings.Fields(payload)
	if len(fields) != 3 {
		return errors.New("usage: lock <table> <key>")
	}
	table, err := db.GetTable(fields[1])
	if err != nil {
		return fmt.Errorf("lock error: %v", err)
	}
	key, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("lock error: %v", err)
	}
	return tm.Lock(clientID, table, key, WLock)
}
