package recovery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"coredb/pkg/concurrency"
	"coredb/pkg/database"
	"coredb/pkg/repl"

	"github.com/google/uuid"
)

// RecoveryREPL layers write-ahead logging and transaction lifecycle
// commands (transaction, checkpoint, abort, crash) on top of the
// concurrency REPL's locking.
func RecoveryREPL(db *database.Database, tm *concurrency.TransactionManager, rm *RecoveryManager) *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("create", func(payload string, c *repl.REPLConfig) (string, error) {
		return HandleCreateTable(db, rm, payload)
	}, "Create a table. usage: create <btree|hash> table <table>")

	r.AddCommand("find", func(payload string, c *repl.REPLConfig) (string, error) {
		return concurrency.HandleFind(db, tm, payload, c.GetAddr())
	}, "Find an element. usage: find <key> from <table>")

	r.AddCommand("insert", func(payload string, c *repl.REPLConfig) (string, error) {
		return "", HandleInsert(db, tm, rm, payload, c.GetAddr())
	}, "Insert an element. usage: insert <key> <value> into <table>")

	r.AddCommand("update", func(payload string, c *repl.REPLConfig) (string, error) {
		return "", HandleUpdate(db, tm, rm, payload, c.GetAddr())
	}, "Update an element. usage: update <table> <key> <value>")

	r.AddCommand("delete", func(payload string, c *repl.REPLConfig) (string, error) {
		return "", HandleDelete(db, tm, rm, payload, c.GetAddr())
	}, "Delete an element. usage: delete <key> from <table>")

	r.AddCommand("select", func(payload string, c *repl.REPLConfig) (string, error) {
		return database.HandleSelect(db, payload)
	}, "Select elements from a table. usage: select from <table>")

	r.AddCommand("transaction", func(payload string, c *repl.REPLConfig) (string, error) {
		return "", HandleTransaction(tm, rm, payload, c.GetAddr())
	}, "Handle transactions. usage: transaction <begin|commit>")

	r.AddCommand("lock", func(payload string, c *repl.REPLConfig) (string, error) {
		return "", concurrency.HandleLock(db, tm, payload, c.GetAddr())
	}, "Grabs a write lock on a resource. usage: lock <table> <key>")

	r.AddCommand("checkpoint", func(payload string, c *repl.REPLConfig) (string, error) {
		return "", HandleCheckpoint(rm, payload)
	}, "Saves a checkpoint of the current database state and running transactions. usage: checkpoint")

	r.AddCommand("abort", func(payload string, c *repl.REPLConfig) (string, error) {
		return "", HandleAbort(tm, rm, payload, c.GetAddr())
	}, "Roll back the current transaction. usage: abort")

	r.AddCommand("crash", func(payload string, c *repl.REPLConfig) (string, error) {
		return "", HandleCrash(payload)
	}, "Crash the database. usage: crash")

	r.AddCommand("pretty", func(payload string, c *repl.REPLConfig) (string, error) {
		return database.HandlePretty(db, payload)
	}, "Print out the internal data representation. usage: pretty <optional pagenumber> from <table>")

	return r
}

func HandleTransaction(tm *concurrency.TransactionManager, rm *RecoveryManager, payload string, clientID uuid.UUID) error {
	fields := strings.Fields(payload)
	if len(fields) != 2 || (fields[1] != "begin" && fields[1] != "commit") {
		return errors.New("usage: transaction <begin|commit>")
	}
	var err error
	switch fields[1] {
	case "begin":
		if err = rm.Start(clientID); err != nil {
			return err
		}
		err = tm.Begin(clientID)
	case "commit":
		if err = rm.Commit(clientID); err != nil {
			return err
		}
		err = tm.Commit(clientID)
	}
	if err != nil {
		if rberr := rm.Rollback(clientID); rberr != nil {
			return rberr
		}
	}
	return err
}

func HandleCreateTable(db *database.Database, rm *RecoveryManager, payload string) (string, error) {
	fields := strings.Fields(payload)
	if len(fields) != 4 || fields[2] != "table" || (fields[1] != "btree" && fields[1] != "hash") {
		return "", errors.New("usage: create <btree|hash> table <table>")
	}
	if err := rm.Table(fields[1], fields[3]); err != nil {
		return "", err
	}
	return database.HandleCreateTable(db, payload)
}

func HandleInsert(db *database.Database, tm *concurrency.TransactionManager, rm *RecoveryManager, payload string, clientID uuid.UUID) error {
	fields := strings.Fields(payload)
	if len(fields) != 5 || fields[3] != "into" {
		return errors.New("usage: insert <key> <value> into <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	newval, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	table, err := db.GetTable(fields[4])
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	if _, err := table.Find(key); err == nil {
		return errors.New("insert error: key already exists")
	}
	if err := rm.Edit(clientID, table, InsertAction, key, 0, newval); err != nil {
		return err
	}
	if err := concurrency.HandleInsert(db, tm, payload, clientID); err != nil {
		if ederr := rm.Edit(clientID, table, DeleteAction, key, newval, 0); ederr != nil {
			return fmt.Errorf("error marking insert as no-op: %w", ederr)
		}
		stack := rm.txStack[clientID]
		rm.txStack[clientID] = stack[:len(stack)-2]
		if rberr := rm.Rollback(clientID); rberr != nil {
			return rberr
		}
	}
	return err
}

func HandleUpdate(db *database.Database, tm *concurrency.TransactionManager, rm *RecoveryManager, payload string, clientID uuid.UUID) error {
	fields := strings.Fields(payload)
	if len(fields) != 4 {
		return errors.New("usage: update <table> <key> <value>")
	}
	key, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	newval, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	table, err := db.GetTable(fields[1])
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	oldrow, err := table.Find(key)
	if err != nil {
		return errors.New("update error: key doesn't exist")
	}
	if err := rm.Edit(clientID, table, UpdateAction, key, oldrow.Value, newval); err != nil {
		return err
	}
	if err := concurrency.HandleUpdate(db, tm, payload, clientID); err != nil {
		if ederr := rm.Edit(clientID, table, UpdateAction, key, newval, oldrow.Value); ederr != nil {
			return fmt.Errorf("error marking update as no-op: %w", ederr)
		}
		stack := rm.txStack[clientID]
		rm.txStack[clientID] = stack[:len(stack)-2]
		if rberr := rm.Rollback(clientID); rberr != nil {
			return rberr
		}
	}
	return err
}

func HandleDelete(db *database.Database, tm *concurrency.TransactionManager, rm *RecoveryManager, payload string, clientID uuid.UUID) error {
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
	oldrow, err := table.Find(key)
	if err != nil {
		return errors.New("delete error: key doesn't exist")
	}
	if err := rm.Edit(clientID, table, DeleteAction, key, oldrow.Value, 0); err != nil {
		return err
	}
	if err := concurrency.HandleDelete(db, tm, payload, clientID); err != nil {
		if ederr := rm.Edit(clientID, table, InsertAction, key, 0, oldrow.Value); ederr != nil {
			return fmt.Errorf("error marking delete as no-op: %w", ederr)
		}
		stack := rm.txStack[clientID]
		rm.txStack[clientID] = stack[:len(stack)-2]
		if rberr := rm.Rollback(clientID); rberr != nil {
			return rberr
		}
	}
	return err
}

func HandleCheckpoint(rm *RecoveryManager, payload string) error {
	if len(strings.Fields(payload)) != 1 {
		return errors.New("usage: checkpoint")
	}
	return rm.Checkpoint()
}

func HandleAbort(tm *concurrency.TransactionManager, rm *RecoveryManager, payload string, clientID uuid.UUID) error {
	if len(strings.Fields(payload)) != 1 {
		return errors.New("usage: abort")
	}
	if _, found := tm.GetTransaction(clientID); !found {
		return errors.New("no running transaction to abort")
	}
	return rm.Rollback(clientID)
}

func HandleCrash(payload string) error {
	if len(strings.Fields(payload)) != 1 {
		return errors.New("usage: crash")
	}
	panic("it's the end of the world!")
}
