package recovery

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"coredb/pkg/concurrency"
	"coredb/pkg/database"

	"github.com/icza/backscanner"
	"github.com/otiai10/copy"

	"github.com/google/uuid"
)

// RecoveryManager owns the write-ahead log for a database: every edit,
// transaction boundary, and checkpoint is durably recorded here before
// (or as) it is applied, so a crash can be replayed from the log.
type RecoveryManager struct {
	db *database.Database
	tm *concurrency.TransactionManager

	// txStack maps each running transaction to the edits it has made
	// so far, so Rollback can undo them in reverse order.
	txStack map[uuid.UUID][]editLog

	logFile *os.File
	mtx     sync.Mutex
}

// NewRecoveryManager opens logFilename (which must already exist; see
// Prime) and returns a manager ready to log against db/tm.
func NewRecoveryManager(db *database.Database, tm *concurrency.TransactionManager, logFilename string) (*RecoveryManager, error) {
	logFile, err := os.OpenFile(logFilename, os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return nil, err
	}
	return &RecoveryManager{
		db:      db,
		tm:      tm,
		txStack: make(map[uuid.UUID][]editLog),
		logFile: logFile,
	}, nil
}

// flushLog appends one serialized record to the end of the log file.
// Expects rm.mtx to be held.
func (rm *RecoveryManager) flushLog(lr logRecord) error {
	if _, err := rm.logFile.WriteString(lr.toString()); err != nil {
		return err
	}
	return rm.logFile.Sync()
}

// Table records the creation of a table.
func (rm *RecoveryManager) Table(tblType string, tblName string) error {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	if err := rm.flushLog(tableLog{tblType: tblType, tblName: tblName}); err != nil {
		return fmt.Errorf("error writing a table log: %w", err)
	}
	return nil
}

// Edit records a single entry change under the given client's running
// transaction.
func (rm *RecoveryManager) Edit(clientID uuid.UUID, table database.Index, act action, key, oldval, newval int64) error {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	lr := editLog{id: clientID, tablename: table.GetName(), action: act, key: key, oldval: oldval, newval: newval}
	rm.txStack[clientID] = append(rm.txStack[clientID], lr)
	return rm.flushLog(lr)
}

// Start records the beginning of a transaction.
func (rm *RecoveryManager) Start(clientID uuid.UUID) error {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	rm.txStack[clientID] = make([]editLog, 0)
	if err := rm.flushLog(startLog{id: clientID}); err != nil {
		return fmt.Errorf("error writing a start log: %w", err)
	}
	return nil
}

// Commit records the successful completion of a transaction.
func (rm *RecoveryManager) Commit(clientID uuid.UUID) error {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	delete(rm.txStack, clientID)
	if err := rm.flushLog(commitLog{id: clientID}); err != nil {
		return fmt.Errorf("error writing a commit log: %w", err)
	}
	return nil
}

// Checkpoint writes every resident page to disk, records which
// transactions were still running at that instant, and snapshots the
// database so Recover can skip everything before this point.
func (rm *RecoveryManager) Checkpoint() error {
	rm.mtx.Lock()
	defer rm.mtx.Unlock()
	if err := rm.db.BufferPool().FlushAll(); err != nil {
		return err
	}
	activeTxs := make([]uuid.UUID, 0, len(rm.txStack))
	for id := range rm.txStack {
		activeTxs = append(activeTxs, id)
	}
	if err := rm.flushLog(checkpointLog{ids: activeTxs}); err != nil {
		return fmt.Errorf("error writing a checkpoint log: %w", err)
	}
	return rm.delta() // keep last: only a correct checkpoint should be snapshotted
}

// redo replays a table or edit log's action without re-logging it.
func (rm *RecoveryManager) redo(lr logRecord) error {
	switch l := lr.(type) {
	case tableLog:
		payload := fmt.Sprintf("create %s table %s", l.tblType, l.tblName)
		_, err := database.HandleCreateTable(rm.db, payload)
		return err
	case editLog:
		switch l.action {
		case InsertAction:
			payload := fmt.Sprintf("insert %v %v into %s", l.key, l.newval, l.tablename)
			if err := database.HandleInsert(rm.db, payload); err != nil {
				payload = fmt.Sprintf("update %s %v %v", l.tablename, l.key, l.newval)
				return database.HandleUpdate(rm.db, payload)
			}
			return nil
		case UpdateAction:
			payload := fmt.Sprintf("update %s %v %v", l.tablename, l.key, l.newval)
			if err := database.HandleUpdate(rm.db, payload); err != nil {
				payload = fmt.Sprintf("insert %v %v into %s", l.key, l.newval, l.tablename)
				return database.HandleInsert(rm.db, payload)
			}
			return nil
		case DeleteAction:
			payload := fmt.Sprintf("delete %v from %s", l.key, l.tablename)
			return database.HandleDelete(rm.db, payload)
		}
		return nil
	default:
		return errors.New("can only redo table or edit logs")
	}
}

// undo reverses one already-applied edit, logging the reversal itself.
func (rm *RecoveryManager) undo(lr editLog) error {
	switch lr.action {
	case InsertAction:
		payload := fmt.Sprintf("delete %v from %s", lr.key, lr.tablename)
		return HandleDelete(rm.db, rm.tm, rm, payload, lr.id)
	case UpdateAction:
		payload := fmt.Sprintf("update %s %v %v", lr.tablename, lr.key, lr.oldval)
		return HandleUpdate(rm.db, rm.tm, rm, payload, lr.id)
	case DeleteAction:
		payload := fmt.Sprintf("insert %v %v into %s", lr.key, lr.oldval, lr.tablename)
		return HandleInsert(rm.db, rm.tm, rm, payload, lr.id)
	}
	return nil
}

// Recover replays the log from the most recent checkpoint forward,
// then undoes whatever transactions were still active at the end of
// the log. Intended to run once, at startup.
func (rm *RecoveryManager) Recover() error {
	logs, checkpointIndex, err := rm.readLogs()
	if err != nil {
		return fmt.Errorf("error reading logs: %w", err)
	}

	activeTxs := make(map[uuid.UUID]bool)
	for i := checkpointIndex; i < len(logs); i++ {
		switch l := logs[i].(type) {
		case startLog:
			activeTxs[l.id] = true
			rm.tm.Begin(l.id)
		case commitLog:
			delete(activeTxs, l.id)
			rm.tm.Commit(l.id)
		case tableLog, editLog:
			if err := rm.redo(l); err != nil {
				return fmt.Errorf("error redoing log during recovery: %w", err)
			}
		case checkpointLog:
			for _, id := range l.ids {
				activeTxs[id] = true
				rm.tm.Begin(id)
			}
		}
	}

	for i := len(logs) - 1; i >= 0 && len(activeTxs) > 0; i-- {
		switch l := logs[i].(type) {
		case startLog:
			if activeTxs[l.id] {
				if err := rm.tm.Commit(l.id); err != nil {
					return fmt.Errorf("error committing transaction during recovery: %w", err)
				}
				if err := rm.Commit(l.id); err != nil {
					return fmt.Errorf("error committing transaction during recovery: %w", err)
				}
				delete(activeTxs, l.id)
			}
		case editLog:
			if activeTxs[l.id] {
				if err := rm.undo(l); err != nil {
					return fmt.Errorf("error undoing log during recovery: %w", err)
				}
			}
		}
	}
	return nil
}

// Rollback undoes every edit a still-running transaction has made, in
// reverse order, then commits the (now-empty) transaction.
func (rm *RecoveryManager) Rollback(clientID uuid.UUID) error {
	logs, exists := rm.txStack[clientID]
	if !exists {
		return errors.New("transaction not found for rollback")
	}
	for i := len(logs) - 1; i >= 0; i-- {
		if err := rm.undo(logs[i]); err != nil {
			return fmt.Errorf("error undoing log during rollback: %w", err)
		}
	}
	delete(rm.txStack, clientID)
	if err := rm.tm.Commit(clientID); err != nil {
		return fmt.Errorf("error committing transaction during rollback: %w", err)
	}
	return rm.flushLog(commitLog{id: clientID})
}

// Prime opens the database backing path, restoring from the last
// checkpoint snapshot if one exists. Single-file analogue of the
// teacher's per-folder snapshot/restore: the snapshot lives alongside
// the primary file at path+"-recovery" rather than in a sibling
// directory tree.
func Prime(path string) (*database.Database, error) {
	recoveryPath := path + "-recovery"
	if _, err := os.Stat(recoveryPath); err != nil {
		if os.IsNotExist(err) {
			return database.Open(path)
		}
		return nil, err
	}

	os.Remove(path)
	if err := copy.Copy(recoveryPath, path); err != nil {
		return nil, err
	}
	return database.Open(path)
}

// delta snapshots the current backing file to the recovery path.
// Called at the end of a successful Checkpoint.
func (rm *RecoveryManager) delta() error {
	recoveryPath := rm.db.FilePath() + "-recovery"
	os.Remove(recoveryPath)
	return copy.Copy(rm.db.FilePath(), recoveryPath)
}

// getRelevantStrings scans the log file backwards to the most recent
// checkpoint, then further back until it has seen the start record of
// every transaction that checkpoint lists as active. It returns every
// line from that point on plus the checkpoint's index among them; if the
// file has no checkpoint, or a listed start record is never found, it
// returns the whole log and index 0.
func (rm *RecoveryManager) getRelevantStrings() (relevantStrings []string, checkpointPos int, err error) {
	fstats, err := rm.logFile.Stat()
	if err != nil {
		return nil, 0, err
	}

	scanner := backscanner.New(rm.logFile, int(fstats.Size()))
	checkpointTarget := []byte("checkpoint")
	startTarget := []byte("start")
	checkpointHit := false
	txs := make(map[uuid.UUID]bool)
	for {
		line, _, err := scanner.LineBytes()
		if err != nil {
			if err == io.EOF {
				return relevantStrings, 0, nil
			}
			return nil, 0, err
		}
		relevantStrings = append([]string{string(line)}, relevantStrings...)
		checkpointPos++
		if checkpointHit && bytes.Contains(line, startTarget) {
			lr, err := logFromString(string(line))
			if err != nil {
				return nil, 0, err
			}
			delete(txs, lr.(startLog).id)
		}
		if !checkpointHit && bytes.Contains(line, checkpointTarget) {
			checkpointHit = true
			lr, err := logFromString(string(line))
			if err != nil {
				return nil, 0, err
			}
			for _, tx := range lr.(checkpointLog).ids {
				txs[tx] = true
			}
			checkpointPos = 0
		}
		if checkpointHit && len(txs) <= 0 {
			break
		}
	}
	return relevantStrings, checkpointPos, nil
}

// readLogs parses the lines getRelevantStrings selects and returns them
// plus the index of the most recent usable checkpoint among them (0 if
// there was none, so the whole log is replayed).
func (rm *RecoveryManager) readLogs() (logs []logRecord, checkpointIndex int, err error) {
	lines, checkpointIndex, err := rm.getRelevantStrings()
	if err != nil {
		return nil, 0, err
	}
	if len(lines) == 0 {
		return []logRecord{}, 0, nil
	}
	logs = make([]logRecord, len(lines)-1)
	for i, s := range lines[:len(lines)-1] {
		lr, err := logFromString(s)
		if err != nil {
			return nil, 0, err
		}
		logs[i] = lr
	}
	return logs, checkpointIndex, nil
}
