package recovery

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

/*
Logs come in the following forms:

	TABLE log -- creates a table:
	< create tblType table tblName >

	EDIT log -- an action that modifies database state:
	< Tx, table, INSERT|DELETE|UPDATE, key, oldval, newval >

	START log -- start of a transaction:
	< Tx start >

	COMMIT log -- end of a transaction:
	< Tx commit >

	CHECKPOINT log -- lists the currently running transactions:
	< Tx1, Tx2... checkpoint >
*/

type logRecord interface {
	toString() string
}

type tableLog struct {
	tblType string
	tblName string
}

func (tl tableLog) toString() string {
	return fmt.Sprintf("< create %s table %s >\n", tl.tblType, tl.tblName)
}

type action string

const (
	InsertAction action = "INSERT"
	UpdateAction action = "UPDATE"
	DeleteAction action = "DELETE"
)

type editLog struct {
	id        uuid.UUID
	tablename string
	action    action
	key       int64
	oldval    int64
	newval    int64
}

func (el editLog) toString() string {
	return fmt.Sprintf("< %s, %s, %s, %v, %v, %v >\n", el.id.String(), el.tablename, el.action, el.key, el.oldval, el.newval)
}

type startLog struct{ id uuid.UUID }

func (sl startLog) toString() string {
	return fmt.Sprintf("< %s start >\n", sl.id.String())
}

type commitLog struct{ id uuid.UUID }

func (cl commitLog) toString() string {
	return fmt.Sprintf("< %s commit >\n", cl.id.String())
}

type checkpointLog struct{ ids []uuid.UUID }

func (cl checkpointLog) toString() string {
	idStrings := make([]string, 0, len(cl.ids))
	for _, id := range cl.ids {
		idStrings = append(idStrings, id.String())
	}
	if len(idStrings) == 0 {
		return "< checkpoint >\n"
	}
	return fmt.Sprintf("< %s checkpoint >\n", strings.Join(idStrings, ", "))
}

const uuidPattern = "[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}"

var (
	tableExp      = regexp.MustCompile(`< create (?P<tblType>\w+) table (?P<tblName>\w+) >`)
	editExp       = regexp.MustCompile(fmt.Sprintf(`< (?P<uuid>%s), (?P<table>\w+), (?P<action>UPDATE|INSERT|DELETE), (?P<key>-?\d+), (?P<oldval>-?\d+), (?P<newval>-?\d+) >`, uuidPattern))
	startExp      = regexp.MustCompile(fmt.Sprintf(`< (%s) start >`, uuidPattern))
	commitExp     = regexp.MustCompile(fmt.Sprintf(`< (%s) commit >`, uuidPattern))
	checkpointExp = regexp.MustCompile(fmt.Sprintf(`< (%s,?\s)*checkpoint >`, uuidPattern))
	uuidExp       = regexp.MustCompile(uuidPattern)
)

// logFromString parses one written line back into its logRecord.
func logFromString(s string) (logRecord, error) {
	switch {
	case tableExp.MatchString(s):
		m := tableExp.FindStringSubmatch(s)
		return tableLog{tblType: m[1], tblName: m[2]}, nil
	case editExp.MatchString(s):
		m := editExp.FindStringSubmatch(s)
		id := uuid.MustParse(m[1])
		key, _ := strconv.Atoi(m[4])
		oldval, _ := strconv.Atoi(m[5])
		newval, _ := strconv.Atoi(m[6])
		return editLog{id: id, tablename: m[2], action: action(m[3]), key: int64(key), oldval: int64(oldval), newval: int64(newval)}, nil
	case startExp.MatchString(s):
		return startLog{id: uuid.MustParse(uuidExp.FindString(s))}, nil
	case commitExp.MatchString(s):
		return commitLog{id: uuid.MustParse(uuidExp.FindString(s))}, nil
	case checkpointExp.MatchString(s):
		uuidStrs := uuidExp.FindAllString(s, -1)
		ids := make([]uuid.UUID, 0, len(uuidStrs))
		for _, u := range uuidStrs {
			ids = append(ids, uuid.MustParse(u))
		}
		return checkpointLog{ids: ids}, nil
	default:
		return nil, errors.New("could not parse log")
	}
}
