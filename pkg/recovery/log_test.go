package recovery

import (
	"testing"

	"github.com/google/uuid"
)

func TestTableLogRoundTrip(t *testing.T) {
	want := tableLog{tblType: "btree", tblName: "accounts"}
	got, err := logFromString(want.toString())
	if err != nil {
		t.Fatalf("logFromString: %v", err)
	}
	tl, ok := got.(tableLog)
	if !ok {
		t.Fatalf("logFromString returned %T, want tableLog", got)
	}
	if tl != want {
		t.Fatalf("round trip = %+v, want %+v", tl, want)
	}
}

func TestEditLogRoundTripWithNegativeValues(t *testing.T) {
	want := editLog{id: uuid.New(), tablename: "accounts", action: UpdateAction, key: -5, oldval: 10, newval: -20}
	got, err := logFromString(want.toString())
	if err != nil {
		t.Fatalf("logFromString: %v", err)
	}
	el, ok := got.(editLog)
	if !ok {
		t.Fatalf("logFromString returned %T, want editLog", got)
	}
	if el != want {
		t.Fatalf("round trip = %+v, want %+v", el, want)
	}
}

func TestStartAndCommitLogRoundTrip(t *testing.T) {
	id := uuid.New()
	start := startLog{id: id}
	got, err := logFromString(start.toString())
	if err != nil {
		t.Fatalf("logFromString(start): %v", err)
	}
	if sl, ok := got.(startLog); !ok || sl.id != id {
		t.Fatalf("round trip start = %+v, want %+v", got, start)
	}

	commit := commitLog{id: id}
	got, err = logFromString(commit.toString())
	if err != nil {
		t.Fatalf("logFromString(commit): %v", err)
	}
	if cl, ok := got.(commitLog); !ok || cl.id != id {
		t.Fatalf("round trip commit = %+v, want %+v", got, commit)
	}
}

func TestCheckpointLogRoundTripEmptyAndNonEmpty(t *testing.T) {
	empty := checkpointLog{ids: nil}
	got, err := logFromString(empty.toString())
	if err != nil {
		t.Fatalf("logFromString(empty checkpoint): %v", err)
	}
	if cl, ok := got.(checkpointLog); !ok || len(cl.ids) != 0 {
		t.Fatalf("round trip empty checkpoint = %+v, want no ids", got)
	}

	id1, id2 := uuid.New(), uuid.New()
	nonEmpty := checkpointLog{ids: []uuid.UUID{id1, id2}}
	got, err = logFromString(nonEmpty.toString())
	if err != nil {
		t.Fatalf("logFromString(checkpoint): %v", err)
	}
	cl, ok := got.(checkpointLog)
	if !ok || len(cl.ids) != 2 {
		t.Fatalf("round trip checkpoint = %+v, want 2 ids", got)
	}
	if cl.ids[0] != id1 || cl.ids[1] != id2 {
		t.Fatalf("checkpoint ids = %v, want [%v %v]", cl.ids, id1, id2)
	}
}

func TestLogFromStringRejectsGarbage(t *testing.T) {
	if _, err := logFromString("not a log line"); err == nil {
		t.Fatal("logFromString on garbage input should fail")
	}
}
