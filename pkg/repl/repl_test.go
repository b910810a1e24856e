package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func echo(s string, _ *REPLConfig) (string, error) { return s, nil }

func TestNewReplStartsEmpty(t *testing.T) {
	r := NewRepl()
	if len(r.GetCommands()) != 0 {
		t.Fatal("a new REPL should have no commands")
	}
	if len(r.GetHelp()) != 0 {
		t.Fatal("a new REPL should have no help strings")
	}
}

func TestAddCommandRegistersCommandAndHelp(t *testing.T) {
	r := NewRepl()
	r.AddCommand("echo", echo, "echoes the payload")
	if _, ok := r.GetCommands()["echo"]; !ok {
		t.Fatal("AddCommand should register the trigger")
	}
	if r.GetHelp()["echo"] != "echoes the payload" {
		t.Fatal("AddCommand should register the help string")
	}
}

func TestAddCommandCannotOverwriteHelpTrigger(t *testing.T) {
	r := NewRepl()
	r.AddCommand(TriggerHelpMetacommand, echo, "fake help")
	if _, ok := r.GetCommands()[TriggerHelpMetacommand]; ok {
		t.Fatal("AddCommand should refuse to register the help metacommand's trigger")
	}
}

func TestHelpStringContainsEveryRegisteredCommand(t *testing.T) {
	r := NewRepl()
	r.AddCommand("1", echo, "one help")
	r.AddCommand("2", echo, "two help")
	help := r.HelpString()
	if !strings.Contains(help, "one help") || !strings.Contains(help, "two help") {
		t.Fatalf("HelpString = %q, missing a registered command's help text", help)
	}
}

func TestCombineReplsMergesDistinctTriggers(t *testing.T) {
	a := NewRepl()
	a.AddCommand("a", echo, "a help")
	b := NewRepl()
	b.AddCommand("b", echo, "b help")

	merged, err := CombineRepls([]*REPL{a, b})
	if err != nil {
		t.Fatalf("CombineRepls: %v", err)
	}
	if len(merged.GetCommands()) != 2 {
		t.Fatalf("merged REPL has %d commands, want 2", len(merged.GetCommands()))
	}
}

func TestCombineReplsRejectsOverlappingTriggers(t *testing.T) {
	a := NewRepl()
	a.AddCommand("x", echo, "a's x")
	b := NewRepl()
	b.AddCommand("x", echo, "b's x")

	if _, err := CombineRepls([]*REPL{a, b}); err != ErrOverlappingCommands {
		t.Fatalf("CombineRepls with overlapping triggers = %v, want ErrOverlappingCommands", err)
	}
}

func TestCombineReplsOfNoneReturnsEmptyRepl(t *testing.T) {
	merged, err := CombineRepls(nil)
	if err != nil {
		t.Fatalf("CombineRepls(nil): %v", err)
	}
	if len(merged.GetCommands()) != 0 {
		t.Fatal("combining zero REPLs should yield an empty REPL")
	}
}

// Run is synchronous over an io.Reader, so feeding it a bounded buffer
// that ends without a trailing newline-only line lets the test run to
// completion without a goroutine or a timeout.
func TestRunDispatchesRegisteredCommand(t *testing.T) {
	r := NewRepl()
	r.AddCommand("echo", echo, "echoes the payload")

	input := strings.NewReader("echo hey\n")
	var output bytes.Buffer
	r.Run(uuid.New(), "", input, &output)

	if !strings.Contains(output.String(), "echo hey\n") {
		t.Fatalf("Run output = %q, want it to contain %q", output.String(), "echo hey\n")
	}
}

func TestRunReportsUnknownCommand(t *testing.T) {
	r := NewRepl()
	input := strings.NewReader("bogus\n")
	var output bytes.Buffer
	r.Run(uuid.New(), "", input, &output)

	if !strings.Contains(output.String(), ErrorPrependStr+ErrCommandNotFound.Error()) {
		t.Fatalf("Run output = %q, want it to report %v", output.String(), ErrCommandNotFound)
	}
}

func TestRunHelpMetacommandListsRegisteredCommands(t *testing.T) {
	r := NewRepl()
	r.AddCommand("echo", echo, "echoes the payload")
	input := strings.NewReader(TriggerHelpMetacommand + "\n")
	var output bytes.Buffer
	r.Run(uuid.New(), "", input, &output)

	if !strings.Contains(output.String(), "echoes the payload") {
		t.Fatalf("Run .help output = %q, missing registered help text", output.String())
	}
}
