package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	err      error

	calls []string
}

func (f *fakeExec) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeExec) isLoggedIn() bool                  { return f.loggedIn }
func (f *fakeExec) Register(ctx context.Context) error { return f.record("register") }
func (f *fakeExec) Login(ctx context.Context) error {
	f.loggedIn = true
	return f.record("login")
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.loggedIn = false
	return f.record("logout")
}
func (f *fakeExec) Characters(ctx context.Context) error { return f.record("characters") }
func (f *fakeExec) Cues(ctx context.Context, characterID string) error {
	return f.record("cues " + characterID)
}
func (f *fakeExec) Show(ctx context.Context, id string) error   { return f.record("show " + id) }
func (f *fakeExec) AddCharacter(ctx context.Context) error      { return f.record("addchar") }
func (f *fakeExec) AddCue(ctx context.Context) error            { return f.record("addcue") }
func (f *fakeExec) Edit(ctx context.Context, id string) error   { return f.record("edit " + id) }
func (f *fakeExec) Remove(ctx context.Context, id string) error { return f.record("rm " + id) }
func (f *fakeExec) Sync(ctx context.Context) error              { return f.record("sync") }
func (f *fakeExec) Status(ctx context.Context) error            { return f.record("status") }

func capturePrint(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	capturePrint(t)

	input := strings.Join([]string{
		"help",
		"characters",
		"login",
		"help",
		"chars",
		"cues",
		"cues ch1",
		"show c1",
		"addchar",
		"addcue",
		"edit c1",
		"rm c1",
		"sync",
		"status",
		"foobar",
		"logout",
		"exit",
		"status",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewReader(strings.NewReader(input)))

	assert.Equal(t, []string{
		"login", "characters", "characters", "cues ", "cues ch1", "show c1", "addchar", "addcue",
		"edit c1", "rm c1", "sync", "status", "logout",
	}, exec.calls)
}

func TestRunREPL_RequiresLogin(t *testing.T) {
	out := capturePrint(t)

	runREPL(context.Background(), &fakeExec{}, func() string { return "" }, bufio.NewReader(strings.NewReader("sync\nnope\n")))

	assert.Contains(t, *out, "Error: please log in first")
	assert.Contains(t, *out, "Unknown command: nope")
}

func TestRunREPL_UsageAndQuit(t *testing.T) {
	out := capturePrint(t)

	exec := &fakeExec{loggedIn: true}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewReader(strings.NewReader("show\nedit\nrm\nquit\nsync\n")))

	assert.Empty(t, exec.calls)
	assert.Contains(t, *out, "Usage: show <id>")
	assert.Contains(t, *out, "Usage: edit <id>")
	assert.Contains(t, *out, "Usage: rm <id>")
	assert.Contains(t, *out, "Bye!")
}

func TestRunREPL_ReportsErrorsAndContinues(t *testing.T) {
	out := capturePrint(t)

	exec := &fakeExec{loggedIn: true, err: errors.New("boom")}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("status\nsync")))

	assert.Equal(t, []string{"status", "sync"}, exec.calls)
	assert.Contains(t, *out, "Error: boom")
}
