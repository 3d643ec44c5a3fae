package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Characters(ctx context.Context) error
	Cues(ctx context.Context, characterID string) error
	Show(ctx context.Context, id string) error
	AddCharacter(ctx context.Context) error
	AddCue(ctx context.Context) error
	Edit(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
}

const (
	helpLoggedOut = "Available commands: register, login, exit"
	helpLoggedIn  = "Available commands: characters, cues [character-id], show <id>, addchar, addcue, " +
		"edit <id>, rm <id>, sync, status, logout, exit"
)

// runREPL reads commands line by line from reader and dispatches them to
// a. Commands read their own prompts from the same reader. The loop exits
// on EOF or when the user types "exit" or "quit".
//
//	Not logged in:
//	  - help           show available commands
//	  - register       create an account
//	  - login          authenticate, offline if the server is unreachable
//	  - exit | quit    leave the program
//
//	Logged in:
//	  - characters     list characters
//	  - cues [id]      list cues, optionally of one character
//	  - show <id>      show a character or cue
//	  - addchar        add a character
//	  - addcue         add a cue
//	  - edit <id>      edit a character or cue
//	  - rm <id>        delete a character or cue
//	  - sync           synchronize now and decide conflicts
//	  - status         show mode and pending changes
//	  - logout         forget cached credentials
//
// Errors returned by command handlers are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("cue %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}

		report(dispatch(ctx, a, cmd, args))
	}
}

var errNotLoggedIn = errors.New("please log in first")

type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "help":
		if a.isLoggedIn() {
			printlnFn(helpLoggedIn)
		} else {
			printlnFn(helpLoggedOut)
		}
		return nil
	case "register":
		return a.Register(ctx)
	case "login":
		return a.Login(ctx)
	}

	if !a.isLoggedIn() {
		if isCommand(cmd) {
			return errNotLoggedIn
		}
		printlnFn("Unknown command:", cmd)
		return nil
	}

	id := ""
	if len(args) > 0 {
		id = args[0]
	}

	switch cmd {
	case "characters", "chars":
		return a.Characters(ctx)
	case "cues":
		return a.Cues(ctx, id)
	case "show":
		if id == "" {
			return usageError("show <id>")
		}
		return a.Show(ctx, id)
	case "addchar":
		return a.AddCharacter(ctx)
	case "addcue":
		return a.AddCue(ctx)
	case "edit":
		if id == "" {
			return usageError("edit <id>")
		}
		return a.Edit(ctx, id)
	case "rm", "delete":
		if id == "" {
			return usageError("rm <id>")
		}
		return a.Remove(ctx, id)
	case "sync":
		return a.Sync(ctx)
	case "status":
		return a.Status(ctx)
	case "logout":
		return a.Logout(ctx)
	default:
		printlnFn("Unknown command:", cmd)
		return nil
	}
}

func isCommand(cmd string) bool {
	switch cmd {
	case "characters", "chars", "cues", "show", "addchar", "addcue", "edit", "rm", "delete", "sync", "status", "logout":
		return true
	}
	return false
}

func report(err error) {
	if err == nil {
		return
	}
	var u usageError
	if errors.As(err, &u) {
		printlnFn(strings.ToUpper(err.Error()[:1]) + err.Error()[1:])
		return
	}
	printlnFn("Error:", err)
}
