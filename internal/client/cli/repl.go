package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/boot"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	loginConfirmed(ctx context.Context) bool
	commands() []command
}

// runREPL starts a simple read–eval–print loop for the health CLI.
//
// It reads a line from reader, parses the first token as the
// command, and dispatches to the matching command of 'a'. Commands marked
// needLogin are refused while logged out. Unknown commands are reported
// back to the user. The loop exits on EOF, on a cancelled ctx or
// when the user types "exit" or "quit".
//
// Errors returned by command handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	cmds := make(map[string]command)
	for _, c := range a.commands() {
		cmds[c.name] = c
	}

	for {
		printlnFn(fmt.Sprintf("health %s> ", statusFn()))
		if ctx.Err() != nil {
			return
		}
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		name, args := parts[0], parts[1:]

		switch name {
		case "help":
			printlnFn(helpText(cmds, a.isLoggedIn()))
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		c, ok := cmds[name]
		if !ok {
			printlnFn("Unknown command:", name)
			continue
		}
		if c.needLogin && !a.loginConfirmed(ctx) {
			printlnFn("Please log in first (type 'login').")
			continue
		}
		if err := c.run(ctx, args); err != nil {
			if errors.Is(err, errUsage) {
				printlnFn("Usage:", strings.TrimPrefix(err.Error(), errUsage.Error()+": "))
				continue
			}
			printlnFn("Error:", err)
		}
	}
}

func helpText(cmds map[string]command, loggedIn bool) string {
	names := make([]string, 0, len(cmds))
	for name, c := range cmds {
		if c.needLogin && !loggedIn {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-13s %s\n", name, cmds[name].usage)
	}
	b.WriteString("  help          show this list\n  exit          leave the program")
	return b.String()
}

func (a *App) getStatus() string {
	s := a.ui.snapshot()
	parts := make([]string, 0, 3)
	if s.email != "" {
		parts = append(parts, s.email)
	}
	if m := a.mode(); m != "" {
		parts = append(parts, string(m))
	}
	if s.stage != boot.StageIdle {
		parts = append(parts, string(s.stage))
	}
	if s.locked {
		parts = append(parts, "locked")
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " ") + ") "
}

// Root runs the REPL until the user exits or input ends.
func (a *App) Root(ctx context.Context) {
	a.ui.printf("Welcome to the health client (type 'help' for commands)\n")
	runREPL(ctx, a, a.getStatus, a.reader)
}
