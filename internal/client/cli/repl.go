package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"google.golang.org/grpc/status"
)

type command struct {
	usage   string
	minArgs int
	authed  bool
	run     func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"login":    {usage: "login [user]", run: (*App).Login},
	"logout":   {usage: "logout", authed: true, run: (*App).Logout},
	"ls":       {usage: "ls [folder-id]", authed: true, run: (*App).list},
	"put":      {usage: "put <path> [folder-id]", minArgs: 1, authed: true, run: (*App).put},
	"putv":     {usage: "putv <file-id> <path>", minArgs: 2, authed: true, run: (*App).putVersion},
	"get":      {usage: "get <file-id> [dest]", minArgs: 1, authed: true, run: (*App).get},
	"info":     {usage: "info <file-id>", minArgs: 1, authed: true, run: (*App).info},
	"rm":       {usage: "rm <file-id>", minArgs: 1, authed: true, run: (*App).remove},
	"revert":   {usage: "revert <file-id> <version>", minArgs: 2, authed: true, run: (*App).revert},
	"mv":       {usage: "mv <file-id> <new-name>", minArgs: 2, authed: true, run: (*App).rename},
	"tag":      {usage: "tag <file-id> <tag>...", minArgs: 2, authed: true, run: (*App).tag},
	"meta":     {usage: "meta <file-id> key=value...", minArgs: 2, authed: true, run: (*App).meta},
	"chmod":    {usage: "chmod <file-id> <private|shared|public>", minArgs: 2, authed: true, run: (*App).chmod},
	"share":    {usage: "share <file-id> <user> <read|write>", minArgs: 3, authed: true, run: (*App).share},
	"url":      {usage: "url <file-id>", minArgs: 1, authed: true, run: (*App).url},
	"fetch":    {usage: "fetch <file-id> <dest>", minArgs: 2, authed: true, run: (*App).fetch},
	"history":  {usage: "history <file-id> [limit]", minArgs: 1, authed: true, run: (*App).history},
	"find":     {usage: "find <query> [key=value]...", minArgs: 1, authed: true, run: (*App).find},
	"usage":    {usage: "usage", authed: true, run: (*App).usage},
	"mkdir":    {usage: "mkdir <name> [parent-id]", minArgs: 1, authed: true, run: (*App).mkdir},
	"rmdir":    {usage: "rmdir <folder-id>", minArgs: 1, authed: true, run: (*App).rmdir},
	"mvdir":    {usage: "mvdir <folder-id> <new-name>", minArgs: 2, authed: true, run: (*App).renameFolder},
	"sharedir": {usage: "sharedir <folder-id> <user> <read|write>", minArgs: 3, authed: true, run: (*App).shareFolder},
}

// runREPL reads commands from a.reader until EOF, "exit" or "quit".
// Command errors are printed and the loop carries on.
func runREPL(ctx context.Context, a *App) {
	for {
		fmt.Fprintf(a.out, "fk %s> ", a.getStatus())

		line, err := a.reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			fmt.Fprintln(a.out)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		name, args := parts[0], parts[1:]

		switch name {
		case "help":
			a.help()
			continue
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		}

		cmd, ok := commands[name]
		switch {
		case !ok:
			fmt.Fprintln(a.out, "Unknown command:", name)
		case cmd.authed && !a.isLoggedIn():
			fmt.Fprintln(a.out, "Please login first")
		case len(args) < cmd.minArgs:
			fmt.Fprintln(a.out, "Usage:", cmd.usage)
		default:
			if err := cmd.run(a, ctx, args); err != nil {
				a.printErr(err)
			}
		}
	}
}

func (a *App) help() {
	names := make([]string, 0, len(commands))
	for name, cmd := range commands {
		if cmd.authed == a.isLoggedIn() || name == "login" {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	fmt.Fprintln(a.out, "Available commands:")
	for _, name := range names {
		fmt.Fprintln(a.out, "  "+commands[name].usage)
	}
	fmt.Fprintln(a.out, "  exit")
}

func (a *App) printErr(err error) {
	if st, ok := status.FromError(err); ok {
		fmt.Fprintf(a.out, "Error: %s (%s)\n", st.Message(), st.Code())
		return
	}
	fmt.Fprintln(a.out, "Error:", err)
}
