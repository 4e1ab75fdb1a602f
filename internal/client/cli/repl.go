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

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	List(ctx context.Context, args []string) error
	Archived(ctx context.Context, args []string) error
	New(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Pin(ctx context.Context, args []string) error
	Unpin(ctx context.Context, args []string) error
	Archive(ctx context.Context, args []string) error
	Restore(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Attach(ctx context.Context, args []string) error
	Resources(ctx context.Context, args []string) error
	RemoveResource(ctx context.Context, args []string) error
	Tags(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Pending(ctx context.Context, args []string) error
	WhoAmI(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  list                     live memos, pinned first
  archived                 archived memos
  new [visibility]         write a memo (private, protected, public)
  edit <id>                replace a memo's text
  pin <id> | unpin <id>
  archive <id> | restore <id>
  delete <id>
  attach <id> <path>       attach a file to a memo
  resources                list attachments
  rmres <id>               delete an attachment
  tags                     hashtags in use
  sync                     reconcile with the server now
  pending                  memos waiting to be pushed
  whoami
  exit | quit`

// runREPL starts a simple read–eval–print loop for the memosync CLI.
//
// It reads a line from in, parses the first token as the command, and
// dispatches the remaining tokens to methods on 'a'. The loop exits on EOF
// or when the user types "exit" or "quit". Command errors are printed and
// the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("memos %s> ", statusFn()))
		line, err := in.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "l", "list":
			cmdErr = a.List(ctx, args)
		case "archived":
			cmdErr = a.Archived(ctx, args)
		case "new":
			cmdErr = a.New(ctx, args)
		case "edit":
			cmdErr = a.Edit(ctx, args)
		case "pin":
			cmdErr = a.Pin(ctx, args)
		case "unpin":
			cmdErr = a.Unpin(ctx, args)
		case "archive":
			cmdErr = a.Archive(ctx, args)
		case "restore":
			cmdErr = a.Restore(ctx, args)
		case "delete", "rm":
			cmdErr = a.Delete(ctx, args)
		case "attach":
			cmdErr = a.Attach(ctx, args)
		case "resources":
			cmdErr = a.Resources(ctx, args)
		case "rmres":
			cmdErr = a.RemoveResource(ctx, args)
		case "tags":
			cmdErr = a.Tags(ctx, args)
		case "sync":
			cmdErr = a.Sync(ctx, args)
		case "pending":
			cmdErr = a.Pending(ctx, args)
		case "whoami":
			cmdErr = a.WhoAmI(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr.Error())
		}
		if err != nil {
			return
		}
	}
}
